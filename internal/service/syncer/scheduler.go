package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrSyncFailed wraps a failed remote conversation write.
var ErrSyncFailed = errors.New("conversation sync failed")

// DefaultWindow is the quiet period between the last change and the write.
const DefaultWindow = time.Second

// Snapshot is the full state sent on every write.
type Snapshot struct {
	SessionID    string
	PatientID    string
	SpecialistID string
	Conversation string
	Counter      int64
}

// Writer stores a snapshot in the persistence service.
type Writer interface {
	UpdateSession(ctx context.Context, snap Snapshot) error
}

// Timer is the part of *time.Timer the scheduler needs.
type Timer interface {
	Stop() bool
}

// AfterFunc matches time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithAfterFunc replaces the timer source.
func WithAfterFunc(fn AfterFunc) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.afterFunc = fn
		}
	}
}

// WithWriteTimeout bounds each debounced write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.writeTimeout = d
	}
}

// Scheduler debounces snapshot writes. It holds at most one pending
// snapshot; each Schedule replaces it and restarts the quiet period.
type Scheduler struct {
	writer       Writer
	window       time.Duration
	writeTimeout time.Duration
	afterFunc    AfterFunc

	mu      sync.Mutex
	pending *Snapshot
	timer   Timer
	gen     uint64
	written []func(Snapshot)
	writes  sync.WaitGroup
}

// New returns a scheduler writing through writer after window of quiet.
// A non-positive window uses DefaultWindow.
func New(writer Writer, window time.Duration, opts ...Option) *Scheduler {
	if window <= 0 {
		window = DefaultWindow
	}
	s := &Scheduler{
		writer:       writer,
		window:       window,
		writeTimeout: 15 * time.Second,
		afterFunc:    realAfterFunc,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule records snap as the latest state and restarts the quiet period.
func (s *Scheduler) Schedule(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.pending = &snap
	gen := s.gen
	s.timer = s.afterFunc(s.window, func() { s.fire(gen) })
}

// FlushNow drops any pending write and writes snap immediately.
func (s *Scheduler) FlushNow(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()

	return s.write(ctx, snap)
}

// Flush writes the pending snapshot, if any, without waiting for the quiet
// period.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pending
	s.stopLocked()
	s.mu.Unlock()

	if pending == nil {
		return nil
	}
	return s.write(ctx, *pending)
}

// OnWritten registers fn to run after every successful write with the
// snapshot that was stored. It runs on the writing goroutine: the timer
// goroutine for debounced writes, the caller for Flush and FlushNow.
func (s *Scheduler) OnWritten(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, fn)
}

// Pending reports whether a write is waiting for its quiet period.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Wait blocks until writes started by expired timers have returned.
func (s *Scheduler) Wait() {
	s.writes.Wait()
}

// stopLocked invalidates the current timer. A callback that already fired
// sees a stale generation and does nothing.
func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	s.gen++
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.pending == nil {
		s.mu.Unlock()
		return
	}
	snap := *s.pending
	s.pending = nil
	s.timer = nil
	s.writes.Add(1)
	s.mu.Unlock()
	defer s.writes.Done()

	ctx := context.Background()
	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
	}
	_ = s.write(ctx, snap)
}

func (s *Scheduler) write(ctx context.Context, snap Snapshot) error {
	if s.writer == nil {
		return nil
	}
	if err := s.writer.UpdateSession(ctx, snap); err != nil {
		log.Printf("[sync] update session %s failed: %v", snap.SessionID, err)
		return fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	s.mu.Lock()
	callbacks := append(([]func(Snapshot))(nil), s.written...)
	s.mu.Unlock()
	for _, fn := range callbacks {
		fn(snap)
	}
	return nil
}
