package syncer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zhouzirui/speech-coach/backend/internal/service/syncer"
)

type recordingWriter struct {
	mu    sync.Mutex
	snaps []syncer.Snapshot
	err   error
}

func (w *recordingWriter) UpdateSession(_ context.Context, snap syncer.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snaps = append(w.snaps, snap)
	return w.err
}

func (w *recordingWriter) calls() []syncer.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]syncer.Snapshot(nil), w.snaps...)
}

func newScheduler(w syncer.Writer) (*syncer.Scheduler, *syncer.ManualClock) {
	clock := &syncer.ManualClock{}
	return syncer.New(w, time.Second, syncer.WithAfterFunc(clock.AfterFunc)), clock
}

func TestScheduleCoalescesBurst(t *testing.T) {
	writer := &recordingWriter{}
	s, clock := newScheduler(writer)

	s.Schedule(syncer.Snapshot{SessionID: "s1", Conversation: "a", Counter: 1})
	clock.Advance(400 * time.Millisecond)
	s.Schedule(syncer.Snapshot{SessionID: "s1", Conversation: "ab", Counter: 2})
	clock.Advance(400 * time.Millisecond)
	s.Schedule(syncer.Snapshot{SessionID: "s1", Conversation: "abc", Counter: 3})

	clock.Advance(999 * time.Millisecond)
	if got := len(writer.calls()); got != 0 {
		t.Fatalf("expected no write inside the window, got %d", got)
	}

	clock.Advance(time.Millisecond)
	calls := writer.calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one write, got %d", len(calls))
	}
	if calls[0].Conversation != "abc" || calls[0].Counter != 3 {
		t.Fatalf("expected latest snapshot, got %+v", calls[0])
	}
	if s.Pending() {
		t.Fatal("expected nothing pending after write")
	}
	if clock.Armed() != 0 {
		t.Fatalf("expected one live timer at most, %d still armed", clock.Armed())
	}
}

func TestFlushNowCancelsPending(t *testing.T) {
	writer := &recordingWriter{}
	s, clock := newScheduler(writer)

	s.Schedule(syncer.Snapshot{SessionID: "s1", Conversation: "old"})
	if err := s.FlushNow(context.Background(), syncer.Snapshot{SessionID: "s1", Conversation: "[]"}); err != nil {
		t.Fatalf("FlushNow err: %v", err)
	}
	clock.Advance(5 * time.Second)

	calls := writer.calls()
	if len(calls) != 1 || calls[0].Conversation != "[]" {
		t.Fatalf("expected only the flushed snapshot, got %+v", calls)
	}
}

func TestFlushWritesPending(t *testing.T) {
	writer := &recordingWriter{}
	s, clock := newScheduler(writer)

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush with nothing pending err: %v", err)
	}
	s.Schedule(syncer.Snapshot{SessionID: "s1", Conversation: "x"})
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush err: %v", err)
	}
	clock.Advance(5 * time.Second)

	if calls := writer.calls(); len(calls) != 1 || calls[0].Conversation != "x" {
		t.Fatalf("unexpected writes: %+v", calls)
	}
}

func TestFailedWriteIsSwallowedAndRetriedOnNextChange(t *testing.T) {
	writer := &recordingWriter{err: errors.New("offline")}
	s, clock := newScheduler(writer)

	s.Schedule(syncer.Snapshot{SessionID: "s1", Conversation: "a"})
	clock.Advance(time.Second)
	if s.Pending() {
		t.Fatal("failed write must not stay pending")
	}

	writer.mu.Lock()
	writer.err = nil
	writer.mu.Unlock()

	s.Schedule(syncer.Snapshot{SessionID: "s1", Conversation: "ab"})
	clock.Advance(time.Second)

	calls := writer.calls()
	if len(calls) != 2 || calls[1].Conversation != "ab" {
		t.Fatalf("expected retry with latest snapshot, got %+v", calls)
	}
}

func TestFlushNowReportsFailure(t *testing.T) {
	writer := &recordingWriter{err: errors.New("offline")}
	s, _ := newScheduler(writer)

	if err := s.FlushNow(context.Background(), syncer.Snapshot{}); !errors.Is(err, syncer.ErrSyncFailed) {
		t.Fatalf("expected ErrSyncFailed, got %v", err)
	}
}

func TestRealTimerWrites(t *testing.T) {
	writer := &recordingWriter{}
	s := syncer.New(writer, 10*time.Millisecond)

	s.Schedule(syncer.Snapshot{SessionID: "s1"})
	deadline := time.Now().Add(2 * time.Second)
	for len(writer.calls()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Wait()
	if len(writer.calls()) != 1 {
		t.Fatalf("expected one write, got %d", len(writer.calls()))
	}
}

func TestOnWrittenReportsSuccessfulWritesOnly(t *testing.T) {
	writer := &recordingWriter{}
	s, clock := newScheduler(writer)

	var written []syncer.Snapshot
	s.OnWritten(func(snap syncer.Snapshot) { written = append(written, snap) })

	s.Schedule(syncer.Snapshot{SessionID: "s1", Conversation: "a", Counter: 1})
	clock.Advance(time.Second)
	if len(written) != 1 || written[0].Counter != 1 {
		t.Fatalf("expected debounced write to be reported, got %+v", written)
	}

	if err := s.FlushNow(context.Background(), syncer.Snapshot{SessionID: "s1", Conversation: "[]", Counter: 1}); err != nil {
		t.Fatalf("FlushNow err: %v", err)
	}
	if len(written) != 2 || written[1].Conversation != "[]" {
		t.Fatalf("expected FlushNow to be reported, got %+v", written)
	}

	writer.mu.Lock()
	writer.err = errors.New("backend down")
	writer.mu.Unlock()
	s.Schedule(syncer.Snapshot{SessionID: "s1", Conversation: "b", Counter: 2})
	clock.Advance(time.Second)
	if len(written) != 2 {
		t.Fatalf("failed write must not be reported, got %+v", written)
	}
}
