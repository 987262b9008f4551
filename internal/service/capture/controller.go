package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDeviceUnavailable means the microphone could not be acquired,
	// typically because the user denied permission.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrNotRecording is returned by Stop when no recording is active.
	ErrNotRecording = errors.New("not recording")
	// ErrAlreadyRecording is returned by Start while a recording is active.
	ErrAlreadyRecording = errors.New("already recording")
)

// Clip is one finalized recording.
type Clip struct {
	ID        string
	Format    string
	Data      []byte
	Duration  time.Duration
	StartedAt time.Time
}

// Empty reports whether nothing was captured.
func (c Clip) Empty() bool {
	return len(c.Data) == 0
}

// Controller turns a Device into an idle/recording state machine that
// buffers the raw chunks of each recording.
type Controller struct {
	device Device

	mu     sync.Mutex
	active *recording
}

type recording struct {
	stream  Stream
	started time.Time
	data    []byte
	done    chan struct{}
}

// NewController wraps device.
func NewController(device Device) *Controller {
	return &Controller{device: device}
}

// Recording reports whether a recording is in progress.
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Start acquires the device and begins buffering chunks. It returns once the
// device is ready.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return ErrAlreadyRecording
	}
	if c.device == nil {
		return fmt.Errorf("%w: no device configured", ErrDeviceUnavailable)
	}

	stream, err := c.device.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	rec := &recording{
		stream:  stream,
		started: time.Now().UTC(),
		done:    make(chan struct{}),
	}
	go rec.drain()
	c.active = rec
	log.Printf("[capture] recording started format=%s", stream.Format().Name)
	return nil
}

// Stop ends the active recording and returns the finalized clip. A
// recording that produced no chunks yields an empty clip.
func (c *Controller) Stop(ctx context.Context) (Clip, error) {
	rec := c.take()
	if rec == nil {
		return Clip{}, ErrNotRecording
	}

	if err := rec.stream.Close(); err != nil {
		log.Printf("[capture] close stream: %v", err)
	}
	select {
	case <-rec.done:
	case <-ctx.Done():
		return Clip{}, ctx.Err()
	}

	format := rec.stream.Format()
	clip := Clip{
		ID:        uuid.NewString(),
		Format:    format.Name,
		Data:      rec.data,
		StartedAt: rec.started,
	}
	if format.BytesPerSecond > 0 {
		clip.Duration = time.Duration(len(rec.data)) * time.Second / time.Duration(format.BytesPerSecond)
	}
	log.Printf("[capture] recording finalized id=%s bytes=%d duration=%s", clip.ID, len(clip.Data), clip.Duration)
	return clip, nil
}

// Abort releases the device without producing a clip. It is a no-op when
// idle.
func (c *Controller) Abort() {
	rec := c.take()
	if rec == nil {
		return
	}
	if err := rec.stream.Close(); err != nil {
		log.Printf("[capture] close stream: %v", err)
	}
	<-rec.done
	log.Printf("[capture] recording aborted")
}

func (c *Controller) take() *recording {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := c.active
	c.active = nil
	return rec
}

// drain is the only writer of r.data until done is closed.
func (r *recording) drain() {
	defer close(r.done)
	for chunk := range r.stream.Chunks() {
		r.data = append(r.data, chunk...)
	}
}
