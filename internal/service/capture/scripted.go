package capture

import (
	"context"
	"sync"
)

// ScriptedDevice replays a fixed chunk sequence on every Open. Err, when
// set, is returned by Open instead (for example a permission denial).
type ScriptedDevice struct {
	Chunks [][]byte
	Format Format
	Err    error

	mu    sync.Mutex
	opens int
}

// Open returns a stream that has already buffered all chunks.
func (d *ScriptedDevice) Open(_ context.Context) (Stream, error) {
	d.mu.Lock()
	d.opens++
	d.mu.Unlock()

	if d.Err != nil {
		return nil, d.Err
	}

	s := &scriptedStream{
		ch:     make(chan []byte, len(d.Chunks)),
		format: d.Format,
		stop:   make(chan struct{}),
	}
	for _, chunk := range d.Chunks {
		s.ch <- append([]byte(nil), chunk...)
	}
	go func() {
		<-s.stop
		close(s.ch)
	}()
	return s, nil
}

// Opens reports how many times the device was acquired.
func (d *ScriptedDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

type scriptedStream struct {
	ch     chan []byte
	format Format
	stop   chan struct{}
	once   sync.Once
}

func (s *scriptedStream) Chunks() <-chan []byte { return s.ch }

func (s *scriptedStream) Format() Format { return s.format }

func (s *scriptedStream) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}
