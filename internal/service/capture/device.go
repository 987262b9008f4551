package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Device is the platform microphone. Open may prompt the user for
// permission; a denial must be returned as an error, never as a silent
// empty stream.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is one acquired capture session. Chunks is closed by the stream
// after Close is called or when the source is exhausted.
type Stream interface {
	Chunks() <-chan []byte
	Format() Format
	Close() error
}

// Format describes the raw bytes produced by a stream. BytesPerSecond may
// be zero when the encoding is not constant-rate.
type Format struct {
	Name           string
	BytesPerSecond int
}

// PCM16Mono16k is the 16 kHz, 16-bit mono layout expected by the ASR backend.
var PCM16Mono16k = Format{Name: "wav", BytesPerSecond: 32000}

// FileDevice replays an audio file as if it were captured live. It backs the
// terminal client and demos where no microphone is available.
type FileDevice struct {
	Path      string
	ChunkSize int
	Interval  time.Duration
}

// Open opens the file. Missing or unreadable files count as an unavailable
// device.
func (d *FileDevice) Open(ctx context.Context) (Stream, error) {
	file, err := os.Open(d.Path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrDeviceUnavailable, d.Path, err)
	}

	chunkSize := d.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 6400 // 200ms of 16 kHz 16-bit mono
	}

	format := Format{Name: strings.TrimPrefix(strings.ToLower(filepath.Ext(d.Path)), ".")}
	if format.Name == "" || format.Name == "wav" || format.Name == "pcm" {
		format = PCM16Mono16k
	}

	s := &fileStream{
		file:   file,
		format: format,
		chunks: make(chan []byte, 8),
		stop:   make(chan struct{}),
	}
	go s.pump(chunkSize, d.Interval)
	return s, nil
}

type fileStream struct {
	file   *os.File
	format Format
	chunks chan []byte
	stop   chan struct{}
	once   sync.Once
}

func (s *fileStream) pump(chunkSize int, interval time.Duration) {
	defer close(s.chunks)
	defer s.file.Close()

	for {
		buf := make([]byte, chunkSize)
		n, err := s.file.Read(buf)
		if n > 0 {
			select {
			case s.chunks <- buf[:n]:
			case <-s.stop:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				// Partial recordings are still usable.
				return
			}
			<-s.stop
			return
		}
		if interval > 0 {
			select {
			case <-time.After(interval):
			case <-s.stop:
				return
			}
		}
	}
}

func (s *fileStream) Chunks() <-chan []byte { return s.chunks }

func (s *fileStream) Format() Format { return s.format }

func (s *fileStream) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}
