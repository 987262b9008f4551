package capture_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zhouzirui/speech-coach/backend/internal/service/capture"
)

func TestControllerStartStopJoinsChunks(t *testing.T) {
	device := &capture.ScriptedDevice{
		Chunks: [][]byte{[]byte("ab"), []byte("cd"), []byte("ef")},
		Format: capture.Format{Name: "wav", BytesPerSecond: 2},
	}
	ctrl := capture.NewController(device)
	ctx := context.Background()

	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	if !ctrl.Recording() {
		t.Fatal("expected recording after Start")
	}

	clip, err := ctrl.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop err: %v", err)
	}
	if string(clip.Data) != "abcdef" {
		t.Fatalf("unexpected clip data: %q", clip.Data)
	}
	if clip.Duration != 3*time.Second {
		t.Fatalf("unexpected duration: %s", clip.Duration)
	}
	if clip.ID == "" || clip.Format != "wav" {
		t.Fatalf("unexpected clip metadata: %+v", clip)
	}
	if ctrl.Recording() {
		t.Fatal("expected idle after Stop")
	}
}

func TestControllerStopWithoutChunksYieldsEmptyClip(t *testing.T) {
	ctrl := capture.NewController(&capture.ScriptedDevice{Format: capture.PCM16Mono16k})
	ctx := context.Background()

	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	clip, err := ctrl.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop err: %v", err)
	}
	if !clip.Empty() || clip.Duration != 0 {
		t.Fatalf("expected empty zero-duration clip, got %+v", clip)
	}
}

func TestControllerDeniedDevice(t *testing.T) {
	device := &capture.ScriptedDevice{Err: errors.New("permission denied")}
	ctrl := capture.NewController(device)

	err := ctrl.Start(context.Background())
	if !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
	if ctrl.Recording() {
		t.Fatal("denied device must leave controller idle")
	}
}

func TestControllerStopWhenIdle(t *testing.T) {
	ctrl := capture.NewController(&capture.ScriptedDevice{})
	if _, err := ctrl.Stop(context.Background()); !errors.Is(err, capture.ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}
}

func TestControllerSecondStart(t *testing.T) {
	device := &capture.ScriptedDevice{}
	ctrl := capture.NewController(device)
	ctx := context.Background()

	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	if err := ctrl.Start(ctx); !errors.Is(err, capture.ErrAlreadyRecording) {
		t.Fatalf("expected ErrAlreadyRecording, got %v", err)
	}
	if device.Opens() != 1 {
		t.Fatalf("expected one device acquisition, got %d", device.Opens())
	}
	ctrl.Abort()
}

func TestControllerAbortReleasesDevice(t *testing.T) {
	device := &capture.ScriptedDevice{Chunks: [][]byte{[]byte("x")}}
	ctrl := capture.NewController(device)
	ctx := context.Background()

	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	ctrl.Abort()
	if ctrl.Recording() {
		t.Fatal("expected idle after Abort")
	}
	if _, err := ctrl.Stop(ctx); !errors.Is(err, capture.ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording after Abort, got %v", err)
	}
	ctrl.Abort()
}

func TestFileDeviceReplaysFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.wav")
	payload := strings.Repeat("z", 10)
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}

	ctrl := capture.NewController(&capture.FileDevice{Path: path, ChunkSize: 3})
	ctx := context.Background()
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("Start err: %v", err)
	}

	// Give the pump time to reach EOF.
	time.Sleep(50 * time.Millisecond)

	clip, err := ctrl.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop err: %v", err)
	}
	if string(clip.Data) != payload {
		t.Fatalf("unexpected clip data: %q", clip.Data)
	}
	if clip.Format != capture.PCM16Mono16k.Name {
		t.Fatalf("unexpected format: %s", clip.Format)
	}
}

func TestFileDeviceMissingFile(t *testing.T) {
	device := &capture.FileDevice{Path: filepath.Join(t.TempDir(), "missing.wav")}
	if _, err := device.Open(context.Background()); !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestDirStoreSave(t *testing.T) {
	store := capture.DirStore{Dir: filepath.Join(t.TempDir(), "clips")}
	clip := capture.Clip{ID: "abc", Format: "wav", Data: []byte("RIFF")}

	ref, err := store.Save(context.Background(), clip)
	if err != nil {
		t.Fatalf("Save err: %v", err)
	}
	if !strings.HasPrefix(ref, "file://") || !strings.HasSuffix(ref, "/abc.wav") {
		t.Fatalf("unexpected reference: %s", ref)
	}

	data, err := os.ReadFile(filepath.Join(store.Dir, "abc.wav"))
	if err != nil {
		t.Fatalf("read clip: %v", err)
	}
	if string(data) != "RIFF" {
		t.Fatalf("unexpected clip contents: %q", data)
	}
}

func TestReference(t *testing.T) {
	if got := capture.Reference(capture.Clip{ID: "abc"}); got != "clip:abc" {
		t.Fatalf("unexpected reference: %s", got)
	}
}
