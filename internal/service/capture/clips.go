package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ClipStore persists finalized clips and returns a playable reference.
type ClipStore interface {
	Save(ctx context.Context, clip Clip) (string, error)
}

// Reference is the fallback reference for clips that were not persisted.
func Reference(clip Clip) string {
	return "clip:" + clip.ID
}

// DirStore writes clips as files under Dir.
type DirStore struct {
	Dir string
}

// Save writes clip to <Dir>/<id>.<format> and returns a file:// reference.
func (s DirStore) Save(_ context.Context, clip Clip) (string, error) {
	if s.Dir == "" {
		return "", fmt.Errorf("clip directory not configured")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create clip dir: %w", err)
	}

	ext := clip.Format
	if ext == "" {
		ext = "bin"
	}
	path, err := filepath.Abs(filepath.Join(s.Dir, clip.ID+"."+ext))
	if err != nil {
		return "", fmt.Errorf("resolve clip path: %w", err)
	}
	if err := os.WriteFile(path, clip.Data, 0o644); err != nil {
		return "", fmt.Errorf("write clip: %w", err)
	}
	return "file://" + filepath.ToSlash(path), nil
}
