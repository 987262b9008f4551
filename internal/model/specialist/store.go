package specialist

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a specialist id is not in the directory.
var ErrNotFound = errors.New("specialist not found")

// Directory lists the specialists available to the current user.
type Directory interface {
	ListSpecialists(ctx context.Context) ([]Specialist, error)
}

// Find resolves id through dir.
func Find(ctx context.Context, dir Directory, id string) (Specialist, error) {
	items, err := dir.ListSpecialists(ctx)
	if err != nil {
		return Specialist{}, err
	}
	for _, item := range items {
		if item.ID == id {
			return item, nil
		}
	}
	return Specialist{}, ErrNotFound
}

// MemoryStore implements Directory with an in-memory slice.
type MemoryStore struct {
	items []Specialist
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied specialists.
func NewMemoryStore(items []Specialist) *MemoryStore {
	return &MemoryStore{items: append([]Specialist(nil), items...)}
}

// List returns a copy of the stored specialists.
func (s *MemoryStore) List() []Specialist {
	return append([]Specialist(nil), s.items...)
}

// ListSpecialists satisfies Directory.
func (s *MemoryStore) ListSpecialists(_ context.Context) ([]Specialist, error) {
	return s.List(), nil
}

// FindByID looks up a specialist by identifier.
func (s *MemoryStore) FindByID(id string) (Specialist, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Specialist{}, false
}
