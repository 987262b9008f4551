package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/zhouzirui/speech-coach/backend/internal/model/chat"
)

// MemoryStore keeps chats in process.
type MemoryStore struct {
	mu    sync.RWMutex
	chats map[string]chat.Chat
	pairs map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats: make(map[string]chat.Chat),
		pairs: make(map[string]string),
	}
}

func pairKey(patientID, specialistID string) string {
	return patientID + "\x00" + specialistID
}

func (s *MemoryStore) FindByPair(_ context.Context, patientID, specialistID string) (chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.pairs[pairKey(patientID, specialistID)]
	if !ok {
		return chat.Chat{}, ErrSessionNotFound
	}
	return s.chats[id], nil
}

func (s *MemoryStore) Insert(_ context.Context, record chat.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[record.ID] = record
	s.pairs[pairKey(record.PatientID, record.SpecialistID)] = record.ID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.chats[id]
	if !ok {
		return chat.Chat{}, ErrSessionNotFound
	}
	return record, nil
}

func (s *MemoryStore) Save(_ context.Context, record chat.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[record.ID]; !ok {
		return ErrSessionNotFound
	}
	s.chats[record.ID] = record
	return nil
}

func (s *MemoryStore) ListBySpecialist(_ context.Context, specialistID string) ([]chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Chat, 0)
	for _, record := range s.chats {
		if record.SpecialistID == specialistID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.chats[id]
	if !ok {
		return ErrSessionNotFound
	}
	delete(s.chats, id)
	delete(s.pairs, pairKey(record.PatientID, record.SpecialistID))
	return nil
}
