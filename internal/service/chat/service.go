package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/speech-coach/backend/internal/model/chat"
)

var (
	ErrParticipantsRequired = errors.New("patient and specialist ids are required")
	ErrSessionNotFound      = errors.New("chat not found")
)

// Store persists chat records.
type Store interface {
	FindByPair(ctx context.Context, patientID, specialistID string) (chat.Chat, error)
	Insert(ctx context.Context, record chat.Chat) error
	Get(ctx context.Context, id string) (chat.Chat, error)
	Save(ctx context.Context, record chat.Chat) error
	ListBySpecialist(ctx context.Context, specialistID string) ([]chat.Chat, error)
	Delete(ctx context.Context, id string) error
}

// Update carries the fields a client may overwrite.
type Update struct {
	Conversation string
	Counter      int64
}

// Service owns chat records for the development backend.
type Service struct {
	store Store
	// mu makes CreateOrGet atomic per process.
	mu sync.Mutex
}

// NewService wraps store; nil selects an in-memory store.
func NewService(store Store) *Service {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Service{store: store}
}

// CreateOrGet returns the chat for the pair, creating it on first use.
func (s *Service) CreateOrGet(ctx context.Context, patientID, specialistID string) (chat.Chat, bool, error) {
	patientID = strings.TrimSpace(patientID)
	specialistID = strings.TrimSpace(specialistID)
	if patientID == "" || specialistID == "" {
		return chat.Chat{}, false, ErrParticipantsRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.FindByPair(ctx, patientID, specialistID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return chat.Chat{}, false, err
	}

	now := time.Now().UTC()
	record := chat.Chat{
		ID:           uuid.NewString(),
		PatientID:    patientID,
		SpecialistID: specialistID,
		Conversation: "[]",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Insert(ctx, record); err != nil {
		return chat.Chat{}, false, err
	}
	return record, true, nil
}

// Update replaces the conversation of chat id. The counter never moves
// backwards.
func (s *Service) Update(ctx context.Context, id string, update Update) (chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.store.Get(ctx, id)
	if err != nil {
		return chat.Chat{}, err
	}
	record.Conversation = update.Conversation
	if strings.TrimSpace(record.Conversation) == "" {
		record.Conversation = "[]"
	}
	if update.Counter > record.Counter {
		record.Counter = update.Counter
	}
	record.UpdatedAt = time.Now().UTC()

	if err := s.store.Save(ctx, record); err != nil {
		return chat.Chat{}, err
	}
	return record, nil
}

// Get retrieves a chat by identifier.
func (s *Service) Get(ctx context.Context, id string) (chat.Chat, error) {
	return s.store.Get(ctx, id)
}

// ListBySpecialist returns the chats of a specialist, most recent first.
func (s *Service) ListBySpecialist(ctx context.Context, specialistID string) ([]chat.Chat, error) {
	return s.store.ListBySpecialist(ctx, specialistID)
}

// Delete removes a chat.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Delete(ctx, id)
}
