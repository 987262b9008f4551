package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/speech-coach/backend/internal/auth"
)

// Record is the last conversation shown to a user, kept for offline display
// until the remote record is hydrated.
type Record struct {
	SpecialistID string    `json:"specialistId"`
	SessionID    string    `json:"sessionId"`
	Conversation string    `json:"conversation"`
	SavedAt      time.Time `json:"savedAt"`
}

// Store is a best-effort durable cache. Callers log and ignore its errors.
type Store interface {
	Load(ctx context.Context, key string) (Record, bool, error)
	Save(ctx context.Context, key string, rec Record) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key scopes cache entries per authenticated user.
func Key(id auth.Identity) string {
	role := string(id.Role)
	if role == "" {
		role = string(auth.RolePatient)
	}
	return role + ":" + strings.TrimSpace(id.UserID)
}

// Options selects and configures a backend.
type Options struct {
	Backend   string
	DSN       string
	RedisAddr string
	RedisPass string
	RedisDB   int
	TTL       time.Duration
}

// Open builds the backend named by opts.Backend: memory, sqlite or redis.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite", "sqlite3":
		store, err := OpenSQLite(ctx, opts.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		store, err := OpenRedis(ctx, opts.RedisAddr, opts.RedisPass, opts.RedisDB, opts.TTL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", opts.Backend)
	}
}

// Memory keeps records in process.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Load(_ context.Context, key string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	return rec, ok, nil
}

func (m *Memory) Save(_ context.Context, key string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now().UTC()
	}
	m.records[key] = rec
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *Memory) Close() error { return nil }
