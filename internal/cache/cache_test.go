package cache

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/zhouzirui/speech-coach/backend/internal/auth"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	key := Key(auth.Identity{UserID: "u-" + strconv.FormatInt(time.Now().UnixNano(), 36)})

	if _, ok, err := store.Load(ctx, key); err != nil || ok {
		t.Fatalf("expected miss, got ok=%t err=%v", ok, err)
	}

	rec := Record{SpecialistID: "ana-souza", SessionID: "chat-1", Conversation: `[{"id":1}]`}
	if err := store.Save(ctx, key, rec); err != nil {
		t.Fatalf("Save err: %v", err)
	}
	rec.Conversation = `[{"id":1},{"id":2}]`
	if err := store.Save(ctx, key, rec); err != nil {
		t.Fatalf("Save overwrite err: %v", err)
	}

	got, ok, err := store.Load(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%t err=%v", ok, err)
	}
	if got.SessionID != "chat-1" || got.SpecialistID != "ana-souza" || got.Conversation != rec.Conversation {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.SavedAt.IsZero() {
		t.Fatal("expected SavedAt to be stamped")
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete err: %v", err)
	}
	if _, ok, _ := store.Load(ctx, key); ok {
		t.Fatal("expected miss after Delete")
	}
}

func TestKey(t *testing.T) {
	if got := Key(auth.Identity{UserID: " 7 "}); got != "paciente:7" {
		t.Fatalf("unexpected key: %s", got)
	}
	if got := Key(auth.Identity{UserID: "7", Role: auth.RoleSpecialist}); got != "especialista:7" {
		t.Fatalf("unexpected key: %s", got)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	store, err := Open(context.Background(), Options{Backend: "sqlite", DSN: filepath.Join(t.TempDir(), "cache.db")})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed cache tests")
	}
	store, err := Open(context.Background(), Options{Backend: "redis", RedisAddr: addr, TTL: time.Minute})
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Options{Backend: "etcd"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
