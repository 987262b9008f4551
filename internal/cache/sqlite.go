package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite persists records in a local SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens dsn and creates the cache table.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn must be provided")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite cache: %w", err)
	}
	const stmt = `CREATE TABLE IF NOT EXISTS conversation_cache (
		cache_key TEXT PRIMARY KEY,
		specialist_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		conversation TEXT NOT NULL,
		saved_at DATETIME NOT NULL
	)`
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite cache: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context, key string) (Record, bool, error) {
	var rec Record
	err := s.db.QueryRowContext(ctx,
		`SELECT specialist_id, session_id, conversation, saved_at FROM conversation_cache WHERE cache_key = ?`, key,
	).Scan(&rec.SpecialistID, &rec.SessionID, &rec.Conversation, &rec.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("load cache %s: %w", key, err)
	}
	rec.SavedAt = rec.SavedAt.UTC()
	return rec, true, nil
}

func (s *SQLite) Save(ctx context.Context, key string, rec Record) error {
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_cache (cache_key, specialist_id, session_id, conversation, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			specialist_id = excluded.specialist_id,
			session_id = excluded.session_id,
			conversation = excluded.conversation,
			saved_at = excluded.saved_at`,
		key, rec.SpecialistID, rec.SessionID, rec.Conversation, rec.SavedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save cache %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("delete cache %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
