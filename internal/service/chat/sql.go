package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/zhouzirui/speech-coach/backend/internal/model/chat"
)

// OpenDB connects to a sqlite3 or mysql database. MySQL DSNs are forced to
// parse DATETIME columns into time.Time and to report matched rows on
// UPDATE.
func OpenDB(ctx context.Context, driver, dsn string) (*sql.DB, string, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		driver = "sqlite3"
		if dsn == "" {
			return nil, "", fmt.Errorf("sqlite dsn must be provided")
		}
	case "mysql":
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.ClientFoundRows = true
		dsn = cfg.FormatDSN()
	default:
		return nil, "", fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s database: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("ping database: %w", err)
	}
	return db, driver, nil
}

// Migrate creates the chats table.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS chats (
				id TEXT PRIMARY KEY,
				patient_id TEXT NOT NULL,
				specialist_id TEXT NOT NULL,
				conversation TEXT NOT NULL,
				counter INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				UNIQUE(patient_id, specialist_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_chats_specialist ON chats(specialist_id, updated_at DESC)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS chats (
				id VARCHAR(36) PRIMARY KEY,
				patient_id VARCHAR(128) NOT NULL,
				specialist_id VARCHAR(128) NOT NULL,
				conversation LONGTEXT NOT NULL,
				counter BIGINT NOT NULL DEFAULT 0,
				created_at DATETIME(6) NOT NULL,
				updated_at DATETIME(6) NOT NULL,
				UNIQUE KEY uq_chats_pair (patient_id, specialist_id),
				KEY idx_chats_specialist (specialist_id, updated_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate chats: %w", err)
		}
	}
	return nil
}

// SQLStore keeps chats in a SQL database.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an opened and migrated database.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const chatColumns = `id, patient_id, specialist_id, conversation, counter, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanChat(row scanner) (chat.Chat, error) {
	var record chat.Chat
	err := row.Scan(&record.ID, &record.PatientID, &record.SpecialistID, &record.Conversation,
		&record.Counter, &record.CreatedAt, &record.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Chat{}, ErrSessionNotFound
	}
	if err != nil {
		return chat.Chat{}, err
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}

func (s *SQLStore) FindByPair(ctx context.Context, patientID, specialistID string) (chat.Chat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE patient_id = ? AND specialist_id = ?`, patientID, specialistID)
	return scanChat(row)
}

func (s *SQLStore) Insert(ctx context.Context, record chat.Chat) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (`+chatColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.PatientID, record.SpecialistID, record.Conversation,
		record.Counter, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (chat.Chat, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = ?`, id)
	return scanChat(row)
}

func (s *SQLStore) Save(ctx context.Context, record chat.Chat) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chats SET conversation = ?, counter = ?, updated_at = ? WHERE id = ?`,
		record.Conversation, record.Counter, record.UpdatedAt, record.ID)
	if err != nil {
		return fmt.Errorf("update chat: %w", err)
	}
	return requireRow(res)
}

func (s *SQLStore) ListBySpecialist(ctx context.Context, specialistID string) ([]chat.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE specialist_id = ? ORDER BY updated_at DESC`, specialistID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	out := make([]chat.Chat, 0)
	for rows.Next() {
		record, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}
