package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mkraev/switchboard/internal/domain"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed transcript repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// WAL keeps readers unblocked while a dispatch commits its turns.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS turns (
		epoch INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		agent TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		PRIMARY KEY (epoch, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_turns_epoch ON turns(epoch);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// AppendTurns appends dispatch turns in a single transaction so a partial
// dispatch never reaches the transcript.
func (s *SQLiteStore) AppendTurns(ctx context.Context, turns []domain.TurnRecord) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	const query = `
	INSERT INTO turns (epoch, seq, role, content, agent, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(epoch, seq) DO UPDATE SET
		role = excluded.role,
		content = excluded.content,
		agent = excluded.agent`

	for _, t := range turns {
		if _, err := tx.ExecContext(ctx, query,
			t.Epoch, t.Seq, string(t.Role), t.Content, t.Agent, t.CreatedAt.Unix(),
		); err != nil {
			return fmt.Errorf("insert turn %d/%d: %w", t.Epoch, t.Seq, err)
		}
	}
	return tx.Commit()
}

// ListTurns returns all turns of an epoch in sequence order.
func (s *SQLiteStore) ListTurns(ctx context.Context, epoch int64) ([]domain.TurnRecord, error) {
	const query = `
	SELECT epoch, seq, role, content, agent, created_at
	FROM turns WHERE epoch = ? ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, epoch)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.TurnRecord
	for rows.Next() {
		var t domain.TurnRecord
		var role string
		var createdAt int64
		if err := rows.Scan(&t.Epoch, &t.Seq, &role, &t.Content, &t.Agent, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		t.Role = domain.Role(role)
		t.CreatedAt = time.Unix(createdAt, 0)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
