// Package sqlitestore records run history to a local SQLite file via
// the pure-Go modernc.org/sqlite driver.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vela-lang/internal/history"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	output TEXT NOT NULL,
	failed INTEGER NOT NULL,
	error_message TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at TEXT NOT NULL
);`

// Store is a history.Store backed by a SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite file at path and ensures
// the history table exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Append(ctx context.Context, rec history.Record) error {
	failed := 0
	if rec.Failed {
		failed = 1
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (id, source, output, failed, error_message, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Source, rec.Output, failed, rec.ErrorMessage, rec.Duration.Milliseconds(), createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append history record: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }
