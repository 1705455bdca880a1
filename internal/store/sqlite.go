package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps all documents in a single SQLite table, one row per
// (kind, id). Row replacement happens in a single statement, so saves are
// atomic by construction.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the
// documents table exists. Use ":memory:" for tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	schema := `
CREATE TABLE IF NOT EXISTS documents (
    kind TEXT NOT NULL,
    id TEXT NOT NULL,
    doc BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (kind, id)
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the stored document, or ErrNotFound.
func (s *SQLiteStore) Load(ctx context.Context, kind, id string) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE kind = ? AND id = ?`, kind, id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s %s: %w", kind, id, err)
	}
	return doc, nil
}

// Save upserts the document row.
func (s *SQLiteStore) Save(ctx context.Context, kind, id string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (kind, id, doc, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		kind, id, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving %s %s: %w", kind, id, err)
	}
	return nil
}

// List returns all document ids of a kind, sorted.
func (s *SQLiteStore) List(ctx context.Context, kind string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM documents WHERE kind = ? ORDER BY id`, kind)
	if err != nil {
		return nil, fmt.Errorf("listing %s documents: %w", kind, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("listing %s documents: %w", kind, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing %s documents: %w", kind, err)
	}
	return ids, nil
}
