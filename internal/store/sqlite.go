// ABOUTME: SQLite implementation of ConfigStore using modernc.org/sqlite
// ABOUTME: Stores each named document as a row with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteConfigStore implements ConfigStore using SQLite
type SQLiteConfigStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteConfigStore opens (or creates) the database at path.
// Parent directories are created if needed; ":memory:" is accepted for tests.
func NewSQLiteConfigStore(path string) (*SQLiteConfigStore, error) {
	logger := slog.Default().With("component", "sqlite-store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	s := &SQLiteConfigStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the documents table if it doesn't exist
func (s *SQLiteConfigStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			name       TEXT PRIMARY KEY,
			body       BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the stored document body or ErrNotFound.
func (s *SQLiteConfigStore) Load(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE name = ?`, name).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}
	return body, nil
}

// Save upserts the document body.
func (s *SQLiteConfigStore) Save(ctx context.Context, name string, data []byte) error {
	query := `
		INSERT INTO documents (name, body, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, name, data, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	s.logger.Debug("saved document", "name", name, "bytes", len(data))
	return nil
}

// Close closes the database connection
func (s *SQLiteConfigStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}
