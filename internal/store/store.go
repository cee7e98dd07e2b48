// Package store provides SQLite-backed local state for the sync engine.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/versusfit/versus/internal/logging"
)

// Store errors.
var (
	ErrKeyNotFound = errors.New("state key not found")
)

// Store holds process-local persisted state. The badge mapping and the
// notification list each live under a single key as a JSON value.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (or creates) the local state database at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to state database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logging.Component("store"),
	}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS app_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure state schema: %w", err)
		}
	}
	return nil
}

// GetValue returns the raw JSON value stored under key.
func (s *Store) GetValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_state WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to read state key %q: %w", key, err)
	}
	return value, nil
}

// SetValue stores the raw JSON value under key, replacing any previous value.
func (s *Store) SetValue(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	// Prefer UPDATE then INSERT to avoid relying on newer SQLite upsert syntax.
	result, err := s.db.ExecContext(ctx, `
		UPDATE app_state SET value = ?, updated_at = ? WHERE key = ?
	`, value, now, key)
	if err != nil {
		return fmt.Errorf("failed to update state key %q: %w", key, err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO app_state (key, value, updated_at) VALUES (?, ?, ?)
	`, key, value, now)
	if err != nil {
		return fmt.Errorf("failed to insert state key %q: %w", key, err)
	}
	return nil
}

// DeleteValue removes the value stored under key. Deleting an absent key is
// not an error.
func (s *Store) DeleteValue(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM app_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete state key %q: %w", key, err)
	}
	return nil
}
