package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/storagebrowser/internal/db"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
}

// SqliteStore keeps values in the local state database.
type SqliteStore struct {
	db *sqlx.DB
}

// OpenSqliteStore opens the store at path and migrates its schema.
func OpenSqliteStore(ctx context.Context, path string) (*SqliteStore, error) {
	conn, err := db.Open(db.WithPath(path))
	if err != nil {
		return nil, err
	}

	s, err := NewSqliteStore(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// NewSqliteStore wraps an open database and migrates its schema.
func NewSqliteStore(ctx context.Context, conn *sqlx.DB) (*SqliteStore, error) {
	if err := db.Migrate(ctx, conn, migrations); err != nil {
		return nil, fmt.Errorf("kvstore migrate: %w", err)
	}
	return &SqliteStore{db: conn}, nil
}

func (s *SqliteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM kv WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kvstore get %s: %w", key, err)
	}
	return value, nil
}

func (s *SqliteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("kvstore set %s: %w", key, err)
	}
	return nil
}

func (s *SqliteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kvstore remove %s: %w", key, err)
	}
	return nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}
