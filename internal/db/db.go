// Package db opens the local SQLite state database and applies schema migrations.
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/storagebrowser/internal/utils"
)

const MemoryPath = ":memory:"

const defaultPragmas = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA synchronous=NORMAL;
PRAGMA temp_store=MEMORY;
`

type options struct {
	path         string
	pragmas      string
	maxOpenConns int
}

type Option func(*options)

// WithPath sets the database file. MemoryPath opens a private in-memory database.
func WithPath(path string) Option {
	return func(o *options) { o.path = path }
}

// WithPragmas replaces the default pragmas.
func WithPragmas(pragmas string) Option {
	return func(o *options) { o.pragmas = pragmas }
}

func WithMaxOpenConns(n int) Option {
	return func(o *options) { o.maxOpenConns = n }
}

// Open connects to the database. The parent directory of a file database is
// created when missing.
func Open(opts ...Option) (*sqlx.DB, error) {
	o := &options{
		path:    MemoryPath,
		pragmas: defaultPragmas,
	}
	for _, opt := range opts {
		opt(o)
	}

	dsn := MemoryPath
	if o.path != MemoryPath {
		if err := utils.EnsureParent(o.path); err != nil {
			return nil, fmt.Errorf("ensure parent directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", o.path)
	}

	slog.Debug("db open", "driver", driverID, "path", o.path)
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// every connection to :memory: is a different database
	if o.path == MemoryPath {
		db.SetMaxOpenConns(1)
	} else if o.maxOpenConns > 0 {
		db.SetMaxOpenConns(o.maxOpenConns)
	}

	if _, err := db.Exec(o.pragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	return db, nil
}

// Migrate brings the schema up to date. migrations[i] moves the schema from
// version i to i+1; the current version is kept in PRAGMA user_version.
func Migrate(ctx context.Context, db *sqlx.DB, migrations []string) error {
	var version int
	if err := db.GetContext(ctx, &version, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("bump schema version to %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
		slog.Debug("db migrated", "version", i+1)
	}

	return nil
}
