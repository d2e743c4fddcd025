// Package store persists job state in SQLite. It implements job.Store
// with JSON-valued columns keyed by job ID; the schema is applied on
// open so a fresh database file is immediately usable.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/threatforge/threatforge/internal/types"
)

// Config holds SQLite connection options.
type Config struct {
	Path            string        // Database file path
	MaxOpenConns    int           // Maximum number of open connections
	MaxIdleConns    int           // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum connection lifetime
	BusyTimeout     time.Duration // SQLite busy timeout
}

// DefaultConfig returns sensible defaults for the given path.
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		BusyTimeout:     5 * time.Second,
	}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS job_status (
	job_id      TEXT PRIMARY KEY,
	state       TEXT NOT NULL,
	retry_count INTEGER NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	updated_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS job_results (
	job_id     TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS job_trail (
	job_id  TEXT PRIMARY KEY,
	payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS job_index (
	job_id     TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	mode       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_job_index_created ON job_index(created_at DESC);
`

// Open creates a job store at path with default settings. WAL mode is
// required; an environment where it cannot be enabled is an open failure.
func Open(path string) (*JobStore, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig creates a job store with custom connection settings.
func OpenWithConfig(cfg Config) (*JobStore, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d",
		cfg.Path,
		int(cfg.BusyTimeout.Milliseconds()),
	)

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, types.WrapError(types.STORE_OPEN_FAILED, "failed to open database", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, types.WrapError(types.STORE_OPEN_FAILED, "failed to ping database", err)
	}

	var journalMode string
	if err := conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		conn.Close()
		return nil, types.WrapError(types.STORE_OPEN_FAILED, "failed to verify journal mode", err)
	}
	if journalMode != "wal" {
		conn.Close()
		return nil, types.NewError(types.STORE_OPEN_FAILED,
			fmt.Sprintf("WAL mode not enabled (got %s)", journalMode))
	}

	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		conn.Close()
		return nil, types.WrapError(types.STORE_OPEN_FAILED, "failed to apply schema", err)
	}

	return &JobStore{conn: conn, path: cfg.Path}, nil
}
