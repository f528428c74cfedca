// Package store persists sweep reports in SQLite so past runs can be compared.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a sweep does not exist.
var ErrNotFound = errors.New("record not found")

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// New opens (creating if needed) the database at dbPath.
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &DB{db}, nil
}

// Migrate creates the schema. It is safe to run on every start.
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationSweeps,
		migrationLevels,
		migrationIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

const migrationSweeps = `
CREATE TABLE IF NOT EXISTS sweeps (
	id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	base_url TEXT NOT NULL,
	model TEXT NOT NULL,
	total_requests INTEGER NOT NULL,
	report TEXT NOT NULL
)`

const migrationLevels = `
CREATE TABLE IF NOT EXISTS levels (
	sweep_id TEXT NOT NULL REFERENCES sweeps(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	concurrency INTEGER NOT NULL,
	succeeded INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	wall_time_ns INTEGER NOT NULL,
	ttft_p50 REAL NOT NULL,
	itl_p50 REAL NOT NULL,
	latency_p50 REAL NOT NULL,
	system_tps REAL NOT NULL,
	system_qps REAL NOT NULL,
	PRIMARY KEY (sweep_id, position)
)`

const migrationIndexes = `
CREATE INDEX IF NOT EXISTS idx_sweeps_started_at ON sweeps(started_at);
CREATE INDEX IF NOT EXISTS idx_sweeps_model ON sweeps(model);
`
