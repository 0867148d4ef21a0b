// Package sqlite implements the embedded persistence layer for Lexio
// Insight Hub. It mirrors the postgres package's repositories on top of a
// single-file database, which is what local development and the mobile
// edge deployments run. The cgo-free driver keeps cross-compilation
// trivial.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains SQLite connection configuration.
type Config struct {
	// Path - location of the database file. The parent directory is
	// created if missing.
	Path string

	// BusyTimeout - how long a writer waits on a locked database before
	// giving up.
	BusyTimeout time.Duration
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() Config {
	return Config{
		Path:        "data/lexio.db",
		BusyTimeout: 5 * time.Second,
	}
}

// DSN builds the connection string with the pragmas the engine relies on:
// WAL for concurrent readers, enforced foreign keys for the events→users
// reference.
func (c Config) DSN() string {
	return fmt.Sprintf("%s?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(%d)",
		c.Path, c.BusyTimeout.Milliseconds())
}

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION
// ══════════════════════════════════════════════════════════════════════════════

// Connection wraps the sqlx handle with lifecycle management.
type Connection struct {
	db     *sqlx.DB
	config Config

	mu     sync.Mutex
	closed bool
}

// NewConnection opens (or creates) the database, applies the schema, and
// verifies connectivity.
func NewConnection(ctx context.Context, config Config) (*Connection, error) {
	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent handlers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	conn := &Connection{db: db, config: config}
	if err := conn.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return conn, nil
}

// DB exposes the underlying handle for repositories.
func (c *Connection) DB() *sqlx.DB {
	return c.db
}

// Ping verifies the connection is alive.
func (c *Connection) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection is closed")
	}
	return c.db.PingContext(ctx)
}

// Health reports connection health for readiness checks.
func (c *Connection) Health(ctx context.Context) error {
	return c.Ping(ctx)
}

// Close closes the database.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEMA
// ══════════════════════════════════════════════════════════════════════════════

// migrate applies the schema. Statements are idempotent so the call is
// safe on every startup; the schema mirrors the postgres migrations.
func (c *Connection) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);

	CREATE TABLE IF NOT EXISTS events (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL REFERENCES users(id),
		event_type  TEXT NOT NULL,
		payload     TEXT NOT NULL DEFAULT '{}',
		occurred_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_type_occurred ON events(event_type, occurred_at);
	CREATE INDEX IF NOT EXISTS idx_events_user_occurred ON events(user_id, occurred_at);

	CREATE TABLE IF NOT EXISTS progress (
		user_id          TEXT NOT NULL REFERENCES users(id),
		unit_group_id    TEXT NOT NULL,
		item_id          TEXT NOT NULL,
		attempts         INTEGER NOT NULL DEFAULT 0,
		correct_attempts INTEGER NOT NULL DEFAULT 0,
		status           TEXT NOT NULL DEFAULT 'locked'
			CHECK (status IN ('locked', 'unlocked', 'completed')),
		last_attempt_at  TIMESTAMP,
		created_at       TIMESTAMP NOT NULL,
		updated_at       TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, unit_group_id, item_id),
		CHECK (correct_attempts >= 0 AND correct_attempts <= attempts)
	);
	CREATE INDEX IF NOT EXISTS idx_progress_group_recency
		ON progress(user_id, unit_group_id, last_attempt_at DESC);
	`

	_, err := c.db.ExecContext(ctx, schema)
	return err
}
