// Package postgres implements the PostgreSQL persistence layer for Lexio Insight Hub.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE USERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create users table
-- Version: 001
--
-- Accounts are owned by the product backend; this engine only reads them
-- (existence checks on event writes, created_at for the activation-rate
-- denominator). Rows are inserted by the account service, never by us.

CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(64) PRIMARY KEY,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);
`

const migration001Down = `
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE EVENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create events table
-- Version: 002

-- Append-only behavioral event log. Rows are never updated or deleted by
-- the engine; the ULID primary key keeps insertion order and timestamp
-- order roughly aligned for cheap pagination.
CREATE TABLE IF NOT EXISTS events (
    id CHAR(26) PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL REFERENCES users(id),
    event_type VARCHAR(50) NOT NULL,
    payload JSONB NOT NULL DEFAULT '{}'::jsonb,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT valid_event_type CHECK (event_type ~ '^[a-z][a-z_]*$')
);

-- Funnel queries scan by type within a window; per-user stats scan by
-- user within a window.
CREATE INDEX IF NOT EXISTS idx_events_type_occurred ON events(event_type, occurred_at);
CREATE INDEX IF NOT EXISTS idx_events_user_occurred ON events(user_id, occurred_at);
`

const migration002Down = `
DROP TABLE IF EXISTS events;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create progress table
-- Version: 003

-- One row per (user, unit group, item), created lazily on the first
-- attempt. Counters only grow and status only moves forward; the CHECK
-- constraints back up the domain invariants at the storage boundary.
CREATE TABLE IF NOT EXISTS progress (
    user_id VARCHAR(64) NOT NULL REFERENCES users(id),
    unit_group_id VARCHAR(64) NOT NULL,
    item_id VARCHAR(64) NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    correct_attempts INTEGER NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'locked',
    last_attempt_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, unit_group_id, item_id),

    CONSTRAINT valid_status CHECK (status IN ('locked', 'unlocked', 'completed')),
    CONSTRAINT valid_attempts CHECK (attempts >= 0),
    CONSTRAINT valid_correct CHECK (correct_attempts >= 0 AND correct_attempts <= attempts)
);

-- Streak computation reads a user's group records ordered by recency.
CREATE INDEX IF NOT EXISTS idx_progress_group_recency
    ON progress(user_id, unit_group_id, last_attempt_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS progress;
`
