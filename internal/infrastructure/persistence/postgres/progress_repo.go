// Package postgres implements the PostgreSQL persistence layer for Lexio Insight Hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/progress"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL. The
// forward-only status rule and the additive counter rule are enforced in
// the upsert statement itself, so concurrent writers cannot regress a row
// even without taking the application-level lock.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Upsert
// ─────────────────────────────────────────────────────────────────────────────

// Upsert lazily creates the record for key and applies the delta. Counters
// are added to the stored values; the status CASE only ever promotes.
func (r *ProgressRepository) Upsert(ctx context.Context, key progress.Key, d progress.Delta) (*progress.Record, error) {
	query := `
		INSERT INTO progress (
			user_id, unit_group_id, item_id, attempts, correct_attempts,
			status, last_attempt_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (user_id, unit_group_id, item_id) DO UPDATE SET
			attempts = progress.attempts + EXCLUDED.attempts,
			correct_attempts = progress.correct_attempts + EXCLUDED.correct_attempts,
			status = CASE
				WHEN EXCLUDED.status = 'completed' THEN 'completed'
				WHEN EXCLUDED.status = 'unlocked' AND progress.status = 'locked' THEN 'unlocked'
				ELSE progress.status
			END,
			last_attempt_at = GREATEST(COALESCE(progress.last_attempt_at, EXCLUDED.last_attempt_at), EXCLUDED.last_attempt_at),
			updated_at = EXCLUDED.updated_at
		RETURNING user_id, unit_group_id, item_id, attempts, correct_attempts,
		          status, last_attempt_at, created_at, updated_at
	`

	status := d.Status
	if !status.IsValid() {
		status = progress.StatusLocked
	}
	at := d.LastAttemptAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	row := r.conn.QueryRow(ctx, query,
		string(key.UserID),
		string(key.UnitGroupID),
		string(key.ItemID),
		d.AttemptsDelta,
		d.CorrectDelta,
		string(status),
		at,
		time.Now().UTC(),
	)

	rec, err := r.scanRecord(row)
	if err != nil {
		if shared.IsNotFound(err) {
			// RETURNING always yields a row; no rows means the insert
			// itself failed, which surfaces as a persistence error.
			return nil, shared.WrapError("progress", "Upsert", shared.ErrPersistence, "upsert returned no row", err)
		}
		return nil, err
	}
	return rec, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// Get returns the record for key.
func (r *ProgressRepository) Get(ctx context.Context, key progress.Key) (*progress.Record, error) {
	query := `
		SELECT user_id, unit_group_id, item_id, attempts, correct_attempts,
		       status, last_attempt_at, created_at, updated_at
		FROM progress
		WHERE user_id = $1 AND unit_group_id = $2 AND item_id = $3
	`

	row := r.conn.QueryRow(ctx, query,
		string(key.UserID), string(key.UnitGroupID), string(key.ItemID))
	return r.scanRecord(row)
}

// ListByGroup returns the user's records in one unit group, most recent
// attempt first. Rows that were never attempted sort last.
func (r *ProgressRepository) ListByGroup(ctx context.Context, userID shared.UserID, groupID progress.UnitGroupID) ([]*progress.Record, error) {
	query := `
		SELECT user_id, unit_group_id, item_id, attempts, correct_attempts,
		       status, last_attempt_at, created_at, updated_at
		FROM progress
		WHERE user_id = $1 AND unit_group_id = $2
		ORDER BY last_attempt_at DESC NULLS LAST
	`

	rows, err := r.conn.Query(ctx, query, string(userID), string(groupID))
	if err != nil {
		return nil, shared.WrapError("progress", "ListByGroup", shared.ErrPersistence, "failed to query progress", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// ListByUser returns all of the user's records across groups.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]*progress.Record, error) {
	query := `
		SELECT user_id, unit_group_id, item_id, attempts, correct_attempts,
		       status, last_attempt_at, created_at, updated_at
		FROM progress
		WHERE user_id = $1
		ORDER BY unit_group_id ASC, last_attempt_at DESC NULLS LAST
	`

	rows, err := r.conn.Query(ctx, query, string(userID))
	if err != nil {
		return nil, shared.WrapError("progress", "ListByUser", shared.ErrPersistence, "failed to query progress", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// scanRecord scans a single progress record from a row.
func (r *ProgressRepository) scanRecord(row pgx.Row) (*progress.Record, error) {
	var (
		rec           progress.Record
		userID        string
		groupID       string
		itemID        string
		status        string
		lastAttemptAt *time.Time
	)

	err := row.Scan(
		&userID,
		&groupID,
		&itemID,
		&rec.Attempts,
		&rec.CorrectAttempts,
		&status,
		&lastAttemptAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan progress record: %w", err)
	}

	rec.UserID = shared.UserID(userID)
	rec.UnitGroupID = progress.UnitGroupID(groupID)
	rec.ItemID = progress.ItemID(itemID)
	rec.Status = progress.Status(status)
	if lastAttemptAt != nil {
		t := lastAttemptAt.UTC()
		rec.LastAttemptAt = &t
	}

	return &rec, nil
}

// scanRecords scans multiple progress records from rows.
func (r *ProgressRepository) scanRecords(rows pgx.Rows) ([]*progress.Record, error) {
	var records []*progress.Record

	for rows.Next() {
		var (
			rec           progress.Record
			userID        string
			groupID       string
			itemID        string
			status        string
			lastAttemptAt *time.Time
		)

		err := rows.Scan(
			&userID,
			&groupID,
			&itemID,
			&rec.Attempts,
			&rec.CorrectAttempts,
			&status,
			&lastAttemptAt,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress record: %w", err)
		}

		rec.UserID = shared.UserID(userID)
		rec.UnitGroupID = progress.UnitGroupID(groupID)
		rec.ItemID = progress.ItemID(itemID)
		rec.Status = progress.Status(status)
		if lastAttemptAt != nil {
			t := lastAttemptAt.UTC()
			rec.LastAttemptAt = &t
		}

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}
