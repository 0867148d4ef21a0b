package sqlite

import (
	"context"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/progress"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for SQLite. Like the
// postgres variant, the additive counter and forward-only status rules are
// enforced inside the upsert statement.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// progressRow maps one progress table row for sqlx scanning.
type progressRow struct {
	UserID          string     `db:"user_id"`
	UnitGroupID     string     `db:"unit_group_id"`
	ItemID          string     `db:"item_id"`
	Attempts        int        `db:"attempts"`
	CorrectAttempts int        `db:"correct_attempts"`
	Status          string     `db:"status"`
	LastAttemptAt   *time.Time `db:"last_attempt_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// toDomain converts the row to the domain entity.
func (r progressRow) toDomain() *progress.Record {
	rec := &progress.Record{
		UserID:          shared.UserID(r.UserID),
		UnitGroupID:     progress.UnitGroupID(r.UnitGroupID),
		ItemID:          progress.ItemID(r.ItemID),
		Attempts:        r.Attempts,
		CorrectAttempts: r.CorrectAttempts,
		Status:          progress.Status(r.Status),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.LastAttemptAt != nil {
		t := r.LastAttemptAt.UTC()
		rec.LastAttemptAt = &t
	}
	return rec
}

// Upsert lazily creates the record for key and applies the delta.
func (r *ProgressRepository) Upsert(ctx context.Context, key progress.Key, d progress.Delta) (*progress.Record, error) {
	query := `
		INSERT INTO progress (
			user_id, unit_group_id, item_id, attempts, correct_attempts,
			status, last_attempt_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, unit_group_id, item_id) DO UPDATE SET
			attempts = progress.attempts + excluded.attempts,
			correct_attempts = progress.correct_attempts + excluded.correct_attempts,
			status = CASE
				WHEN excluded.status = 'completed' THEN 'completed'
				WHEN excluded.status = 'unlocked' AND progress.status = 'locked' THEN 'unlocked'
				ELSE progress.status
			END,
			last_attempt_at = MAX(COALESCE(progress.last_attempt_at, excluded.last_attempt_at), excluded.last_attempt_at),
			updated_at = excluded.updated_at
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
	now := time.Now().UTC()

	var row progressRow
	err := r.conn.DB().GetContext(ctx, &row, query,
		string(key.UserID), string(key.UnitGroupID), string(key.ItemID),
		d.AttemptsDelta, d.CorrectDelta, string(status), at.UTC(), now, now,
	)
	if err != nil {
		return nil, shared.WrapError("progress", "Upsert", shared.ErrPersistence, "failed to upsert progress", err)
	}

	return row.toDomain(), nil
}

// Get returns the record for key.
func (r *ProgressRepository) Get(ctx context.Context, key progress.Key) (*progress.Record, error) {
	var row progressRow
	err := r.conn.DB().GetContext(ctx, &row,
		`SELECT user_id, unit_group_id, item_id, attempts, correct_attempts,
		        status, last_attempt_at, created_at, updated_at
		 FROM progress
		 WHERE user_id = ? AND unit_group_id = ? AND item_id = ?`,
		string(key.UserID), string(key.UnitGroupID), string(key.ItemID),
	)
	if isNoRows(err) {
		return nil, shared.ErrProgressNotFound
	}
	if err != nil {
		return nil, shared.WrapError("progress", "Get", shared.ErrPersistence, "failed to get progress", err)
	}
	return row.toDomain(), nil
}

// ListByGroup returns the user's records in one unit group, most recent
// attempt first.
func (r *ProgressRepository) ListByGroup(ctx context.Context, userID shared.UserID, groupID progress.UnitGroupID) ([]*progress.Record, error) {
	var rows []progressRow
	err := r.conn.DB().SelectContext(ctx, &rows,
		`SELECT user_id, unit_group_id, item_id, attempts, correct_attempts,
		        status, last_attempt_at, created_at, updated_at
		 FROM progress
		 WHERE user_id = ? AND unit_group_id = ?
		 ORDER BY last_attempt_at DESC NULLS LAST`,
		string(userID), string(groupID),
	)
	if err != nil {
		return nil, shared.WrapError("progress", "ListByGroup", shared.ErrPersistence, "failed to query progress", err)
	}

	records := make([]*progress.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toDomain())
	}
	return records, nil
}

// ListByUser returns all of the user's records across groups.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]*progress.Record, error) {
	var rows []progressRow
	err := r.conn.DB().SelectContext(ctx, &rows,
		`SELECT user_id, unit_group_id, item_id, attempts, correct_attempts,
		        status, last_attempt_at, created_at, updated_at
		 FROM progress
		 WHERE user_id = ?
		 ORDER BY unit_group_id ASC, last_attempt_at DESC NULLS LAST`,
		string(userID),
	)
	if err != nil {
		return nil, shared.WrapError("progress", "ListByUser", shared.ErrPersistence, "failed to query progress", err)
	}

	records := make([]*progress.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toDomain())
	}
	return records, nil
}
