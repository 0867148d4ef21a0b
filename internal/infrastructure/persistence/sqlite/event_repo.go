package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"

	"github.com/oklog/ulid/v2"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EventRepository implements event.Repository for SQLite.
type EventRepository struct {
	conn *Connection
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(conn *Connection) *EventRepository {
	return &EventRepository{conn: conn}
}

// eventRow maps one events table row for sqlx scanning.
type eventRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	EventType  string    `db:"event_type"`
	Payload    string    `db:"payload"`
	OccurredAt time.Time `db:"occurred_at"`
}

// toDomain converts the row to the domain entity.
func (r eventRow) toDomain() (*event.Event, error) {
	e := &event.Event{
		ID:        shared.EventID(r.ID),
		UserID:    shared.UserID(r.UserID),
		Type:      event.Type(r.EventType),
		Timestamp: r.OccurredAt.UTC(),
	}
	if r.Payload != "" {
		if err := json.Unmarshal([]byte(r.Payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
		}
	}
	return e, nil
}

// Append stores one event and returns its assigned ULID.
func (r *EventRepository) Append(ctx context.Context, e *event.Event) (shared.EventID, error) {
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event payload: %w", err)
	}

	id := shared.EventID(ulid.Make().String())

	_, err = r.conn.DB().ExecContext(ctx,
		`INSERT INTO events (id, user_id, event_type, payload, occurred_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(id), string(e.UserID), string(e.Type), string(payloadJSON), e.Timestamp.UTC(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return "", shared.ErrEventUserUnknown
		}
		return "", shared.WrapError("event", "Append", shared.ErrPersistence, "event store rejected the write", err)
	}

	return id, nil
}

// Query returns events matching the filter, ordered by occurred_at
// ascending then id for stable pagination.
func (r *EventRepository) Query(ctx context.Context, f event.Filter) ([]*event.Event, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if !f.UserID.IsEmpty() {
		conditions = append(conditions, "user_id = ?")
		args = append(args, string(f.UserID))
	}
	if len(f.Types) > 0 {
		placeholders := make([]string, len(f.Types))
		for i, t := range f.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		conditions = append(conditions, "event_type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if f.Window.IsValid() {
		conditions = append(conditions, "occurred_at >= ?", "occurred_at < ?")
		args = append(args, f.Window.From, f.Window.To)
	}

	query := "SELECT id, user_id, event_type, payload, occurred_at FROM events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY occurred_at ASC, id ASC LIMIT ? OFFSET ?"
	args = append(args, f.Pagination.Limit(), f.Pagination.Offset())

	var rows []eventRow
	if err := r.conn.DB().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, shared.WrapError("event", "Query", shared.ErrPersistence, "failed to query events", err)
	}

	events := make([]*event.Event, 0, len(rows))
	for _, row := range rows {
		e, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// CountInWindow returns the number of events inside the half-open window.
func (r *EventRepository) CountInWindow(ctx context.Context, window shared.TimeRange) (int, error) {
	var count int
	err := r.conn.DB().GetContext(ctx, &count,
		"SELECT COUNT(*) FROM events WHERE occurred_at >= ? AND occurred_at < ?",
		window.From, window.To,
	)
	if err != nil {
		return 0, shared.WrapError("event", "CountInWindow", shared.ErrPersistence, "failed to count events", err)
	}
	return count, nil
}
