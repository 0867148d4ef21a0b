// Package postgres implements the PostgreSQL persistence layer for Lexio Insight Hub.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EventRepository implements event.Repository for PostgreSQL. The events
// table is append-only: this type exposes no update or delete path.
type EventRepository struct {
	conn *Connection
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(conn *Connection) *EventRepository {
	return &EventRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Append
// ─────────────────────────────────────────────────────────────────────────────

// Append stores one event and returns its assigned ULID. The id is
// generated here, not by the caller, so every stored event gets exactly one
// identity regardless of client retries reaching the handler layer.
func (r *EventRepository) Append(ctx context.Context, e *event.Event) (shared.EventID, error) {
	query := `
		INSERT INTO events (id, user_id, event_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event payload: %w", err)
	}

	id := shared.EventID(ulid.Make().String())

	_, err = r.conn.Exec(ctx, query,
		string(id),
		string(e.UserID),
		string(e.Type),
		payloadJSON,
		e.Timestamp,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return "", shared.ErrEventUserUnknown
		}
		return "", shared.WrapError("event", "Append", shared.ErrPersistence, "event store rejected the write", err)
	}

	return id, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Query
// ─────────────────────────────────────────────────────────────────────────────

// Query returns events matching the filter, ordered by occurred_at
// ascending then id, which keeps pagination stable across pages.
func (r *EventRepository) Query(ctx context.Context, f event.Filter) ([]*event.Event, error) {
	var (
		conditions []string
		args       []interface{}
	)

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.UserID.IsEmpty() {
		conditions = append(conditions, "user_id = "+arg(string(f.UserID)))
	}
	if len(f.Types) > 0 {
		placeholders := make([]string, len(f.Types))
		for i, t := range f.Types {
			placeholders[i] = arg(string(t))
		}
		conditions = append(conditions, "event_type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if f.Window.IsValid() {
		conditions = append(conditions, "occurred_at >= "+arg(f.Window.From))
		conditions = append(conditions, "occurred_at < "+arg(f.Window.To))
	}

	query := "SELECT id, user_id, event_type, payload, occurred_at FROM events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY occurred_at ASC, id ASC"
	query += " LIMIT " + arg(f.Pagination.Limit())
	query += " OFFSET " + arg(f.Pagination.Offset())

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.WrapError("event", "Query", shared.ErrPersistence, "failed to query events", err)
	}
	defer rows.Close()

	return r.scanEvents(rows)
}

// CountInWindow returns the number of events inside the half-open window.
func (r *EventRepository) CountInWindow(ctx context.Context, window shared.TimeRange) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM events WHERE occurred_at >= $1 AND occurred_at < $2",
		window.From, window.To,
	).Scan(&count)
	if err != nil {
		return 0, shared.WrapError("event", "CountInWindow", shared.ErrPersistence, "failed to count events", err)
	}
	return count, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// scanEvents scans multiple events from rows.
func (r *EventRepository) scanEvents(rows pgx.Rows) ([]*event.Event, error) {
	var events []*event.Event

	for rows.Next() {
		var (
			e           event.Event
			id          string
			userID      string
			eventType   string
			payloadJSON []byte
			occurredAt  time.Time
		)

		if err := rows.Scan(&id, &userID, &eventType, &payloadJSON, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		e.ID = shared.EventID(id)
		e.UserID = shared.UserID(userID)
		e.Type = event.Type(eventType)
		e.Timestamp = occurredAt.UTC()
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
			}
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return events, nil
}
