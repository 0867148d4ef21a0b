package event

import (
	"context"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// The engine depends on the event store through this port only. The store
// is append-only: events are never updated or deleted.
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines the append-only event store contract.
type Repository interface {
	// Append stores one event and returns its assigned id.
	// Returns ErrEventUserUnknown (NotFound kind) when the user does not
	// exist, and a PersistenceError kind for store failures.
	Append(ctx context.Context, e *Event) (shared.EventID, error)

	// Query returns events matching the filter, ordered by timestamp
	// ascending, then by id for stable pagination.
	Query(ctx context.Context, f Filter) ([]*Event, error)

	// CountInWindow returns the number of events inside the window,
	// cheaper than Query when only the volume matters.
	CountInWindow(ctx context.Context, window shared.TimeRange) (int, error)
}

// Filter narrows a Query. Zero-value fields are ignored.
type Filter struct {
	// UserID - only events by this user.
	UserID shared.UserID

	// Types - only events of these types. Empty means all types.
	Types []Type

	// Window - only events inside this half-open window.
	Window shared.TimeRange

	// Pagination - page through large result sets.
	Pagination shared.Pagination
}

// WithUser narrows the filter to one user.
func (f Filter) WithUser(userID shared.UserID) Filter {
	f.UserID = userID
	return f
}

// WithTypes narrows the filter to the given types.
func (f Filter) WithTypes(types ...Type) Filter {
	f.Types = types
	return f
}

// WithWindow narrows the filter to a time window.
func (f Filter) WithWindow(w shared.TimeRange) Filter {
	f.Window = w
	return f
}

// WithPagination sets pagination.
func (f Filter) WithPagination(p shared.Pagination) Filter {
	f.Pagination = p
	return f
}
