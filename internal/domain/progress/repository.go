package progress

import (
	"context"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Contracts for the progress store. Implementations live in
// infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Delta describes one attempt's effect on a record. The repository applies
// it atomically: counters are added, never replaced, and the status only
// moves forward regardless of what the delta asks for.
type Delta struct {
	// AttemptsDelta - how many attempts to add (1 per recorded answer).
	AttemptsDelta int

	// CorrectDelta - how many correct attempts to add.
	CorrectDelta int

	// Status - the target status. Applied only if it is ahead of the
	// stored status.
	Status Status

	// LastAttemptAt - timestamp of the attempt.
	LastAttemptAt time.Time
}

// Repository defines the progress store contract.
type Repository interface {
	// Upsert lazily creates the record for key and applies the delta,
	// returning the updated record. Counters only grow; status never
	// regresses.
	Upsert(ctx context.Context, key Key, d Delta) (*Record, error)

	// Get returns the record for key.
	// Returns ErrProgressNotFound if no attempt was ever recorded.
	Get(ctx context.Context, key Key) (*Record, error)

	// ListByGroup returns all of the user's records in one unit group,
	// ordered by last attempt descending (most recent first), which is
	// the order Streak consumes.
	ListByGroup(ctx context.Context, userID shared.UserID, groupID UnitGroupID) ([]*Record, error)

	// ListByUser returns all of the user's records across groups.
	ListByUser(ctx context.Context, userID shared.UserID) ([]*Record, error)
}

// ItemCatalog is the external collaborator that knows how many items each
// unit group requires. Content authoring owns it; the engine only reads
// the count to decide when a group is fully mastered.
type ItemCatalog interface {
	// ItemCount returns the number of required items in the group.
	ItemCount(ctx context.Context, groupID UnitGroupID) (int, error)
}
