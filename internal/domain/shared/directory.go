package shared

import (
	"context"
	"time"
)

// UserDirectory exposes the externally-owned user registry. Accounts are
// created and managed by the product backend; this engine only checks
// existence (to reject writes for unknown users) and counts signups for
// the activation-rate denominator.
type UserDirectory interface {
	// Exists reports whether the user is known to the product.
	Exists(ctx context.Context, userID UserID) (bool, error)

	// CountCreatedWithin returns how many users were created inside the
	// half-open window [from, to).
	CountCreatedWithin(ctx context.Context, from, to time.Time) (int, error)
}
