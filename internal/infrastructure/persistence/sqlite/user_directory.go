package sqlite

import (
	"context"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER DIRECTORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UserDirectory implements shared.UserDirectory against the local users
// table. In embedded deployments the account sync job populates it.
type UserDirectory struct {
	conn *Connection
}

// NewUserDirectory creates a new UserDirectory.
func NewUserDirectory(conn *Connection) *UserDirectory {
	return &UserDirectory{conn: conn}
}

// Exists reports whether the user is known.
func (d *UserDirectory) Exists(ctx context.Context, userID shared.UserID) (bool, error) {
	var exists bool
	err := d.conn.DB().GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)",
		string(userID),
	)
	if err != nil {
		return false, shared.WrapError("shared", "Exists", shared.ErrPersistence, "failed to check user existence", err)
	}
	return exists, nil
}

// CountCreatedWithin returns how many users signed up in [from, to).
func (d *UserDirectory) CountCreatedWithin(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := d.conn.DB().GetContext(ctx, &count,
		"SELECT COUNT(*) FROM users WHERE created_at >= ? AND created_at < ?",
		from, to,
	)
	if err != nil {
		return 0, shared.WrapError("shared", "CountCreatedWithin", shared.ErrPersistence, "failed to count users", err)
	}
	return count, nil
}
