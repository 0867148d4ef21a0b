// Package postgres implements the PostgreSQL persistence layer for Lexio Insight Hub.
package postgres

import (
	"context"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER DIRECTORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UserDirectory implements shared.UserDirectory against the users read
// model. The account service owns the table; this type only reads it.
type UserDirectory struct {
	conn *Connection
}

// NewUserDirectory creates a new UserDirectory.
func NewUserDirectory(conn *Connection) *UserDirectory {
	return &UserDirectory{conn: conn}
}

// Exists reports whether the user is known to the product.
func (d *UserDirectory) Exists(ctx context.Context, userID shared.UserID) (bool, error) {
	var exists bool
	err := d.conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)",
		string(userID),
	).Scan(&exists)
	if err != nil {
		return false, shared.WrapError("shared", "Exists", shared.ErrPersistence, "failed to check user existence", err)
	}
	return exists, nil
}

// CountCreatedWithin returns how many users signed up in [from, to).
func (d *UserDirectory) CountCreatedWithin(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := d.conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM users WHERE created_at >= $1 AND created_at < $2",
		from, to,
	).Scan(&count)
	if err != nil {
		return 0, shared.WrapError("shared", "CountCreatedWithin", shared.ErrPersistence, "failed to count users", err)
	}
	return count, nil
}
