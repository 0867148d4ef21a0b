package sqlite

import (
	"database/sql"
	"errors"
	"strings"
)

// The cgo-free driver surfaces constraint failures as plain error strings
// rather than typed errors, so classification is textual.

// isForeignKeyViolation reports whether the error is a FOREIGN KEY
// constraint failure.
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// isNoRows reports whether the error is "no rows in result set".
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
