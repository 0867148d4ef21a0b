// Package shared contains common domain types, errors, events, and value objects.
package shared

import (
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents the product-wide user identifier. Users are owned by an
// external backend; this engine treats the ID as opaque but bounded.
type UserID string

var userIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// IsValid checks if the user ID has an acceptable format.
func (u UserID) IsValid() bool {
	return userIDRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the user ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	u := UserID(strings.TrimSpace(id))
	if !u.IsValid() {
		return "", NewDomainError("shared", "NewUserID", ErrInvalidID, "invalid user id format")
	}
	return u, nil
}

// EventID represents a stored behavioral event identifier (ULID).
type EventID string

// ULID: 26 characters of Crockford base32.
var eventIDRegex = regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{26}$`)

// IsValid checks if the event ID is a well-formed ULID.
func (e EventID) IsValid() bool {
	return eventIDRegex.MatchString(string(e))
}

// String returns the string representation.
func (e EventID) String() string {
	return string(e)
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents a half-open time window [From, To). All analytics
// computations use half-open windows so adjacent buckets never overlap.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// IsValid checks if the time range is valid.
func (t TimeRange) IsValid() bool {
	return !t.From.IsZero() && !t.To.IsZero() && t.From.Before(t.To)
}

// Duration returns the duration of the time range.
func (t TimeRange) Duration() time.Duration {
	return t.To.Sub(t.From)
}

// Contains checks if a time falls within the half-open range.
func (t TimeRange) Contains(tm time.Time) bool {
	return !tm.Before(t.From) && tm.Before(t.To)
}

// NewTimeRange creates a new TimeRange with validation.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	tr := TimeRange{From: from.UTC(), To: to.UTC()}
	if !tr.IsValid() {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrValueOutOfRange, "'from' must be before 'to'")
	}
	return tr, nil
}

// Last24Hours returns a TimeRange for the last 24 hours.
func Last24Hours() TimeRange {
	now := time.Now().UTC()
	return TimeRange{From: now.Add(-24 * time.Hour), To: now}
}

// LastNDays returns a TimeRange for the last N days.
func LastNDays(n int) TimeRange {
	now := time.Now().UTC()
	return TimeRange{From: now.AddDate(0, 0, -n), To: now}
}

// ═══════════════════════════════════════════════════════════════════════════
// Ratio helper
// ═══════════════════════════════════════════════════════════════════════════

// Ratio divides num by den, returning 0 when the denominator is 0.
// Every rate in the engine (accuracy, conversion, activation, retention)
// goes through this guard so a zero-user window yields 0, never NaN.
func Ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters for event listings.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize)
}
