// Package progress contains the per-user mastery model: one record per
// (user, unit group, item), attempt counters, forward-only unlock status,
// accuracy and streak semantics. This is the core of the learning
// progression - no external dependencies live here.
package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// UnitGroupID identifies a learning unit group (one "chapter" of keywords).
type UnitGroupID string

// IsValid checks the unit group ID format.
func (g UnitGroupID) IsValid() bool {
	s := string(g)
	return len(s) >= 1 && len(s) <= 64 && !strings.ContainsAny(s, " \t\n\r/")
}

// String returns the string representation.
func (g UnitGroupID) String() string {
	return string(g)
}

// ItemID identifies one learnable item (a keyword) inside a unit group.
type ItemID string

// IsValid checks the item ID format.
func (i ItemID) IsValid() bool {
	s := string(i)
	return len(s) >= 1 && len(s) <= 64 && !strings.ContainsAny(s, " \t\n\r/")
}

// String returns the string representation.
func (i ItemID) String() string {
	return string(i)
}

// Key addresses one progress record.
type Key struct {
	UserID      shared.UserID
	UnitGroupID UnitGroupID
	ItemID      ItemID
}

// IsValid checks all three components.
func (k Key) IsValid() bool {
	return k.UserID.IsValid() && k.UnitGroupID.IsValid() && k.ItemID.IsValid()
}

// String renders the key for logging and lock naming.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.UserID, k.UnitGroupID, k.ItemID)
}

// GroupKey returns the (user, group) pair portion, used for write
// serialization: snapshot reads and the write must not interleave with
// another attempt in the same group.
func (k Key) GroupKey() string {
	return fmt.Sprintf("%s/%s", k.UserID, k.UnitGroupID)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS ENUM
// ══════════════════════════════════════════════════════════════════════════════

// Status is the unlock state of one item for one user. Transitions only
// move forward (locked → unlocked → completed), never backward.
type Status string

const (
	// StatusLocked - attempted but not yet answered correctly.
	StatusLocked Status = "locked"
	// StatusUnlocked - answered correctly at least once (mastered).
	StatusUnlocked Status = "unlocked"
	// StatusCompleted - the mastery that finished the whole unit group;
	// terminal, authorizes the next-stage transition.
	StatusCompleted Status = "completed"
)

// IsValid checks that the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusLocked, StatusUnlocked, StatusCompleted:
		return true
	default:
		return false
	}
}

// rank orders statuses for the forward-only rule.
func (s Status) rank() int {
	switch s {
	case StatusLocked:
		return 0
	case StatusUnlocked:
		return 1
	case StatusCompleted:
		return 2
	default:
		return -1
	}
}

// Before reports whether s precedes other in the forward order.
func (s Status) Before(other Status) bool {
	return s.rank() < other.rank()
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: RECORD
// ══════════════════════════════════════════════════════════════════════════════

// StreakAccuracyThreshold is the per-record accuracy bar a record must
// meet to count toward the trailing streak.
const StreakAccuracyThreshold = 0.8

// Record is the persistent mastery state of one (user, unit group, item).
// Created lazily on the first attempt; counters only grow; never deleted.
type Record struct {
	UserID      shared.UserID
	UnitGroupID UnitGroupID
	ItemID      ItemID

	// Attempts - total answers recorded, correct or not.
	Attempts int

	// CorrectAttempts - correct answers only. Invariant: never exceeds
	// Attempts.
	CorrectAttempts int

	// Status - forward-only unlock state.
	Status Status

	// LastAttemptAt - when the most recent attempt was recorded.
	LastAttemptAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecord creates the lazily-initialized record for a first attempt.
func NewRecord(key Key, now time.Time) *Record {
	return &Record{
		UserID:      key.UserID,
		UnitGroupID: key.UnitGroupID,
		ItemID:      key.ItemID,
		Status:      StatusLocked,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Key returns the record's address.
func (r *Record) Key() Key {
	return Key{UserID: r.UserID, UnitGroupID: r.UnitGroupID, ItemID: r.ItemID}
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// RegisterAttempt applies one attempt to the record. Counters only grow;
// an incorrect attempt never touches status, so completed items stay
// completed no matter what follows.
func (r *Record) RegisterAttempt(correct bool, at time.Time) {
	r.Attempts++
	if correct {
		r.CorrectAttempts++
		if r.Status == StatusLocked {
			r.Status = StatusUnlocked
		}
	}
	t := at
	r.LastAttemptAt = &t
	r.UpdatedAt = at
}

// AdvanceStatus moves the status forward. Attempts to move backward
// return ErrStatusRegression and leave the record untouched; advancing to
// the current status is a no-op.
func (r *Record) AdvanceStatus(next Status, at time.Time) error {
	if !next.IsValid() {
		return shared.ErrStatusRegression
	}
	if next.rank() < r.Status.rank() {
		return shared.ErrStatusRegression
	}
	if next == r.Status {
		return nil
	}
	r.Status = next
	r.UpdatedAt = at
	return nil
}

// Accuracy returns correct/attempts with a zero guard.
func (r *Record) Accuracy() float64 {
	return shared.Ratio(r.CorrectAttempts, r.Attempts)
}

// IsMastered reports whether the item has at least one correct answer.
func (r *Record) IsMastered() bool {
	return r.CorrectAttempts > 0
}

// MeetsStreakBar reports whether the record's accuracy clears the streak
// threshold.
func (r *Record) MeetsStreakBar() bool {
	return r.Accuracy() >= StreakAccuracyThreshold
}

// String returns a compact representation for logging.
func (r *Record) String() string {
	return fmt.Sprintf("Record{%s attempts=%d correct=%d status=%s}",
		r.Key(), r.Attempts, r.CorrectAttempts, r.Status)
}

// Clone creates a copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	if r.LastAttemptAt != nil {
		t := *r.LastAttemptAt
		clone.LastAttemptAt = &t
	}
	return &clone
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// MasteredCount counts records with at least one correct answer. This is
// the "completed keywords" figure the milestone detector works from.
func MasteredCount(records []*Record) int {
	n := 0
	for _, r := range records {
		if r.IsMastered() {
			n++
		}
	}
	return n
}

// Streak counts trailing consecutive records meeting the accuracy bar.
// Records must be ordered most recent first; counting stops at the first
// record below the threshold.
func Streak(records []*Record) int {
	n := 0
	for _, r := range records {
		if !r.MeetsStreakBar() {
			break
		}
		n++
	}
	return n
}
