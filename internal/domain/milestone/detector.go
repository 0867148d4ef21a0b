// Package milestone turns progress transitions into discrete celebration
// and gating signals. The detector is a pure function over the previous
// and current progress snapshots: each milestone fires exactly on the
// crossing transition, so de-duplication is a property of the function
// rather than caller convention.
package milestone

import (
	"fmt"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/progress"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MILESTONE TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Type identifies a milestone kind.
type Type string

const (
	// TypeKeywordCompleted - an item was mastered for the first time.
	TypeKeywordCompleted Type = "keyword_completed"
	// TypeHalfComplete - mastery crossed half of the group's items.
	TypeHalfComplete Type = "half_complete"
	// TypePerfectStreak - the trailing accuracy streak reached the bar.
	TypePerfectStreak Type = "perfect_streak"
	// TypeSpeedBonus - the just-mastered item was finished fast.
	TypeSpeedBonus Type = "speed_bonus"
	// TypeAllComplete - every item in the group is mastered. The "magic
	// moment": terminal, authorizes the next content stage.
	TypeAllComplete Type = "all_complete"
)

// IsValid checks that the type is a known milestone kind.
func (t Type) IsValid() bool {
	switch t {
	case TypeKeywordCompleted, TypeHalfComplete, TypePerfectStreak, TypeSpeedBonus, TypeAllComplete:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t Type) String() string {
	return string(t)
}

// Detection thresholds.
const (
	// PerfectStreakThreshold - trailing clean records needed for a
	// perfect streak.
	PerfectStreakThreshold = 5
	// SpeedBonusMax - an item mastered in under this duration earns the
	// speed bonus.
	SpeedBonusMax = 30 * time.Second
)

// ══════════════════════════════════════════════════════════════════════════════
// MILESTONE VALUE OBJECT
// ══════════════════════════════════════════════════════════════════════════════

// Milestone is a stateless signal emitted by the detector. It is not
// persisted here; notification and reward side effects belong to the
// consumers.
type Milestone struct {
	Type        Type
	UserID      shared.UserID
	UnitGroupID progress.UnitGroupID

	// ItemID is set for item-scoped milestones (keyword_completed,
	// speed_bonus), empty for group-scoped ones.
	ItemID progress.ItemID

	MasteredCount int
	TotalCount    int
	Streak        int
	Elapsed       time.Duration
}

// IsTerminal reports whether this milestone is the one-time gate to the
// next content stage.
func (m Milestone) IsTerminal() bool {
	return m.Type == TypeAllComplete
}

// Payload renders the milestone for notification and event publishing.
func (m Milestone) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"type":          string(m.Type),
		"user_id":       m.UserID.String(),
		"unit_group_id": m.UnitGroupID.String(),
	}
	if m.ItemID != "" {
		p["item_id"] = m.ItemID.String()
	}
	switch m.Type {
	case TypeHalfComplete, TypeAllComplete:
		p["mastered_count"] = m.MasteredCount
		p["total_count"] = m.TotalCount
	case TypePerfectStreak:
		p["streak"] = m.Streak
	case TypeSpeedBonus:
		p["elapsed_ms"] = m.Elapsed.Milliseconds()
	}
	return p
}

// String returns a compact representation for logging.
func (m Milestone) String() string {
	return fmt.Sprintf("Milestone{%s %s/%s %d/%d}",
		m.Type, m.UserID, m.UnitGroupID, m.MasteredCount, m.TotalCount)
}

// ══════════════════════════════════════════════════════════════════════════════
// DETECTOR
// ══════════════════════════════════════════════════════════════════════════════

// Update describes the attempt that moved the snapshot from prev to curr.
type Update struct {
	UserID      shared.UserID
	UnitGroupID progress.UnitGroupID
	ItemID      progress.ItemID

	// NewlyMastered - this attempt was the item's first correct answer.
	NewlyMastered bool

	// SessionElapsed - time spent on the item when it was mastered.
	// Zero when no session timing is available.
	SessionElapsed time.Duration
}

// Detector evaluates milestone conditions after every recorded attempt.
// It holds no state: callers supply the previous and current snapshots
// and receive only the newly-true milestones.
type Detector struct{}

// NewDetector creates a detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect returns the milestones that became true between prev and curr,
// in fixed emission order: keyword_completed first, then half_complete,
// perfect_streak, speed_bonus, and all_complete last.
//
// Crossing semantics throughout: a condition that was already true in
// prev does not fire again, so all_complete is emitted exactly once per
// (user, unit group) no matter how many attempts follow.
func (d *Detector) Detect(u Update, prev, curr progress.Snapshot) []Milestone {
	var out []Milestone

	base := Milestone{
		UserID:        u.UserID,
		UnitGroupID:   u.UnitGroupID,
		MasteredCount: curr.MasteredCount,
		TotalCount:    curr.TotalCount,
		Streak:        curr.Streak,
	}

	if u.NewlyMastered {
		m := base
		m.Type = TypeKeywordCompleted
		m.ItemID = u.ItemID
		out = append(out, m)
	}

	if half := curr.TotalCount / 2; half > 0 &&
		prev.MasteredCount < half && curr.MasteredCount >= half &&
		curr.MasteredCount < curr.TotalCount {
		m := base
		m.Type = TypeHalfComplete
		out = append(out, m)
	}

	if prev.Streak < PerfectStreakThreshold && curr.Streak >= PerfectStreakThreshold {
		m := base
		m.Type = TypePerfectStreak
		out = append(out, m)
	}

	if u.NewlyMastered && u.SessionElapsed > 0 && u.SessionElapsed < SpeedBonusMax {
		m := base
		m.Type = TypeSpeedBonus
		m.ItemID = u.ItemID
		m.Elapsed = u.SessionElapsed
		out = append(out, m)
	}

	if curr.TotalCount > 0 &&
		prev.MasteredCount < curr.TotalCount && curr.MasteredCount >= curr.TotalCount {
		m := base
		m.Type = TypeAllComplete
		out = append(out, m)
	}

	return out
}
