// Package notify holds the outbound side-effect model of Lexio Insight Hub:
// push notifications to learners and the stage-gate call that unlocks the
// next content stage. Delivery is best-effort: callers log failures and move
// on, and a failed push never fails the learning operation that raised it.
package notify

import (
	"fmt"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/milestone"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Kind classifies a push for the mobile client's routing and rendering.
type Kind string

const (
	// KindMilestone - a celebration for a non-terminal milestone.
	KindMilestone Kind = "milestone"
	// KindMagicMoment - the big one: a unit group fully mastered.
	KindMagicMoment Kind = "magic_moment"
)

// IsValid checks that the kind is known.
func (k Kind) IsValid() bool {
	switch k {
	case KindMilestone, KindMagicMoment:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k Kind) String() string {
	return string(k)
}

// Priority orders pushes at the gateway.
type Priority int

const (
	// PriorityLow - background copy that can wait for a batch window.
	PriorityLow Priority = 1
	// PriorityNormal - regular celebration pushes.
	PriorityNormal Priority = 2
	// PriorityHigh - delivered immediately, bypasses batching.
	PriorityHigh Priority = 3
)

// String returns the string representation.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ShouldSendImmediately reports whether the push must skip any batch window.
func (p Priority) ShouldSendImmediately() bool {
	return p >= PriorityHigh
}

// ══════════════════════════════════════════════════════════════════════════════
// PUSH
// ══════════════════════════════════════════════════════════════════════════════

// Push is one notification addressed to a learner. Title and Body carry
// generic copy; Data carries the identifiers the client needs to deep-link
// and localize.
type Push struct {
	UserID    shared.UserID
	Kind      Kind
	Priority  Priority
	Title     string
	Body      string
	Data      map[string]string
	CreatedAt time.Time
}

// Validate checks the push is deliverable.
func (p Push) Validate() error {
	if !p.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if !p.Kind.IsValid() {
		return shared.NewDomainError("notify", "Validate", shared.ErrInvalidInput,
			fmt.Sprintf("unknown push kind: %q", p.Kind))
	}
	if p.Title == "" {
		return shared.NewDomainError("notify", "Validate", shared.ErrEmptyValue,
			"push title is empty")
	}
	return nil
}

// String returns a compact representation for logging.
func (p Push) String() string {
	return fmt.Sprintf("Push{%s %s %q}", p.Kind, p.UserID, p.Title)
}

// ══════════════════════════════════════════════════════════════════════════════
// COPY DECK
// Translates integration events into pushes. The copy stays generic on the
// server; the client renders unit and item names from the Data payload.
// ══════════════════════════════════════════════════════════════════════════════

// ForMilestone renders the push for a milestone integration event.
func ForMilestone(e shared.MilestoneReachedEvent) Push {
	p := Push{
		UserID:    shared.UserID(e.UserID),
		Kind:      KindMilestone,
		Priority:  PriorityNormal,
		CreatedAt: time.Now().UTC(),
		Data: map[string]string{
			"milestone_type": e.MilestoneType,
			"unit_group_id":  e.UnitGroupID,
		},
	}
	if e.ItemID != "" {
		p.Data["item_id"] = e.ItemID
	}

	switch milestone.Type(e.MilestoneType) {
	case milestone.TypeKeywordCompleted:
		p.Title = "Keyword mastered! ✅"
		p.Body = "Another keyword is locked in. Keep going!"
	case milestone.TypeHalfComplete:
		p.Title = "Halfway there! 🌗"
		mastered := detailInt(e.Detail, "mastered_count")
		total := detailInt(e.Detail, "total_count")
		if total > 0 {
			p.Body = fmt.Sprintf("You've mastered %d of %d keywords in this unit.", mastered, total)
		} else {
			p.Body = "You're halfway through this unit."
		}
	case milestone.TypePerfectStreak:
		p.Title = "Perfect streak! 🔥"
		if streak := detailInt(e.Detail, "streak"); streak > 0 {
			p.Body = fmt.Sprintf("%d flawless answers in a row. Impressive!", streak)
		} else {
			p.Body = "Flawless answers, one after another. Impressive!"
		}
	case milestone.TypeSpeedBonus:
		p.Title = "Lightning fast! ⚡"
		if ms := detailInt(e.Detail, "elapsed_ms"); ms > 0 {
			p.Body = fmt.Sprintf("Mastered in %.0f seconds. Speed bonus earned!",
				(time.Duration(ms) * time.Millisecond).Seconds())
		} else {
			p.Body = "That was quick. Speed bonus earned!"
		}
	default:
		p.Title = "Milestone reached! 🎯"
		p.Body = "You just hit a new milestone. Nice work!"
	}
	return p
}

// ForMagicMoment renders the celebration push for a completed unit group.
func ForMagicMoment(e shared.MagicMomentEvent) Push {
	body := "Every keyword mastered. The next stage is unlocked!"
	if e.CompletedCount > 0 {
		body = fmt.Sprintf("All %d keywords mastered. The next stage is unlocked!", e.CompletedCount)
	}
	return Push{
		UserID:    shared.UserID(e.UserID),
		Kind:      KindMagicMoment,
		Priority:  PriorityHigh,
		Title:     "Unit complete! 🎉",
		Body:      body,
		CreatedAt: time.Now().UTC(),
		Data: map[string]string{
			"unit_group_id": e.UnitGroupID,
		},
	}
}

// detailInt pulls an integer out of an event detail map. Events that have
// been through a JSON round trip carry numbers as float64, fresh in-process
// events carry them as int; both are accepted.
func detailInt(detail map[string]interface{}, key string) int {
	if detail == nil {
		return 0
	}
	switch v := detail[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
