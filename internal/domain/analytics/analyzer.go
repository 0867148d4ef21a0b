// Package analytics aggregates raw behavioral events into conversion
// funnels, activation and retention rates, and time-series buckets. Every
// computation here is a pure function over a loaded event slice: the read
// path is repeatable and idempotent, safe to run concurrently with
// ingestion under eventual consistency.
package analytics

import (
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
	"github.com/lexio-app/lexio-insight-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DESIGNATED EVENT TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Metric anchor events. Both are configurable per deployment; these are
// the product defaults.
const (
	// DefaultSessionStartType marks one app session for retention.
	DefaultSessionStartType = event.TypeSessionStart
	// DefaultActivationType is the terminal activation event - finishing
	// the first full learning unit.
	DefaultActivationType = event.TypeMagicMomentComplete
)

// MaxBuckets bounds a time-series request so a tiny bucket over a huge
// window cannot blow up memory.
const MaxBuckets = 1000

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrTooManyBuckets - the bucket size slices the window into more
	// than MaxBuckets pieces.
	ErrTooManyBuckets = shared.NewDomainError("analytics", "ComputeTimeSeries", shared.ErrValueOutOfRange, "bucket size too small for window")
)

// ══════════════════════════════════════════════════════════════════════════════
// FUNNEL
// ══════════════════════════════════════════════════════════════════════════════

// FunnelStep is one stage of an ordered conversion funnel.
type FunnelStep struct {
	StepName  string `json:"step_name"`
	StepIndex int    `json:"step_index"`
	UserCount int    `json:"user_count"`

	// ConversionRate - 1.0 for step 0; userCount[i] / userCount[i-1]
	// for later steps, 0 when the previous step had no users.
	ConversionRate float64 `json:"conversion_rate"`
}

// ComputeFunnel counts distinct users per declared step over the loaded
// events. Steps are ordered by declaration, not by each user's actual
// event order: a user who fired step 3 without step 1 still counts at
// step 3. The callers own window filtering - pass events already limited
// to the window of interest.
func ComputeFunnel(events []event.Event, steps []event.Type) ([]FunnelStep, error) {
	if len(steps) == 0 {
		return nil, shared.ErrEmptyFunnel
	}

	usersPerType := usersByType(events)

	out := make([]FunnelStep, 0, len(steps))
	prevCount := 0
	for i, step := range steps {
		count := len(usersPerType[step])

		rate := 1.0
		if i > 0 {
			rate = shared.Ratio(count, prevCount)
		}

		out = append(out, FunnelStep{
			StepName:       step.String(),
			StepIndex:      i,
			UserCount:      count,
			ConversionRate: rate,
		})
		prevCount = count
	}
	return out, nil
}

// ValidateSteps checks every step name against the event vocabulary,
// returning the typed steps. Unknown or malformed names are rejected at
// this boundary, never silently counted as zero.
func ValidateSteps(names []string) ([]event.Type, error) {
	if len(names) == 0 {
		return nil, shared.ErrEmptyFunnel
	}
	out := make([]event.Type, 0, len(names))
	for _, name := range names {
		t, err := event.ParseType(name)
		if err != nil {
			return nil, shared.WrapError("analytics", "ValidateSteps", shared.ErrValidation, "unknown funnel step "+name, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVATION & RETENTION
// ══════════════════════════════════════════════════════════════════════════════

// Activation is the activation-rate report for one window.
type Activation struct {
	// ActivatedUsers - distinct users who fired the terminal activation
	// event in the window.
	ActivatedUsers int `json:"activated_users"`

	// NewUsers - users created in the window (from the user directory).
	NewUsers int `json:"new_users"`

	Rate float64 `json:"rate"`
}

// ComputeActivation builds the activation report from pre-counted
// figures. A window with no new users yields rate 0, not an error.
func ComputeActivation(activatedUsers, newUsers int) Activation {
	return Activation{
		ActivatedUsers: activatedUsers,
		NewUsers:       newUsers,
		Rate:           shared.Ratio(activatedUsers, newUsers),
	}
}

// Retention is the multi-session retention report for one window.
type Retention struct {
	// SessionUsers - distinct users with at least one session start.
	SessionUsers int `json:"session_users"`

	// ReturningUsers - users with two or more session starts. A rough
	// multi-session proxy, not calendar-day retention.
	ReturningUsers int `json:"returning_users"`

	Rate float64 `json:"rate"`
}

// ComputeRetention reports the fraction of users who started at least
// two sessions among those who started at least one.
func ComputeRetention(events []event.Event, sessionType event.Type) Retention {
	sessions := make(map[shared.UserID]int)
	for _, e := range events {
		if e.Type == sessionType {
			sessions[e.UserID]++
		}
	}

	returning := 0
	for _, n := range sessions {
		if n >= 2 {
			returning++
		}
	}

	return Retention{
		SessionUsers:   len(sessions),
		ReturningUsers: returning,
		Rate:           shared.Ratio(returning, len(sessions)),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TIME SERIES
// ══════════════════════════════════════════════════════════════════════════════

// TimeBucket is one slice of an event time series.
type TimeBucket struct {
	Start       time.Time `json:"start"`
	Count       int       `json:"count"`
	UniqueUsers int       `json:"unique_users"`
}

// ComputeTimeSeries distributes events into fixed-size buckets across the
// window, empty buckets included so the series is continuous. Events
// outside the window are skipped, not an error.
func ComputeTimeSeries(events []event.Event, window shared.TimeRange, bucket time.Duration) ([]TimeBucket, error) {
	if !window.To.After(window.From) {
		return nil, shared.ErrInvalidWindow
	}
	if bucket <= 0 {
		bucket = timeutil.DefaultBucket
	}

	n := timeutil.BucketsBetween(window.From, window.To, bucket)
	if n > MaxBuckets {
		return nil, ErrTooManyBuckets
	}

	out := make([]TimeBucket, n)
	users := make([]map[shared.UserID]struct{}, n)
	for i := range out {
		out[i].Start = window.From.Add(time.Duration(i) * bucket)
		users[i] = make(map[shared.UserID]struct{})
	}

	for _, e := range events {
		if !window.Contains(e.Timestamp) {
			continue
		}
		idx := timeutil.BucketIndex(e.Timestamp, window.From, bucket)
		if idx < 0 || idx >= n {
			continue
		}
		out[idx].Count++
		users[idx][e.UserID] = struct{}{}
	}

	for i := range out {
		out[i].UniqueUsers = len(users[i])
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COUNTING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// DistinctUsers counts users who produced the given event type.
func DistinctUsers(events []event.Event, t event.Type) int {
	seen := make(map[shared.UserID]struct{})
	for _, e := range events {
		if e.Type == t {
			seen[e.UserID] = struct{}{}
		}
	}
	return len(seen)
}

// CountByType tallies events per type.
func CountByType(events []event.Event) map[event.Type]int {
	out := make(map[event.Type]int)
	for _, e := range events {
		out[e.Type]++
	}
	return out
}

// ActiveDays counts distinct UTC days on which at least one event
// occurred.
func ActiveDays(events []event.Event) int {
	days := make(map[string]struct{})
	for _, e := range events {
		days[timeutil.FormatDateStr(e.Timestamp)] = struct{}{}
	}
	return len(days)
}

// usersByType indexes distinct users per event type in one pass.
func usersByType(events []event.Event) map[event.Type]map[shared.UserID]struct{} {
	out := make(map[event.Type]map[shared.UserID]struct{})
	for _, e := range events {
		set, ok := out[e.Type]
		if !ok {
			set = make(map[shared.UserID]struct{})
			out[e.Type] = set
		}
		set[e.UserID] = struct{}{}
	}
	return out
}
