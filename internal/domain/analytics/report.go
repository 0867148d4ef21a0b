package analytics

import (
	"context"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/progress"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGAGEMENT REPORT
// ══════════════════════════════════════════════════════════════════════════════

// DefaultFunnelSteps returns the product's canonical acquisition funnel,
// from first launch to the magic moment.
func DefaultFunnelSteps() []event.Type {
	return []event.Type{
		event.TypeAppLaunch,
		event.TypeOnboardingComplete,
		event.TypeVTPRStart,
		event.TypeVTPRComplete,
		event.TypeMagicMomentComplete,
	}
}

// EngagementReport is the aggregate the dashboard reads: funnel,
// activation, retention, and daily activity for one window. Reports are
// cached and periodically rebuilt; GeneratedAt tells consumers how stale
// they are looking.
type EngagementReport struct {
	Window        shared.TimeRange `json:"window"`
	Funnel        []FunnelStep     `json:"funnel"`
	Activation    Activation       `json:"activation"`
	Retention     Retention        `json:"retention"`
	DailyActivity []TimeBucket     `json:"daily_activity"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// EngagementParams carries everything BuildEngagementReport needs. The
// caller loads events and the new-user count; the build itself is pure.
type EngagementParams struct {
	Window shared.TimeRange
	Events []event.Event

	// NewUsers - users created within the window, from the directory.
	NewUsers int

	// SessionStartType / ActivationType - metric anchors; zero values
	// fall back to the product defaults.
	SessionStartType event.Type
	ActivationType   event.Type

	// FunnelSteps - nil means the canonical funnel.
	FunnelSteps []event.Type

	// Bucket - daily activity bucket size; zero means one day.
	Bucket time.Duration
}

// BuildEngagementReport composes the full engagement report from loaded
// events.
func BuildEngagementReport(p EngagementParams, generatedAt time.Time) (*EngagementReport, error) {
	sessionType := p.SessionStartType
	if sessionType == "" {
		sessionType = DefaultSessionStartType
	}
	activationType := p.ActivationType
	if activationType == "" {
		activationType = DefaultActivationType
	}
	steps := p.FunnelSteps
	if len(steps) == 0 {
		steps = DefaultFunnelSteps()
	}

	funnel, err := ComputeFunnel(p.Events, steps)
	if err != nil {
		return nil, err
	}

	daily, err := ComputeTimeSeries(p.Events, p.Window, p.Bucket)
	if err != nil {
		return nil, err
	}

	return &EngagementReport{
		Window:        p.Window,
		Funnel:        funnel,
		Activation:    ComputeActivation(DistinctUsers(p.Events, activationType), p.NewUsers),
		Retention:     ComputeRetention(p.Events, sessionType),
		DailyActivity: daily,
		GeneratedAt:   generatedAt,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// USER STATS
// ══════════════════════════════════════════════════════════════════════════════

// UserStats is the per-user window summary served to the profile screen.
type UserStats struct {
	UserID shared.UserID    `json:"user_id"`
	Window shared.TimeRange `json:"window"`

	TotalEvents int            `json:"total_events"`
	EventCounts map[string]int `json:"event_counts"`
	ActiveDays  int            `json:"active_days"`

	Attempts        int     `json:"attempts"`
	CorrectAttempts int     `json:"correct_attempts"`
	Accuracy        float64 `json:"accuracy"`
	MasteredItems   int     `json:"mastered_items"`
	CompletedGroups int     `json:"completed_groups"`

	GeneratedAt time.Time `json:"generated_at"`
}

// BuildUserStats composes per-user stats from the user's events in the
// window and their full progress history.
func BuildUserStats(userID shared.UserID, window shared.TimeRange, events []event.Event, records []*progress.Record, generatedAt time.Time) *UserStats {
	counts := make(map[string]int)
	for t, n := range CountByType(events) {
		counts[t.String()] = n
	}

	attempts, correct, mastered, completedGroups := 0, 0, 0, 0
	seenGroups := make(map[progress.UnitGroupID]struct{})
	for _, r := range records {
		attempts += r.Attempts
		correct += r.CorrectAttempts
		if r.IsMastered() {
			mastered++
		}
		if r.Status == progress.StatusCompleted {
			if _, ok := seenGroups[r.UnitGroupID]; !ok {
				seenGroups[r.UnitGroupID] = struct{}{}
				completedGroups++
			}
		}
	}

	return &UserStats{
		UserID:          userID,
		Window:          window,
		TotalEvents:     len(events),
		EventCounts:     counts,
		ActiveDays:      ActiveDays(events),
		Attempts:        attempts,
		CorrectAttempts: correct,
		Accuracy:        shared.Ratio(correct, attempts),
		MasteredItems:   mastered,
		CompletedGroups: completedGroups,
		GeneratedAt:     generatedAt,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORT CACHE PORT
// ══════════════════════════════════════════════════════════════════════════════

// ReportCache stores computed reports so repeated dashboard reads do not
// rescan the event store. Implementations own key derivation and TTLs.
//
// Misses return ErrReportNotFound; callers recompute and Set. A failing
// cache must degrade to recomputation, never to a request failure.
type ReportCache interface {
	GetEngagement(ctx context.Context, window shared.TimeRange) (*EngagementReport, error)
	SetEngagement(ctx context.Context, report *EngagementReport) error

	GetFunnel(ctx context.Context, steps []event.Type, window shared.TimeRange) ([]FunnelStep, error)
	SetFunnel(ctx context.Context, steps []event.Type, window shared.TimeRange, result []FunnelStep) error

	GetUserStats(ctx context.Context, userID shared.UserID, window shared.TimeRange) (*UserStats, error)
	SetUserStats(ctx context.Context, stats *UserStats) error

	// InvalidateUser drops the user's cached stats after new activity.
	InvalidateUser(ctx context.Context, userID shared.UserID) error
}
