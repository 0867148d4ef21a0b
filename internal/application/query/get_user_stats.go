package query

import (
	"context"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/analytics"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/progress"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
	"github.com/lexio-app/lexio-insight-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER STATS QUERY
// Per-user dashboard numbers: event activity inside a window plus the
// cumulative mastery state (attempts, accuracy, mastered items,
// completed groups).
// ══════════════════════════════════════════════════════════════════════════════

// DefaultUserStatsWindowDays is the activity window when none is given.
const DefaultUserStatsWindowDays = 30

// GetUserStatsQuery identifies the user and the activity window.
type GetUserStatsQuery struct {
	// UserID is the user to report on.
	UserID string

	// From and To bound the event-activity window. Both zero means the
	// last DefaultUserStatsWindowDays days. Mastery numbers are
	// cumulative and ignore the window.
	From time.Time
	To   time.Time

	// SkipCache bypasses the report cache.
	SkipCache bool
}

// Validate validates the query.
func (q GetUserStatsQuery) Validate() error {
	if !shared.UserID(q.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	return nil
}

// window resolves the activity window.
func (q GetUserStatsQuery) window() (shared.TimeRange, error) {
	if q.From.IsZero() && q.To.IsZero() {
		return shared.LastNDays(DefaultUserStatsWindowDays), nil
	}
	return shared.NewTimeRange(q.From, q.To)
}

// GetUserStatsResult contains the computed stats.
type GetUserStatsResult struct {
	// Stats is the user's report.
	Stats *analytics.UserStats `json:"stats"`

	// FromCache reports whether the result was served from the cache.
	FromCache bool `json:"from_cache"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetUserStatsHandler handles the GetUserStatsQuery.
type GetUserStatsHandler struct {
	events   event.Repository
	progress progress.Repository
	users    shared.UserDirectory
	cache    analytics.ReportCache
	log      *logger.Logger
}

// NewGetUserStatsHandler creates a new GetUserStatsHandler.
func NewGetUserStatsHandler(
	events event.Repository,
	progressRepo progress.Repository,
	users shared.UserDirectory,
	cache analytics.ReportCache,
	log *logger.Logger,
) *GetUserStatsHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetUserStatsHandler{
		events:   events,
		progress: progressRepo,
		users:    users,
		cache:    cache,
		log:      log.With(logger.Component("get_user_stats")),
	}
}

// Handle executes the user stats query.
func (h *GetUserStatsHandler) Handle(ctx context.Context, q GetUserStatsQuery) (*GetUserStatsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	userID := shared.UserID(q.UserID)

	known, err := h.users.Exists(ctx, userID)
	if err != nil {
		return nil, shared.WrapError("analytics", "GetUserStats", shared.ErrExternalService,
			"user directory lookup failed", err)
	}
	if !known {
		return nil, shared.ErrUserNotFound
	}

	window, err := q.window()
	if err != nil {
		return nil, err
	}

	if !q.SkipCache && h.cache != nil {
		cached, err := h.cache.GetUserStats(ctx, userID, window)
		if err == nil {
			return &GetUserStatsResult{Stats: cached, FromCache: true}, nil
		}
		if !shared.IsNotFound(err) {
			h.log.Warn("user stats cache read failed",
				logger.UserID(userID.String()), logger.Err(err))
		}
	}

	stored, err := h.events.Query(ctx, event.Filter{UserID: userID, Window: window})
	if err != nil {
		return nil, err
	}

	records, err := h.progress.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := analytics.BuildUserStats(userID, window, flatten(stored), records, time.Now().UTC())

	if h.cache != nil {
		if err := h.cache.SetUserStats(ctx, stats); err != nil {
			h.log.Warn("user stats cache write failed",
				logger.UserID(userID.String()), logger.Err(err))
		}
	}

	return &GetUserStatsResult{Stats: stats}, nil
}
