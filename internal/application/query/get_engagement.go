package query

import (
	"context"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/analytics"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
	"github.com/lexio-app/lexio-insight-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ENGAGEMENT QUERY
// The product dashboard's main read: funnel, activation rate, retention
// rate, and a daily activity time series for one window, composed in a
// single pass over the window's events.
// ══════════════════════════════════════════════════════════════════════════════

// GetEngagementQuery contains the analysis window.
type GetEngagementQuery struct {
	// From and To bound the window (half-open). Both zero means the last
	// DefaultWindowDays days.
	From time.Time
	To   time.Time

	// SkipCache bypasses the report cache (used by the warming job).
	SkipCache bool
}

// window resolves the analysis window.
func (q GetEngagementQuery) window() (shared.TimeRange, error) {
	if q.From.IsZero() && q.To.IsZero() {
		return shared.LastNDays(DefaultWindowDays), nil
	}
	return shared.NewTimeRange(q.From, q.To)
}

// GetEngagementResult contains the composed report.
type GetEngagementResult struct {
	// Report is the engagement report.
	Report *analytics.EngagementReport `json:"report"`

	// FromCache reports whether the result was served from the cache.
	FromCache bool `json:"from_cache"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetEngagementHandler handles the GetEngagementQuery.
type GetEngagementHandler struct {
	events event.Repository
	users  shared.UserDirectory
	cache  analytics.ReportCache
	log    *logger.Logger
}

// NewGetEngagementHandler creates a new GetEngagementHandler.
func NewGetEngagementHandler(
	events event.Repository,
	users shared.UserDirectory,
	cache analytics.ReportCache,
	log *logger.Logger,
) *GetEngagementHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetEngagementHandler{
		events: events,
		users:  users,
		cache:  cache,
		log:    log.With(logger.Component("get_engagement")),
	}
}

// Handle executes the engagement query.
func (h *GetEngagementHandler) Handle(ctx context.Context, q GetEngagementQuery) (*GetEngagementResult, error) {
	window, err := q.window()
	if err != nil {
		return nil, err
	}

	if !q.SkipCache && h.cache != nil {
		cached, err := h.cache.GetEngagement(ctx, window)
		if err == nil {
			return &GetEngagementResult{Report: cached, FromCache: true}, nil
		}
		if !shared.IsNotFound(err) {
			h.log.Warn("engagement cache read failed", logger.Err(err))
		}
	}

	stored, err := h.events.Query(ctx, event.Filter{Window: window})
	if err != nil {
		return nil, err
	}

	// The activation denominator comes from the externally-owned user
	// registry. Unlike the cache, this is report data: a failure here is
	// a failure of the query.
	newUsers, err := h.users.CountCreatedWithin(ctx, window.From, window.To)
	if err != nil {
		return nil, shared.WrapError("analytics", "GetEngagement", shared.ErrExternalService,
			"user directory count failed", err)
	}

	report, err := analytics.BuildEngagementReport(analytics.EngagementParams{
		Window:   window,
		Events:   flatten(stored),
		NewUsers: newUsers,
	}, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.SetEngagement(ctx, report); err != nil {
			h.log.Warn("engagement cache write failed", logger.Err(err))
		}
	}

	return &GetEngagementResult{Report: report}, nil
}
