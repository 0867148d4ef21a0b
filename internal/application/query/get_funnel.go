// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/analytics"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
	"github.com/lexio-app/lexio-insight-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET FUNNEL QUERY
// Computes a conversion funnel over the event store: distinct users per
// declared step, each step's rate relative to the one before it. Results
// are cached per (steps, window) so dashboard refreshes do not rescan
// the store.
// ══════════════════════════════════════════════════════════════════════════════

// MaxFunnelSteps bounds a declared funnel.
const MaxFunnelSteps = 10

// DefaultWindowDays is the analysis window when the caller gives none.
const DefaultWindowDays = 7

// GetFunnelQuery contains the funnel declaration and analysis window.
type GetFunnelQuery struct {
	// Steps - ordered event-type names. Empty means the product's default
	// activation funnel.
	Steps []string

	// From and To bound the analysis window (half-open). Both zero means
	// the last DefaultWindowDays days.
	From time.Time
	To   time.Time

	// SkipCache bypasses the report cache (used by the warming job).
	SkipCache bool
}

// Validate checks the step count; step names are validated against the
// event vocabulary in the handler.
func (q GetFunnelQuery) Validate() error {
	if len(q.Steps) > MaxFunnelSteps {
		return shared.NewDomainError("analytics", "GetFunnel", shared.ErrValueOutOfRange,
			fmt.Sprintf("funnel exceeds %d steps", MaxFunnelSteps))
	}
	return nil
}

// window resolves the analysis window, defaulting to the recent past.
func (q GetFunnelQuery) window() (shared.TimeRange, error) {
	if q.From.IsZero() && q.To.IsZero() {
		return shared.LastNDays(DefaultWindowDays), nil
	}
	return shared.NewTimeRange(q.From, q.To)
}

// GetFunnelResult contains the computed funnel.
type GetFunnelResult struct {
	// Steps in declared order, with user counts and conversion rates.
	Steps []analytics.FunnelStep `json:"steps"`

	// Window is the analysis window actually used.
	Window shared.TimeRange `json:"window"`

	// GeneratedAt is when the result was computed.
	GeneratedAt time.Time `json:"generated_at"`

	// FromCache reports whether the result was served from the cache.
	FromCache bool `json:"from_cache"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetFunnelHandler handles the GetFunnelQuery.
type GetFunnelHandler struct {
	events event.Repository
	cache  analytics.ReportCache
	log    *logger.Logger
}

// NewGetFunnelHandler creates a new GetFunnelHandler. The cache is
// optional; a nil cache means every read recomputes.
func NewGetFunnelHandler(events event.Repository, cache analytics.ReportCache, log *logger.Logger) *GetFunnelHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetFunnelHandler{
		events: events,
		cache:  cache,
		log:    log.With(logger.Component("get_funnel")),
	}
}

// Handle executes the funnel query.
func (h *GetFunnelHandler) Handle(ctx context.Context, q GetFunnelQuery) (*GetFunnelResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var (
		steps []event.Type
		err   error
	)
	if len(q.Steps) == 0 {
		steps = analytics.DefaultFunnelSteps()
	} else {
		steps, err = analytics.ValidateSteps(q.Steps)
		if err != nil {
			return nil, err
		}
	}

	window, err := q.window()
	if err != nil {
		return nil, err
	}

	if !q.SkipCache && h.cache != nil {
		cached, err := h.cache.GetFunnel(ctx, steps, window)
		if err == nil {
			return &GetFunnelResult{
				Steps:       cached,
				Window:      window,
				GeneratedAt: time.Now().UTC(),
				FromCache:   true,
			}, nil
		}
		// A broken cache degrades to recomputation, never to a failure.
		if !shared.IsNotFound(err) {
			h.log.Warn("funnel cache read failed", logger.Err(err))
		}
	}

	// Only the funnel's own event types matter, so let the store filter.
	stored, err := h.events.Query(ctx, event.Filter{Types: steps, Window: window})
	if err != nil {
		return nil, err
	}

	computed, err := analytics.ComputeFunnel(flatten(stored), steps)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.SetFunnel(ctx, steps, window, computed); err != nil {
			h.log.Warn("funnel cache write failed", logger.Err(err))
		}
	}

	return &GetFunnelResult{
		Steps:       computed,
		Window:      window,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// flatten dereferences stored events for the pure analytics functions.
func flatten(stored []*event.Event) []event.Event {
	out := make([]event.Event, 0, len(stored))
	for _, e := range stored {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}
