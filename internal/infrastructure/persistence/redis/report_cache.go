package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/analytics"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORT CACHE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ReportCache implements analytics.ReportCache on top of the generic
// Cache. Keys are derived from the report parameters (window bounds, step
// list, user id), so two queries with identical parameters share an entry
// and differing parameters never collide.
type ReportCache struct {
	cache *Cache
}

// NewReportCache creates a new ReportCache.
func NewReportCache(cache *Cache) *ReportCache {
	return &ReportCache{cache: cache}
}

// ─────────────────────────────────────────────────────────────────────────────
// Key Derivation
// ─────────────────────────────────────────────────────────────────────────────

// windowKey renders a window as a compact, collision-free key fragment.
func windowKey(w shared.TimeRange) string {
	return fmt.Sprintf("%d-%d", w.From.Unix(), w.To.Unix())
}

// engagementKey generates the cache key for an engagement report.
func engagementKey(w shared.TimeRange) string {
	return PrefixEngagement + windowKey(w)
}

// funnelKey generates the cache key for a funnel result.
func funnelKey(steps []event.Type, w shared.TimeRange) string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.String()
	}
	return PrefixFunnel + strings.Join(names, ">") + ":" + windowKey(w)
}

// userStatsKey generates the cache key for per-user stats.
func userStatsKey(userID shared.UserID, w shared.TimeRange) string {
	return PrefixUserStats + userID.String() + ":" + windowKey(w)
}

// ─────────────────────────────────────────────────────────────────────────────
// Engagement
// ─────────────────────────────────────────────────────────────────────────────

// GetEngagement returns the cached engagement report for the window.
func (r *ReportCache) GetEngagement(ctx context.Context, window shared.TimeRange) (*analytics.EngagementReport, error) {
	var report analytics.EngagementReport
	if err := r.cache.Get(ctx, engagementKey(window), &report); err != nil {
		return nil, mapCacheErr(err)
	}
	return &report, nil
}

// SetEngagement stores an engagement report under its window key.
func (r *ReportCache) SetEngagement(ctx context.Context, report *analytics.EngagementReport) error {
	return r.cache.Set(ctx, engagementKey(report.Window), report, TTLEngagementCache)
}

// ─────────────────────────────────────────────────────────────────────────────
// Funnel
// ─────────────────────────────────────────────────────────────────────────────

// GetFunnel returns the cached funnel result for the step list and window.
func (r *ReportCache) GetFunnel(ctx context.Context, steps []event.Type, window shared.TimeRange) ([]analytics.FunnelStep, error) {
	var result []analytics.FunnelStep
	if err := r.cache.Get(ctx, funnelKey(steps, window), &result); err != nil {
		return nil, mapCacheErr(err)
	}
	return result, nil
}

// SetFunnel stores a funnel result.
func (r *ReportCache) SetFunnel(ctx context.Context, steps []event.Type, window shared.TimeRange, result []analytics.FunnelStep) error {
	return r.cache.Set(ctx, funnelKey(steps, window), result, TTLFunnelCache)
}

// ─────────────────────────────────────────────────────────────────────────────
// User Stats
// ─────────────────────────────────────────────────────────────────────────────

// GetUserStats returns the cached per-user stats for the window.
func (r *ReportCache) GetUserStats(ctx context.Context, userID shared.UserID, window shared.TimeRange) (*analytics.UserStats, error) {
	var stats analytics.UserStats
	if err := r.cache.Get(ctx, userStatsKey(userID, window), &stats); err != nil {
		return nil, mapCacheErr(err)
	}
	return &stats, nil
}

// SetUserStats stores per-user stats under the user and window key.
func (r *ReportCache) SetUserStats(ctx context.Context, stats *analytics.UserStats) error {
	return r.cache.Set(ctx, userStatsKey(stats.UserID, stats.Window), stats, TTLUserStatsCache)
}

// InvalidateUser drops all cached stats windows for the user.
func (r *ReportCache) InvalidateUser(ctx context.Context, userID shared.UserID) error {
	return r.cache.DeleteByPattern(ctx, PrefixUserStats+userID.String()+":*")
}

// ─────────────────────────────────────────────────────────────────────────────
// Error Mapping
// ─────────────────────────────────────────────────────────────────────────────

// mapCacheErr translates cache-layer errors into the domain taxonomy so
// query handlers can treat a miss uniformly across implementations.
func mapCacheErr(err error) error {
	if errors.Is(err, ErrCacheMiss) {
		return shared.ErrReportNotFound
	}
	return shared.WrapError("analytics", "GetReport", shared.ErrExternalService, "report cache unavailable", err)
}
