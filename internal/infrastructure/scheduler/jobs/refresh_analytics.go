// Package jobs contains implementations of scheduled jobs for Lexio Insight Hub.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/application/query"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH ANALYTICS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RefreshAnalyticsJob rewarms the cached analytics reports so the
// dashboard reads hot data instead of triggering an event-store scan.
// It runs the engagement and funnel queries with SkipCache, which
// recomputes and re-Sets the cache entries.
type RefreshAnalyticsJob struct {
	engagement *query.GetEngagementHandler
	funnel     *query.GetFunnelHandler
	publisher  shared.EventPublisher
	logger     *slog.Logger

	config RefreshAnalyticsConfig

	lastRefreshStats atomic.Value // *RefreshStats
}

// RefreshAnalyticsConfig contains configuration for the refresh job.
type RefreshAnalyticsConfig struct {
	// WindowDays is the size of the rolling window the dashboard shows.
	WindowDays int

	// Timeout is the maximum duration for one refresh run.
	Timeout time.Duration
}

// DefaultRefreshAnalyticsConfig returns sensible defaults.
func DefaultRefreshAnalyticsConfig() RefreshAnalyticsConfig {
	return RefreshAnalyticsConfig{
		WindowDays: 7,
		Timeout:    2 * time.Minute,
	}
}

// RefreshStats contains statistics from a refresh run.
type RefreshStats struct {
	StartedAt        time.Time
	CompletedAt      time.Time
	Duration         time.Duration
	ReportsRefreshed int
	Errors           []error
}

// NewRefreshAnalyticsJob creates a new refresh analytics job.
func NewRefreshAnalyticsJob(
	engagement *query.GetEngagementHandler,
	funnel *query.GetFunnelHandler,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	config RefreshAnalyticsConfig,
) *RefreshAnalyticsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.WindowDays <= 0 {
		config.WindowDays = 7
	}

	return &RefreshAnalyticsJob{
		engagement: engagement,
		funnel:     funnel,
		publisher:  publisher,
		logger:     logger,
		config:     config,
	}
}

// Name returns the job name.
func (j *RefreshAnalyticsJob) Name() string {
	return "refresh_analytics"
}

// Description returns a human-readable description.
func (j *RefreshAnalyticsJob) Description() string {
	return "Recomputes and rewarms the cached engagement and funnel reports"
}

// Run executes the refresh job.
func (j *RefreshAnalyticsJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &RefreshStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	j.logger.Info("starting refresh_analytics job", "window_days", j.config.WindowDays)

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	window := shared.LastNDays(j.config.WindowDays)

	// Engagement report (includes the funnel, activation, retention).
	if _, err := j.engagement.Handle(ctx, query.GetEngagementQuery{
		From:      window.From,
		To:        window.To,
		SkipCache: true,
	}); err != nil {
		stats.Errors = append(stats.Errors, fmt.Errorf("engagement refresh: %w", err))
		j.logger.Error("engagement refresh failed", "error", err)
	} else {
		stats.ReportsRefreshed++
		j.publishRefreshed("engagement", window, time.Since(startedAt))
	}

	// Standalone default funnel, cached under its own (steps, window) key.
	if _, err := j.funnel.Handle(ctx, query.GetFunnelQuery{
		From:      window.From,
		To:        window.To,
		SkipCache: true,
	}); err != nil {
		stats.Errors = append(stats.Errors, fmt.Errorf("funnel refresh: %w", err))
		j.logger.Error("funnel refresh failed", "error", err)
	} else {
		stats.ReportsRefreshed++
		j.publishRefreshed("funnel", window, time.Since(startedAt))
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRefreshStats.Store(stats)

	j.logger.Info("refresh_analytics job completed",
		"refreshed", stats.ReportsRefreshed,
		"errors", len(stats.Errors),
		"duration", stats.Duration)

	if stats.ReportsRefreshed == 0 && len(stats.Errors) > 0 {
		return fmt.Errorf("all report refreshes failed: %v", stats.Errors[0])
	}
	return nil
}

// LastStats returns statistics from the most recent run, or nil.
func (j *RefreshAnalyticsJob) LastStats() *RefreshStats {
	if v := j.lastRefreshStats.Load(); v != nil {
		return v.(*RefreshStats)
	}
	return nil
}

// publishRefreshed emits the system event; bus failures are logged, not
// propagated, because the cache is already warm at this point.
func (j *RefreshAnalyticsJob) publishRefreshed(report string, window shared.TimeRange, elapsed time.Duration) {
	if j.publisher == nil {
		return
	}
	evt := shared.NewReportRefreshedEvent(report, window.From, window.To, elapsed)
	if err := j.publisher.Publish(evt); err != nil {
		j.logger.Warn("failed to publish report refreshed event", "report", report, "error", err)
	}
}
