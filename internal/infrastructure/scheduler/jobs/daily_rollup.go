package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/application/query"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
	"github.com/lexio-app/lexio-insight-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY ROLLUP JOB
// ══════════════════════════════════════════════════════════════════════════════

// DailyRollupJob computes yesterday's full-day engagement report once the
// day has closed. Unlike the rolling-window refresh, this window never
// changes again, so the cached entry stays correct for its whole TTL and
// the day's numbers are logged for the ops record.
type DailyRollupJob struct {
	engagement *query.GetEngagementHandler
	events     event.Repository
	publisher  shared.EventPublisher
	logger     *slog.Logger

	config RollupConfig

	lastRollupStats atomic.Value // *RollupStats
}

// RollupConfig contains configuration for the rollup job.
type RollupConfig struct {
	// Timeout is the maximum duration for one rollup run.
	Timeout time.Duration
}

// DefaultRollupConfig returns sensible defaults.
func DefaultRollupConfig() RollupConfig {
	return RollupConfig{
		Timeout: 5 * time.Minute,
	}
}

// RollupStats contains statistics from a rollup run.
type RollupStats struct {
	Day         time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	EventCount  int
	Success     bool
}

// NewDailyRollupJob creates a new daily rollup job.
func NewDailyRollupJob(
	engagement *query.GetEngagementHandler,
	events event.Repository,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	config RollupConfig,
) *DailyRollupJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &DailyRollupJob{
		engagement: engagement,
		events:     events,
		publisher:  publisher,
		logger:     logger,
		config:     config,
	}
}

// Name returns the job name.
func (j *DailyRollupJob) Name() string {
	return "daily_rollup"
}

// Description returns a human-readable description.
func (j *DailyRollupJob) Description() string {
	return "Computes and caches yesterday's closed-day engagement report"
}

// Run executes the rollup job.
func (j *DailyRollupJob) Run(ctx context.Context) error {
	startedAt := time.Now()

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	// Yesterday as a half-open UTC day: [00:00 yesterday, 00:00 today).
	todayStart := timeutil.StartOfDay(timeutil.Now())
	window := shared.TimeRange{From: todayStart.AddDate(0, 0, -1), To: todayStart}

	j.logger.Info("starting daily_rollup job", "day", timeutil.FormatDateStr(window.From))

	eventCount, err := j.events.CountInWindow(ctx, window)
	if err != nil {
		return fmt.Errorf("failed to count day's events: %w", err)
	}

	result, err := j.engagement.Handle(ctx, query.GetEngagementQuery{
		From:      window.From,
		To:        window.To,
		SkipCache: true,
	})
	if err != nil {
		return fmt.Errorf("failed to compute daily report: %w", err)
	}

	stats := &RollupStats{
		Day:         window.From,
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
		EventCount:  eventCount,
		Success:     true,
	}
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRollupStats.Store(stats)

	j.logger.Info("daily_rollup job completed",
		"day", timeutil.FormatDateStr(window.From),
		"events", eventCount,
		"activation_rate", result.Report.Activation.Rate,
		"retention_rate", result.Report.Retention.Rate,
		"duration", stats.Duration)

	if j.publisher != nil {
		evt := shared.NewReportRefreshedEvent("daily_rollup", window.From, window.To, stats.Duration)
		if err := j.publisher.Publish(evt); err != nil {
			j.logger.Warn("failed to publish report refreshed event", "error", err)
		}
	}

	return nil
}

// LastStats returns statistics from the most recent run, or nil.
func (j *DailyRollupJob) LastStats() *RollupStats {
	if v := j.lastRollupStats.Load(); v != nil {
		return v.(*RollupStats)
	}
	return nil
}
