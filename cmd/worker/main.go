// Package main is the entry point for the Lexio Insight Hub worker.
//
// The worker owns the periodic side of the analytics pipeline:
//   - rewarming the cached funnel and engagement reports so dashboard
//     reads stay warm between client requests
//   - the nightly rollup over the previous UTC day
//
// Push side effects (milestones, stage unlocks) run inside the API
// process; the worker only observes the event stream for visibility.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lexio-app/lexio-insight-hub/config"
	"github.com/lexio-app/lexio-insight-hub/internal/application/query"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/analytics"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
	"github.com/lexio-app/lexio-insight-hub/internal/infrastructure/messaging"
	"github.com/lexio-app/lexio-insight-hub/internal/infrastructure/persistence/postgres"
	"github.com/lexio-app/lexio-insight-hub/internal/infrastructure/persistence/redis"
	"github.com/lexio-app/lexio-insight-hub/internal/infrastructure/persistence/sqlite"
	"github.com/lexio-app/lexio-insight-hub/internal/infrastructure/scheduler"
	"github.com/lexio-app/lexio-insight-hub/internal/infrastructure/scheduler/jobs"
	"github.com/lexio-app/lexio-insight-hub/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	slogger := setupSlog(cfg)
	appLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

	slogger.Info("starting Lexio Insight Hub worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"db_driver", cfg.Database.Driver,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. PERSISTENCE
	// ─────────────────────────────────────────────────────────────────────────
	var (
		eventRepo event.Repository
		users     shared.UserDirectory
	)

	switch cfg.Database.Driver {
	case config.DriverSQLite:
		slogger.Info("opening sqlite database", "path", cfg.SQLite.Path)
		sqliteCfg := sqlite.DefaultConfig()
		sqliteCfg.Path = cfg.SQLite.Path
		sqliteCfg.BusyTimeout = cfg.SQLite.BusyTimeout

		conn, err := sqlite.NewConnection(ctx, sqliteCfg)
		if err != nil {
			return fmt.Errorf("failed to open sqlite database: %w", err)
		}
		defer conn.Close()

		eventRepo = sqlite.NewEventRepository(conn)
		users = sqlite.NewUserDirectory(conn)

	default:
		slogger.Info("connecting to postgres...")
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer conn.Close()

		if err := conn.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}

		// The worker migrates too so it can start before the API.
		slogger.Info("checking database migrations...")
		migrator := postgres.NewMigrator(conn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		eventRepo = postgres.NewEventRepository(conn)
		users = postgres.NewUserDirectory(conn)
	}
	slogger.Info("persistence layer ready")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (report cache, optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache  *redis.Cache
		reportCache *redis.ReportCache
	)
	if !cfg.Redis.Disabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			slogger.Warn("redis unavailable, rewarmed reports will not be cached", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			reportCache = redis.NewReportCache(redisCache)
			slogger.Info("redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	var (
		bus      shared.EventBus
		closeBus func() error
	)
	if redisCache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(redisCache.Client()),
			LocalBusConfig: messaging.DefaultInMemoryEventBusConfig(),
			Logger:         slogger,
		})
		if err != nil {
			return fmt.Errorf("failed to start redis event bus: %w", err)
		}
		bus = redisBus
		closeBus = redisBus.Close
	} else {
		busCfg := messaging.DefaultInMemoryEventBusConfig()
		busCfg.Logger = slogger
		localBus := messaging.NewInMemoryEventBus(busCfg)
		bus = localBus
		closeBus = localBus.Close
	}
	defer func() {
		slogger.Info("closing event bus...")
		_ = closeBus()
	}()

	// Observe the stream for debugging; delivery side effects stay in
	// the API process.
	if err := bus.SubscribeAll(func(e shared.Event) error {
		slogger.Debug("event observed",
			"event_type", string(e.EventType()),
			"aggregate_id", e.AggregateID(),
		)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to subscribe event observer: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. QUERY HANDLERS (shared with the jobs)
	// ─────────────────────────────────────────────────────────────────────────
	var cache analytics.ReportCache
	if reportCache != nil {
		cache = reportCache
	}
	getFunnel := query.NewGetFunnelHandler(eventRepo, cache, appLog)
	getEngagement := query.NewGetEngagementHandler(eventRepo, users, cache, appLog)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Scheduler.Enabled {
		slogger.Warn("scheduler disabled, worker will only observe events")
	} else {
		schedCfg := scheduler.DefaultSchedulerConfig()
		schedCfg.Logger = slogger
		schedCfg.Timezone = cfg.App.Location
		sched := scheduler.NewScheduler(schedCfg)

		refreshCfg := jobs.DefaultRefreshAnalyticsConfig()
		refreshCfg.WindowDays = cfg.Scheduler.AnalyticsWindowDays
		refreshCfg.Timeout = cfg.Scheduler.JobTimeout
		refreshJob := jobs.NewRefreshAnalyticsJob(getEngagement, getFunnel, bus, slogger, refreshCfg)

		rollupCfg := jobs.DefaultRollupConfig()
		rollupCfg.Timeout = cfg.Scheduler.JobTimeout
		rollupJob := jobs.NewDailyRollupJob(getEngagement, eventRepo, bus, slogger, rollupCfg)

		if err := sched.Register(refreshJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RefreshAnalyticsInterval)); err != nil {
			return fmt.Errorf("failed to register refresh job: %w", err)
		}
		if err := sched.Register(rollupJob, scheduler.NewDailySchedule(
			cfg.Scheduler.RollupHour, cfg.Scheduler.RollupMinute, cfg.App.Location)); err != nil {
			return fmt.Errorf("failed to register rollup job: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			slogger.Info("stopping scheduler...")
			_ = sched.Stop()
		}()

		slogger.Info("scheduler started",
			"refresh_interval", cfg.Scheduler.RefreshAnalyticsInterval.String(),
			"rollup_at", fmt.Sprintf("%02d:%02d", cfg.Scheduler.RollupHour, cfg.Scheduler.RollupMinute),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("Lexio Insight Hub worker is running", "timezone", cfg.App.Timezone)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		slogger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	slogger.Info("shutdown completed successfully")
	return nil
}

// setupSlog configures structured logging for the infrastructure layer.
func setupSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
