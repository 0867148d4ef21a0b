// Package main is the entry point for the Lexio Insight Hub API server.
//
// The API serves the mobile client's write path (behavioral events and
// answer attempts) and the analytics read path (funnel, engagement, and
// per-user stats). Side effects such as milestone pushes and stage
// unlocks run on the event bus inside this process; periodic report
// rewarming lives in the worker binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lexio-app/lexio-insight-hub/config"
	"github.com/lexio-app/lexio-insight-hub/internal/application/command"
	"github.com/lexio-app/lexio-insight-hub/internal/application/eventhandler"
	"github.com/lexio-app/lexio-insight-hub/internal/application/query"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/analytics"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/focus"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/milestone"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/progress"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
	"github.com/lexio-app/lexio-insight-hub/internal/infrastructure/messaging"
	"github.com/lexio-app/lexio-insight-hub/internal/infrastructure/persistence/postgres"
	"github.com/lexio-app/lexio-insight-hub/internal/infrastructure/persistence/redis"
	"github.com/lexio-app/lexio-insight-hub/internal/infrastructure/persistence/sqlite"
	"github.com/lexio-app/lexio-insight-hub/internal/infrastructure/service"
	httpapi "github.com/lexio-app/lexio-insight-hub/internal/interface/http"
	"github.com/lexio-app/lexio-insight-hub/internal/interface/http/handlers"
	"github.com/lexio-app/lexio-insight-hub/pkg/keylock"
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
	// .env is optional; real deployments inject the environment directly.
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

	slogger.Info("starting Lexio Insight Hub API",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"db_driver", cfg.Database.Driver,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. PERSISTENCE
	// ─────────────────────────────────────────────────────────────────────────
	var (
		eventRepo    event.Repository
		progressRepo progress.Repository
		users        shared.UserDirectory
		dbChecker    handlers.DatabaseChecker
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
		progressRepo = sqlite.NewProgressRepository(conn)
		users = sqlite.NewUserDirectory(conn)
		dbChecker = conn

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

		slogger.Info("running database migrations...")
		migrator := postgres.NewMigrator(conn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		eventRepo = postgres.NewEventRepository(conn)
		progressRepo = postgres.NewProgressRepository(conn)
		users = postgres.NewUserDirectory(conn)
		dbChecker = conn
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
			slogger.Warn("redis unavailable, reports will recompute on every read", "error", err)
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

	// ─────────────────────────────────────────────────────────────────────────
	// 6. DOMAIN SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	catalog := service.NewStaticItemCatalog(nil)
	tracker := progress.NewTracker(progressRepo, users, catalog)
	sessions := progress.NewSessionTracker()
	focusCtrl := focus.NewController()
	detector := milestone.NewDetector()
	locks := keylock.New()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	recordEvent := command.NewRecordEventHandler(eventRepo, bus, appLog)
	recordBatch := command.NewRecordBatchEventsHandler(eventRepo, bus, appLog)
	recordAttempt := command.NewRecordAttemptHandler(tracker, sessions, focusCtrl, detector, locks, bus, appLog)

	// A typed nil must not leak into the handlers' interface fields.
	var cache analytics.ReportCache
	if reportCache != nil {
		cache = reportCache
	}
	getFunnel := query.NewGetFunnelHandler(eventRepo, cache, appLog)
	getEngagement := query.NewGetEngagementHandler(eventRepo, users, cache, appLog)
	getUserStats := query.NewGetUserStatsHandler(eventRepo, progressRepo, users, cache, appLog)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. SIDE-EFFECT SUBSCRIPTIONS
	// ─────────────────────────────────────────────────────────────────────────
	notifier := service.NewPushGatewayStub(slogger)
	gate := service.NewStageGateStub(slogger)

	onMilestone := eventhandler.NewOnMilestoneReached(
		notifier, nil, nil, eventhandler.DefaultMilestoneReachedConfig(), appLog)
	onMagicMoment := eventhandler.NewOnMagicMoment(
		gate, notifier, nil, nil, nil, eventhandler.DefaultMagicMomentConfig(), appLog)

	if err := bus.Subscribe(onMilestone.EventType(), onMilestone.Handle); err != nil {
		return fmt.Errorf("failed to subscribe milestone handler: %w", err)
	}
	if err := bus.Subscribe(onMagicMoment.EventType(), onMagicMoment.Handle); err != nil {
		return fmt.Errorf("failed to subscribe magic moment handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbChecker))
	if redisCache != nil {
		healthChecker.AddCheck("cache", handlers.NewCacheCheck(redisCache))
	}

	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.APIKeyHeader = cfg.HTTP.APIKeyHeader
	serverCfg.APIKeys = cfg.HTTP.APIKeys

	server := httpapi.NewServer(serverCfg, httpapi.Dependencies{
		RecordEventHandler:       recordEvent,
		RecordBatchEventsHandler: recordBatch,
		RecordAttemptHandler:     recordAttempt,
		GetFunnelHandler:         getFunnel,
		GetEngagementHandler:     getEngagement,
		GetUserStatsHandler:      getUserStats,
		Logger:                   appLog,
		HealthChecker:            healthChecker,
	})

	errCh := server.StartAsync()
	slogger.Info("Lexio Insight Hub API is running", "addr", serverCfg.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slogger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		slogger.Error("http server shutdown failed", "error", err)
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
