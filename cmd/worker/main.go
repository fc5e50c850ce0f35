// Package main - точка входа для фоновых процессов (Worker) EcoLearn.
//
// Worker отвечает за периодические задачи:
// - Сверка индекса рангов в Redis с леджером XP в PostgreSQL
// - Обнуление устаревших серий (streaks)
// - Досинхронизация индекса после неудачной публикации ранга
//
// Индекс рангов - производная проекция: источником истины всегда остаётся
// леджер. Worker гарантирует, что проекция сходится к леджеру даже после
// сбоев Redis.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/ecolearn-hub/ecolearn-backend/config"
	"github.com/ecolearn-hub/ecolearn-backend/internal/application/eventhandler"
	"github.com/ecolearn-hub/ecolearn-backend/internal/infrastructure/messaging"
	"github.com/ecolearn-hub/ecolearn-backend/internal/infrastructure/persistence/postgres"
	"github.com/ecolearn-hub/ecolearn-backend/internal/infrastructure/persistence/redis"
	"github.com/ecolearn-hub/ecolearn-backend/internal/infrastructure/scheduler"
	"github.com/ecolearn-hub/ecolearn-backend/internal/infrastructure/scheduler/jobs"
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
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting EcoLearn Worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ (Worker также должен иметь актуальную схему)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПОДКЛЮЧЕНИЕ К REDIS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to Redis...")
	redisCache, err := newRedisCache(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisCache.Close()
	log.Info("Redis connection established")

	rankIndex := redis.NewRankIndex(redisCache)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. РЕПОЗИТОРИИ
	// ─────────────────────────────────────────────────────────────────────────
	userRepo := postgres.NewUserRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT BUS И ДИСПЕТЧЕР
	// ─────────────────────────────────────────────────────────────────────────
	// Worker слушает события API сервера через Redis Pub/Sub. Обработчик
	// RankSyncFailed досинхронизирует индекс, не дожидаясь плановой сверки.
	hostname, _ := os.Hostname()
	eventBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Cache:          redisCache,
		InstanceID:     fmt.Sprintf("worker-%s-%s", hostname, uuid.NewString()[:8]),
		LocalBusConfig: messaging.DefaultInMemoryEventBusConfig(),
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	dispatcher := messaging.NewDispatcher(messaging.DispatcherConfig{
		EventBus:    eventBus,
		RetryConfig: messaging.DefaultRetryConfig(),
		Logger:      log,
	})
	dispatcher.Use(messaging.RecoveryMiddleware(log))
	dispatcher.Use(messaging.LoggingMiddleware(log))

	rankSyncHandler := eventhandler.NewOnRankSyncFailedHandler(userRepo, rankIndex, log)
	for _, eventType := range rankSyncHandler.EventTypes() {
		if err := dispatcher.Register(eventType, "rank_sync_failed", rankSyncHandler.Handle); err != nil {
			return fmt.Errorf("failed to register event handler: %w", err)
		}
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	defer dispatcher.Stop()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ПЛАНИРОВЩИК ФОНОВЫХ ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler is disabled, worker will only process events")
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:        log,
			EnableMetrics: true,
		})

		reconcileConfig := jobs.DefaultReconcileConfig()
		reconcileJob := jobs.NewReconcileRankIndexJob(userRepo, rankIndex, log, reconcileConfig)
		if err := sched.Register(reconcileJob, scheduler.NewIntervalSchedule(cfg.Scheduler.ReconcileRankIndexInterval)); err != nil {
			return fmt.Errorf("failed to register reconcile job: %w", err)
		}

		streakCron, err := scheduler.ParseCronExpression(fmt.Sprintf("%d %d * * *",
			cfg.Scheduler.StreakResetMinute, cfg.Scheduler.StreakResetHour))
		if err != nil {
			return fmt.Errorf("invalid streak reset schedule: %w", err)
		}
		streakJob := jobs.NewResetStreaksJob(userRepo, log, jobs.DefaultResetStreaksConfig())
		if err := sched.Register(streakJob, streakCron); err != nil {
			return fmt.Errorf("failed to register streak reset job: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		log.Info("scheduler started",
			"reconcile_interval", cfg.Scheduler.ReconcileRankIndexInterval.String(),
			"streak_reset", fmt.Sprintf("%02d:%02d UTC", cfg.Scheduler.StreakResetHour, cfg.Scheduler.StreakResetMinute),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("EcoLearn Worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	if sched != nil {
		if err := sched.Stop(); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("scheduler stop returned error", "error", err)
		}
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// JSON формат для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// newRedisCache создаёт подключение к Redis из конфигурации. URL имеет
// приоритет над отдельными полями host/port.
func newRedisCache(cfg config.RedisConfig) (*redis.Cache, error) {
	if cfg.URL != "" {
		return redis.NewCacheFromURL(cfg.URL)
	}

	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Host
	redisCfg.Port = cfg.Port
	redisCfg.Password = cfg.Password
	redisCfg.DB = cfg.DB
	redisCfg.PoolSize = cfg.PoolSize
	redisCfg.MinIdleConns = cfg.MinIdleConns
	redisCfg.DialTimeout = cfg.DialTimeout
	redisCfg.ReadTimeout = cfg.ReadTimeout
	redisCfg.WriteTimeout = cfg.WriteTimeout

	return redis.NewCache(redisCfg)
}
