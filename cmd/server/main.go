// Package main - точка входа для API сервера EcoLearn.
//
// Сервер обслуживает REST API платформы:
// - Регистрация и вход пользователей
// - Прохождение уроков, квизов и эко-челленджей
// - Профили с XP, уровнями, бейджами и сериями
// - Лидерборд на основе индекса рангов в Redis
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/ecolearn-hub/ecolearn-backend/config"
	"github.com/ecolearn-hub/ecolearn-backend/internal/application/command"
	"github.com/ecolearn-hub/ecolearn-backend/internal/application/eventhandler"
	"github.com/ecolearn-hub/ecolearn-backend/internal/application/query"
	"github.com/ecolearn-hub/ecolearn-backend/internal/infrastructure/auth"
	"github.com/ecolearn-hub/ecolearn-backend/internal/infrastructure/messaging"
	"github.com/ecolearn-hub/ecolearn-backend/internal/infrastructure/persistence/postgres"
	"github.com/ecolearn-hub/ecolearn-backend/internal/infrastructure/persistence/redis"
	httpapi "github.com/ecolearn-hub/ecolearn-backend/internal/interface/http"
	"github.com/ecolearn-hub/ecolearn-backend/internal/interface/http/handlers"
	"github.com/ecolearn-hub/ecolearn-backend/pkg/logger"
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
	log := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})
	log.Info("starting EcoLearn API server",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Bool("debug", cfg.App.Debug),
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
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПОДКЛЮЧЕНИЕ К REDIS (индекс рангов, pub/sub событий)
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
	// 6. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	// События публикуются и локально, и в Redis: worker подхватывает их
	// для фоновой обработки (например, досинхронизация индекса рангов).
	hostname, _ := os.Hostname()
	eventBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Cache:          redisCache,
		InstanceID:     fmt.Sprintf("api-%s-%s", hostname, uuid.NewString()[:8]),
		LocalBusConfig: messaging.DefaultInMemoryEventBusConfig(),
		Logger:         slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	userRepo := postgres.NewUserRepository(dbConn)
	badgeRepo := postgres.NewBadgeRepository(dbConn)
	lessonRepo := postgres.NewLessonRepository(dbConn)
	challengeRepo := postgres.NewChallengeRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. АУТЕНТИФИКАЦИЯ
	// ─────────────────────────────────────────────────────────────────────────
	tokenManager, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. КОМАНДЫ И ЗАПРОСЫ (CQRS)
	// ─────────────────────────────────────────────────────────────────────────
	awardHandler := command.NewAwardXPHandler(userRepo, badgeRepo, rankIndex, eventBus, nil, log)

	// Немедленная досинхронизация индекса рангов прямо в API-процессе:
	// worker получает то же событие через Redis и остаётся подстраховкой.
	rankResync := eventhandler.NewOnRankSyncFailedHandler(userRepo, rankIndex, slog.Default())
	for _, eventType := range rankResync.EventTypes() {
		if err := eventBus.Subscribe(eventType, rankResync.Handle); err != nil {
			return fmt.Errorf("failed to subscribe rank resync handler: %w", err)
		}
	}

	deps := httpapi.Dependencies{
		RegisterUserHandler:    command.NewRegisterUserHandler(userRepo, eventBus, log),
		LoginUserHandler:       command.NewLoginUserHandler(userRepo, tokenManager, log),
		CompleteLessonHandler:  command.NewCompleteLessonHandler(lessonRepo, userRepo, awardHandler, eventBus, log),
		SubmitQuizHandler:      command.NewSubmitQuizHandler(lessonRepo, awardHandler, eventBus, log),
		SubmitChallengeHandler: command.NewSubmitChallengeHandler(challengeRepo, awardHandler, eventBus, log),

		GetProfileHandler:     query.NewGetProfileHandler(userRepo, badgeRepo, rankIndex),
		GetLeaderboardHandler: query.NewGetLeaderboardHandler(rankIndex, userRepo),
		ListLessonsHandler:    query.NewListLessonsHandler(lessonRepo),
		ListModulesHandler:    query.NewListModulesHandler(lessonRepo),

		ChallengeRepo: challengeRepo,
		Tokens:        tokenManager,
		Features:      cfg.Features,
		Logger:        log,
		HealthChecker: newHealthChecker(cfg, dbConn, redisCache),
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	serverConfig := httpapi.DefaultConfig()
	serverConfig.Addr = cfg.HTTP.Addr
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	serverConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins

	server := httpapi.NewServer(serverConfig, deps)

	log.Info("starting HTTP server", logger.String("addr", cfg.HTTP.Addr))
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
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

// newHealthChecker собирает проверки готовности: база данных и Redis.
func newHealthChecker(cfg *config.Config, db *postgres.Connection, cache *redis.Cache) handlers.HealthChecker {
	checker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	checker.AddCheck("database", handlers.NewDatabaseCheck(db))
	checker.AddCheck("redis", handlers.NewCacheCheck(cache))
	return checker
}
