// main.go — точка входа Vocab Module.
// Последовательность запуска: конфигурация → логгер → миграции →
// PostgreSQL → кэш-бэкенд → сервисный слой → мониторинг зависимостей →
// HTTP-сервер. Прогрев кэша стартует асинхронно и не задерживает readiness.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/lingvostream/vocab-module/internal/api/handlers"
	"github.com/bigkaa/lingvostream/vocab-module/internal/api/middleware"
	"github.com/bigkaa/lingvostream/vocab-module/internal/cache"
	"github.com/bigkaa/lingvostream/vocab-module/internal/config"
	"github.com/bigkaa/lingvostream/vocab-module/internal/database"
	"github.com/bigkaa/lingvostream/vocab-module/internal/repository"
	"github.com/bigkaa/lingvostream/vocab-module/internal/server"
	"github.com/bigkaa/lingvostream/vocab-module/internal/service"

	"github.com/go-chi/chi/v5"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Vocab Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("cache_backend", cfg.CacheBackend),
	)

	ctx := context.Background()

	// 3. Миграции и подключение к PostgreSQL
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка применения миграций", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4. Репозитории
	vocabRepo := repository.NewVocabularyRepository(pool)
	segmentRepo := repository.NewSegmentRepository(pool)

	// 5. Кэш-бэкенд
	backend, err := newCacheBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации кэш-бэкенда", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer backend.Close()

	// 6. Сервисный слой: общий трекер поколений связывает lookup и инвалидацию
	stats := service.NewStatsCollector()
	gens := service.NewGenerationTracker()

	lookup := service.NewLookupService(vocabRepo, backend, gens, stats, service.LookupConfig{
		CacheTTL:          cfg.CacheTTL,
		CacheTimeout:      cfg.CacheTimeout,
		StoreTimeout:      cfg.StoreTimeout,
		FlightWaitTimeout: cfg.FlightWaitTimeout,
	}, logger)

	invalidator := service.NewInvalidationManager(backend, gens, lookup,
		cfg.CacheTimeout, cfg.InvalidationRetries, logger)

	knowledge := service.NewKnowledgeService(vocabRepo, invalidator, cfg.StoreTimeout, logger)

	analyzer := service.NewBlockingWordAnalyzer(lookup, cfg.Stopwords, logger)

	// 7. Прогрев кэша — асинхронно, readiness не ждёт
	if cfg.WarmupEnabled {
		scopes := make([]service.WarmupScope, 0, len(cfg.WarmupScopes))
		for _, s := range cfg.WarmupScopes {
			scopes = append(scopes, service.WarmupScope{Language: s.Language, Levels: s.Levels})
		}
		warmup := service.NewWarmupScheduler(lookup, scopes, logger)
		go warmup.Run(ctx)
	}

	// 8. Мониторинг зависимостей (topologymetrics)
	sqlDB := stdlib.OpenDBFromPool(pool)
	dephealthSvc, err := service.NewDephealthService(
		"vocab-module",
		cfg.DephealthGroup,
		sqlDB,
		cfg.DatabaseDSN(),
		cfg.JWKSURL,
		cfg.DephealthCheckInterval,
		cfg.DephealthIsEntry,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка инициализации мониторинга зависимостей", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := dephealthSvc.Start(ctx); err != nil {
		logger.Error("Ошибка запуска мониторинга зависимостей", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dephealthSvc.Stop()

	// 9. Health handler: PostgreSQL критичен, кэш — degraded при сбое
	healthHandler := handlers.NewHealthHandler(
		database.NewReadinessChecker(pool),
		cache.NewReadinessChecker(backend, cfg.CacheBackend),
	)

	// 10. API handler
	apiHandler := handlers.NewAPIHandler(
		lookup, knowledge, analyzer, invalidator, stats, segmentRepo,
		healthHandler,
		handlers.AssessmentDefaults{
			Threshold: cfg.BlockThreshold,
			Ceiling:   cfg.LevelCeiling,
		},
		logger,
	)

	// 11. Middleware: метрики → логирование → JWT (health и metrics без auth)
	middlewares := []func(http.Handler) http.Handler{
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	}

	var requireAdmin func(http.Handler) http.Handler
	if cfg.JWKSURL != "" {
		jwtAuth, err := middleware.NewJWTAuth(
			cfg.JWKSURL,
			cfg.KeycloakCACert,
			cfg.JWTIssuer,
			cfg.AdminGroups, cfg.LearnerGroups,
			cfg.JWKSClientTimeout,
			cfg.JWKSRefreshInterval,
			cfg.JWTLeeway,
			logger,
		)
		if err != nil {
			logger.Error("Ошибка инициализации JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer jwtAuth.Close()

		middlewares = append(middlewares, server.JWTAuthWithExclusions(
			jwtAuth.Middleware(),
			"/health/", "/metrics",
		))
		requireAdmin = middleware.RequireRoleOrScope(
			[]string{middleware.RoleAdmin},
			[]string{middleware.ScopeCacheAdmin},
		)
	} else {
		logger.Warn("VM_JWKS_URL не задан — аутентификация отключена (dev-режим)")
	}

	// 12. HTTP-сервер (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, func(r chi.Router) {
		apiHandler.Routes(r, requireAdmin)
	}, middlewares...)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Vocab Module остановлен")
}

// newCacheBackend создаёт кэш-бэкенд согласно конфигурации.
// Недоступный при старте Redis — фатальная ошибка: оператор явно выбрал
// распределённый кэш, молчаливый даунгрейд до in-memory скрыл бы проблему.
func newCacheBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Backend, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		backend, err := cache.NewRedisBackend(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		logger.Info("Кэш-бэкенд Redis подключен", slog.String("addr", cfg.RedisAddr))
		return backend, nil
	default:
		logger.Info("Кэш-бэкенд in-memory",
			slog.Int("max_entries", cfg.CacheMaxEntries),
			slog.Duration("ttl", cfg.CacheTTL),
		)
		return cache.NewMemoryBackend(cfg.CacheMaxEntries, cfg.CacheTTL), nil
	}
}
