// Package main is the entrypoint for the EquipLens API server and worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/equiplens/internal/ai/providers"
	"github.com/kiranshivaraju/equiplens/internal/api"
	"github.com/kiranshivaraju/equiplens/internal/api/handler"
	mw "github.com/kiranshivaraju/equiplens/internal/api/middleware"
	"github.com/kiranshivaraju/equiplens/internal/api/response"
	"github.com/kiranshivaraju/equiplens/internal/cache"
	"github.com/kiranshivaraju/equiplens/internal/config"
	"github.com/kiranshivaraju/equiplens/internal/filestore"
	"github.com/kiranshivaraju/equiplens/internal/insight"
	"github.com/kiranshivaraju/equiplens/internal/notify"
	"github.com/kiranshivaraju/equiplens/internal/pipeline"
	"github.com/kiranshivaraju/equiplens/internal/queue"
	"github.com/kiranshivaraju/equiplens/internal/store"
	"github.com/kiranshivaraju/equiplens/internal/upload"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env,
		"worker_enabled", cfg.Pipeline.WorkerEnabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Connect to Redis: cache, queue and notifications share one client
	rdb, err := cache.Connect(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	redisCache := cache.NewRedisCacheFromClient(rdb)
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create insight generator behind the cache
	generator, err := providers.NewGenerator(cfg.AI, slog.Default())
	if err != nil {
		return fmt.Errorf("create insight generator: %w", err)
	}
	insights := insight.NewService(generator, redisCache, cfg.Cache, slog.Default())

	// 6. Storage, queue and pipeline
	pgStore := store.NewPostgresStore(pool)
	files := filestore.New(cfg.Storage.UploadDir)

	hostname, _ := os.Hostname()
	tasks := queue.NewRedisQueue(rdb, queue.RedisConfig{
		Stream:      cfg.Pipeline.QueueStream,
		Group:       cfg.Pipeline.QueueGroup,
		Consumer:    fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		Concurrency: cfg.Pipeline.WorkerConcurrency,
		MaxAttempts: cfg.Pipeline.TaskMaxAttempts,
		ReclaimIdle: cfg.Pipeline.ReclaimIdle,
	}, slog.Default())

	orchestrator := pipeline.NewOrchestrator(pgStore, files, insights, tasks,
		notify.NewRedisNotifier(rdb, slog.Default()), redisCache,
		pipeline.WithTaskWaitTimeout(cfg.Pipeline.TaskWaitTimeout))
	uploads := upload.NewService(pgStore, files, tasks, insights,
		upload.WithRetentionLimit(cfg.Pipeline.RetentionLimit))
	hub := notify.NewHub(slog.Default())

	// 7. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMinute)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache),
		EventsHandler: handler.NewEventsHandler(hub),

		UploadHandler:         handler.NewUploadHandler(uploads, cfg.Storage.MaxUploadSize),
		ListDatasetsHandler:   handler.NewListDatasetsHandler(pgStore),
		GetDatasetHandler:     handler.NewGetDatasetHandler(pgStore),
		CorrelationHandler:    handler.NewCorrelationHandler(pgStore),
		StatsHandler:          handler.NewStatsHandler(pgStore),
		ExplainOutlierHandler: handler.NewExplainOutlierHandler(orchestrator),
		OptimizeHandler:       handler.NewOptimizeHandler(orchestrator),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore, 0),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
		WarmHandler:      handler.NewWarmHandler(pgStore, insights),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server, worker and notification relay
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := hub.Run(gctx, rdb); err != nil {
			return fmt.Errorf("notification relay: %w", err)
		}
		return nil
	})

	if cfg.Pipeline.WorkerEnabled {
		mux := queue.NewMux()
		orchestrator.RegisterHandlers(mux)
		g.Go(func() error {
			if err := tasks.Run(gctx, mux.Dispatch); err != nil {
				return fmt.Errorf("task worker: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown once a signal arrives or any component fails
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down, draining connections...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
