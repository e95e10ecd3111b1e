// Package main is the entrypoint for the WordForge API server.
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

	"github.com/wordforge/wordforge/internal/api"
	"github.com/wordforge/wordforge/internal/api/handler"
	mw "github.com/wordforge/wordforge/internal/api/middleware"
	"github.com/wordforge/wordforge/internal/api/response"
	"github.com/wordforge/wordforge/internal/batchsvc"
	"github.com/wordforge/wordforge/internal/cache"
	"github.com/wordforge/wordforge/internal/config"
	"github.com/wordforge/wordforge/internal/dispatch"
	"github.com/wordforge/wordforge/internal/notify"
	"github.com/wordforge/wordforge/internal/settle"
	"github.com/wordforge/wordforge/internal/store"
	"github.com/wordforge/wordforge/internal/worker"
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
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env,
		"staleness_window", cfg.Engine.StalenessWindow,
		"dispatch_batch_size", cfg.Engine.DispatchBatchSize)

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
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and domain services
	pgStore := store.NewPostgresStore(pool)

	workerClient := worker.NewHTTPClient(cfg.Worker.BaseURL, cfg.Worker.Secret, cfg.Worker.Timeout)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Mailer.URL != "" {
		notifier = notify.NewMailer(cfg.Mailer.URL, cfg.Mailer.From, cfg.Mailer.Timeout)
		slog.Info("mailer enabled", "url", cfg.Mailer.URL)
	}

	engine := settle.NewEngine(pgStore, workerClient, notifier, cfg.Engine.StalenessWindow)
	dispatcher := dispatch.New(pgStore, workerClient, engine, cfg.Engine.DispatchBatchSize)
	batchService := batchsvc.NewService(pgStore)

	// 6. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		WorkerSecret: cfg.Worker.Secret,
		CronSecret:   cfg.Cron.Secret,

		HealthHandler: healthHandler(pgStore, redisCache),

		CreateBatchHandler: handler.NewCreateBatchHandler(batchService),
		GetBatchHandler:    handler.NewGetBatchHandler(pgStore, redisCache),
		ListBatchesHandler: handler.NewListBatchesHandler(pgStore),

		UnitContentHandler: handler.NewUnitContentHandler(pgStore),

		DispatchTrigger: handler.NewTriggerHandler(dispatcher.Run),
		SettleTrigger:   handler.NewTriggerHandler(engine.SettleStale),
		SweepTrigger:    handler.NewTriggerHandler(engine.SweepReady),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
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
