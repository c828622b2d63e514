// Copyright (c) 2026 ArsipKTP. All rights reserved.
// Author: dev@arsipdigital.id

// Command api is the entry point for the ArsipKTP capture-station server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to Redis (optional, for the history warm-start snapshot).
//  4. Wire the extractor, archive client, and workflow controller.
//  5. Warm up: seed history from cache, refresh from the archive, and
//     resolve the capture-station coordinates — all best-effort.
//  6. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arsipdigital/arsipktp/internal/api"
	"github.com/arsipdigital/arsipktp/internal/archive"
	"github.com/arsipdigital/arsipktp/internal/extract"
	"github.com/arsipdigital/arsipktp/internal/geo"
	"github.com/arsipdigital/arsipktp/internal/platform/config"
	"github.com/arsipdigital/arsipktp/internal/platform/constants"
	"github.com/arsipdigital/arsipktp/internal/platform/metrics"
	redisstore "github.com/arsipdigital/arsipktp/internal/platform/redis"
	"github.com/arsipdigital/arsipktp/internal/record"
	"github.com/arsipdigital/arsipktp/internal/workflow"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[ArsipKTP] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("model", cfg.GeminiModel),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. Redis (optional) ───────────────────────────────────────────────
	// The snapshot cache only shortens the cold start; the station works
	// without it.
	var snapshotCache *archive.SnapshotCache
	var checkCache func() error
	if cfg.CacheEnabled() {
		rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()
		snapshotCache = archive.NewSnapshotCache(rdb, log)
		checkCache = func() error {
			return redisstore.Ping(context.Background(), rdb)
		}
	} else {
		log.Info("snapshot_cache_disabled")
	}

	// ── 4. Domain Wiring ──────────────────────────────────────────────────
	extractor, err := extract.NewGemini(extract.Config{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	}, log)
	must(log, err, "initialize extractor")

	store := archive.NewAppsScriptClient(cfg.ArchiveURL, nil, log)
	locator := geo.NewIPClient(cfg.GeolocationURL, nil, log)

	controller := workflow.New(workflow.Dependencies{
		Extractor: extractor,
		Store:     store,
		Cache:     snapshotCache,
		Metrics:   metrics.New(),
		Logger:    log,
	})

	// ── 5. Warmup ─────────────────────────────────────────────────────────
	// Both legs are best-effort: a dead archive or geolocation endpoint
	// must not keep the station from serving captures.
	warmup, warmupCtx := errgroup.WithContext(startupCtx)
	warmup.Go(func() error {
		controller.WarmStart(warmupCtx)
		if err := controller.RefreshHistory(warmupCtx); err != nil {
			log.Warn("initial_history_refresh_failed", slog.Any("error", err))
		}
		return nil
	})
	warmup.Go(func() error {
		locateCtx, cancel := context.WithTimeout(warmupCtx, constants.GeolocationTimeout)
		defer cancel()
		coords, err := locator.Locate(locateCtx)
		if err != nil {
			log.Warn("geolocation_unavailable", slog.Any("error", err))
			return nil
		}
		controller.SetCoordinates(coords)
		return nil
	})
	_ = warmup.Wait()

	// ── 6. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckArchive: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), constants.ArchiveTimeout)
			defer cancel()
			_, err := store.List(ctx)
			return err
		},
		CheckCache: checkCache,
	}, log)

	// ── 7. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Workflow:  workflow.NewHandler(controller),
		Record:    record.NewHandler(),
	}

	server := api.NewServer(context.Background(), cfg, log, handlers)

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
