package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskgoapp/taskgo-sync/internal/bootstrap"
	"github.com/taskgoapp/taskgo-sync/internal/controller"
	"github.com/taskgoapp/taskgo-sync/internal/docstore"
	infraRedis "github.com/taskgoapp/taskgo-sync/internal/infrastructure/redis"
	"github.com/taskgoapp/taskgo-sync/internal/repository/local"
	"github.com/taskgoapp/taskgo-sync/internal/repository/postgres"
	"github.com/taskgoapp/taskgo-sync/internal/repository/sqlite"
	syncengine "github.com/taskgoapp/taskgo-sync/internal/sync"
	"golang.org/x/sync/errgroup"
)

// syncd is the client-side daemon: it owns the on-device SQLite store,
// drains the outbox against the remote document store, and serves the
// ops API.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "taskgo-syncd", "taskgo_sync")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	syncCfg := app.Config.Sync

	// --- Local store ---
	localDB, err := sqlite.Open(syncCfg.LocalDBPath)
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer localDB.Close()

	outboxRepo := sqlite.NewOutboxStore(localDB)
	cache := sqlite.NewEntityCache(localDB)

	// --- Remote store, wrapped so every write emits a stream event ---
	producer := infraRedis.NewStreamProducer(app.Redis)
	remote := docstore.NewPublishing(postgres.NewDocumentStore(app.Pool), producer, app.Logger)

	// --- Sync engine ---
	scheduler := syncengine.NewScheduler(outboxRepo, syncCfg.DebounceDelay, app.Logger)
	executor := syncengine.NewExecutor(remote, app.Logger)
	loop := syncengine.NewLoop(outboxRepo, executor, syncengine.LoopConfig{
		PollInterval: syncCfg.PollInterval,
		RetryBackoff: syncCfg.RetryBackoff,
		PurgeAge:     syncCfg.PurgeAge,
		BatchSize:    syncCfg.BatchSize,
	}, app.Logger, app.Metrics)

	localRepo := local.NewRepository(cache, scheduler, app.Logger)

	// --- Initial hydration of the local cache ---
	if syncCfg.InitialSync && syncCfg.UserID != "" {
		bulk := syncengine.NewBulkSyncer(remote, cache, app.Logger, app.Metrics)
		report := bulk.SyncAll(ctx, syncCfg.UserID)
		if !report.AllOK() {
			// Partial hydration is acceptable: the cache converges as
			// the user touches the missing collections.
			app.Logger.Warn().Interface("errors", report.Errors).Msg("Bulk sync finished with errors")
		} else {
			app.Logger.Info().Interface("counts", report.Counts).Msg("Bulk sync complete")
		}
	}

	// --- Ops API ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:            app.Pool,
		RedisClient:     app.Redis,
		Scheduler:       scheduler,
		Loop:            loop,
		LocalRepo:       localRepo,
		Metrics:         app.Metrics,
		CORSConfig:      app.Config.Server.CORS,
		RateLimitPerMin: app.Config.Server.RateLimitPerMin,
	})

	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		app.Logger.Info().
			Dur("poll_interval", syncCfg.PollInterval).
			Dur("debounce", syncCfg.DebounceDelay).
			Msg("Sync loop started")
		return loop.Start(gCtx)
	})

	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down...")
			cancel()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Daemon error")
	}
	app.Logger.Info().Msg("Daemon exited")
}
