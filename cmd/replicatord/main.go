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
	"github.com/taskgoapp/taskgo-sync/internal/replication"
	"github.com/taskgoapp/taskgo-sync/internal/repository/postgres"
	"golang.org/x/sync/errgroup"
)

// replicatord is the server-side daemon: it consumes document write
// events from the stream and keeps private subcollections and public
// collections mirrored.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "taskgo-replicatord", "taskgo_replicator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// Mirror writes go through the publishing store too, so a mirrored
	// write can itself trigger the opposite direction.
	producer := infraRedis.NewStreamProducer(app.Redis)
	store := docstore.NewPublishing(postgres.NewDocumentStore(app.Pool), producer, app.Logger)
	txManager := postgres.NewTxManager(app.Pool)

	mirror := replication.NewMirror(store, txManager, app.Logger, app.Metrics)

	repCfg := app.Config.Replicator
	consumer := infraRedis.NewStreamConsumer(
		app.Redis,
		infraRedis.DocWriteStream,
		repCfg.ConsumerGroup,
		app.Config.InstanceID,
		repCfg.BatchSize,
		repCfg.BlockDuration,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		app.Logger.Error().Err(err).Msg("Failed to create consumer group (may already exist)")
	}

	worker := replication.NewWorker(consumer, mirror, app.Logger, app.Metrics)

	router := controller.NewRouter(controller.RouterDeps{
		Pool:            app.Pool,
		RedisClient:     app.Redis,
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
			Str("stream", infraRedis.DocWriteStream).
			Str("group", repCfg.ConsumerGroup).
			Str("consumer", app.Config.InstanceID).
			Msg("Replicator started, listening for write events...")
		return worker.Run(gCtx)
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
