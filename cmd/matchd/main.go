package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/openspot/matching-core/internal/app/engine"
	"github.com/openspot/matching-core/internal/infrastructure/postgresql/ledger"
	"github.com/openspot/matching-core/internal/usecase/book"
	"github.com/openspot/matching-core/internal/usecase/broadcast"
	"github.com/openspot/matching-core/internal/usecase/jobstream"
	"github.com/openspot/matching-core/internal/usecase/snapshot"
	"github.com/openspot/matching-core/pkg/config"
	"github.com/openspot/matching-core/pkg/logger"
	"github.com/openspot/matching-core/pkg/postgresql"
	"github.com/openspot/matching-core/pkg/redis"
)

var cfg *config.Config
var log *logger.Logger

func init() {
	cfg = &config.Config{}
	if err := config.Load(cfg); err != nil {
		panic(err)
	}

	l, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}
	log = l
}

func main() {
	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize Redis client
	rclient := redis.NewClient(log, &cfg.Redis)
	if err := rclient.Connect(ctx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "connect_redis",
		})
		return
	}

	// Initialize PostgreSQL client
	pgClient, err := postgresql.NewClient(ctx, cfg.PG)
	if err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "connect_postgres",
		})
		return
	}

	// Initialize components
	ob := book.NewBook(cfg.Instrument, log)
	reader := jobstream.NewReader(cfg.Kafka, log)
	snapshotStore := snapshot.NewSnapshotStore(rclient, cfg.Instrument, log)
	ledgerRepo := ledger.NewRepository(pgClient, log)
	hub := broadcast.NewHub(log)

	engine, err := app.New(ob, ledgerRepo, reader, snapshotStore, hub, log, cfg)
	if err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "build_engine",
		})
		return
	}

	// Tap the event stream so trades and book changes show up in the logs.
	tap := hub.Subscribe(1024)
	go func() {
		for ev := range tap.C {
			log.Debug("stream event",
				logger.Field{Key: "event_id", Value: ev.ID},
				logger.Field{Key: "kind", Value: string(ev.Kind)},
			)
		}
	}()

	// Start the engine
	if err := engine.Start(ctx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "start_engine",
		})
		return
	}

	log.Info("Matching core started successfully", logger.Field{
		Key:   "instrument",
		Value: cfg.Instrument,
	})

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info("Received shutdown signal", logger.Field{
		Key:   "signal",
		Value: sig.String(),
	})

	// Cancel the main context to signal shutdown
	cancel()

	// Create a timeout context for graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the engine gracefully
	if err := engine.Stop(shutdownCtx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "stop_engine",
		})
	}

	hub.Close()

	if err := rclient.Disconnect(shutdownCtx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "disconnect_redis",
		})
	}
	pgClient.Close()

	log.Info("Matching core shutdown complete")
}
