// The workers binary runs the background side of the reservation core: the
// lock expiry reaper and the notification recorder, without the HTTP API.
// Deployments that colocate everything can run cmd/api alone; the reaper is
// started there too, and the pending-only cancellation keeps duplicate
// sweeps harmless.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cinebook/internal/clock"
	"cinebook/internal/config"
	"cinebook/internal/consumers"
	"cinebook/internal/database"
	"cinebook/internal/logger"
	"cinebook/internal/messaging"
	"cinebook/internal/reaper"
	"cinebook/internal/repository"
	"cinebook/internal/search"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", "error", err)
	}
	defer natsClient.Close()

	esClient, err := search.NewClient(cfg.Elasticsearch)
	if err != nil {
		logger.Fatal("Failed to connect to Elasticsearch", "error", err)
	}

	repos := repository.New(db, esClient)

	sweeper := reaper.New(repos.Locks, repos.Bookings, natsClient, clock.System(), cfg.Reaper)
	sweeper.Start()

	consumerService := consumers.NewConsumerService(natsClient, repos)
	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	slog.Info("Workers started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down workers...")

	consumerService.Stop()
	sweeper.Stop()

	slog.Info("Workers stopped")
}
