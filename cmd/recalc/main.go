// Command recalc enqueues a pp recalculation job for every registered
// player. Run it after a difficulty algorithm update; the server's recalc
// consumer drains the queue and reprices scores in the background.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/osudroid-server/internal/config"
	"github.com/osudroid-server/internal/kafka"
	"github.com/osudroid-server/internal/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	reason := flag.String("reason", "manual", "Reason recorded on every job")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx := context.Background()

	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	playerIDs, err := repo.ListPlayerIDs(ctx)
	if err != nil {
		logger.Error("failed to list players", "error", err)
		os.Exit(1)
	}
	logger.Info("enqueueing recalculation jobs", "players", len(playerIDs), "reason", *reason)

	producer, err := kafka.NewProducer(&cfg.Kafka, logger)
	if err != nil {
		logger.Error("failed to create Kafka producer", "error", err)
		os.Exit(1)
	}

	requestedAt := time.Now()
	enqueued := 0
	for _, playerID := range playerIDs {
		job := kafka.RecalcJob{
			PlayerID:    playerID,
			Reason:      *reason,
			RequestedAt: requestedAt,
		}
		if err := producer.PublishRecalcJob(ctx, job); err != nil {
			logger.Error("failed to enqueue job", "player_id", playerID, "error", err)
			continue
		}
		enqueued++

		if enqueued%1000 == 0 {
			logger.Info("progress", "enqueued", enqueued, "total", len(playerIDs))
		}
	}

	if err := producer.Close(); err != nil {
		logger.Error("failed to flush producer", "error", err)
		os.Exit(1)
	}

	logger.Info("done", "enqueued", enqueued, "total", len(playerIDs))
}
