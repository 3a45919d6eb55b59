package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/osudroid-server/internal/beatmap"
	"github.com/osudroid-server/internal/config"
	"github.com/osudroid-server/internal/difficulty"
	"github.com/osudroid-server/internal/domain"
	"github.com/osudroid-server/internal/handler"
	"github.com/osudroid-server/internal/kafka"
	"github.com/osudroid-server/internal/postgres"
	"github.com/osudroid-server/internal/redis"
	"github.com/osudroid-server/internal/service"
	"github.com/osudroid-server/internal/storage"
	"github.com/osudroid-server/internal/websocket"
	"github.com/osudroid-server/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	redisClient, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgresRepo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := postgresRepo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize replay storage
	replayStore, err := storage.NewReplayStore(cfg.Replay.Dir)
	if err != nil {
		logger.Error("failed to initialize replay storage", "error", err)
		os.Exit(1)
	}

	// External beatmap and difficulty services, both cached in Redis
	beatmapClient := beatmap.NewClient(&cfg.Beatmap, redisClient, logger)
	engineClient := difficulty.NewClient(&cfg.Difficulty, redisClient, logger)

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize Kafka producer for score events and recalc jobs
	var kafkaProducer *kafka.Producer
	var events service.Events
	if cfg.Kafka.Enabled {
		kafkaProducer, err = kafka.NewProducer(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka producer, continuing without score events", "error", err)
		} else {
			events = kafkaProducer
		}
	}

	// Initialize the score service
	scoreService := service.NewService(
		postgresRepo,
		redisClient,
		beatmapClient,
		engineClient,
		replayStore,
		events,
		wsHub,
		cfg,
		logger,
	)

	// Initialize rankings reconciliation worker
	rankingsWorker := worker.NewRankingsWorker(
		redisClient,
		postgresRepo,
		&cfg.Sync,
		domain.Metric(cfg.Ranking.RankingMetric()),
		logger,
	)

	if cfg.Sync.Enabled {
		if err := rankingsWorker.Start(ctx); err != nil {
			logger.Error("failed to start rankings worker", "error", err)
			os.Exit(1)
		}
	} else {
		// Still rebuild once so a cold Redis serves rankings
		rankingsWorker.RunOnce(ctx)
	}

	// Initialize Kafka consumer for recalculation jobs
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.RecalcTopic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, scoreService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(scoreService, wsHub, domain.Metric(cfg.Ranking.RankingMetric()), logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server first so no new submissions arrive
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop rankings worker
	if err := rankingsWorker.Stop(); err != nil {
		logger.Error("failed to stop rankings worker", "error", err)
	}

	// Stop WebSocket hub
	wsHub.Stop()

	// Flush pending Kafka messages
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			logger.Error("failed to close Kafka producer", "error", err)
		}
	}

	logger.Info("server stopped")
}
