// Package worker reconciles the Redis rankings with PostgreSQL. The sorted
// set is a derived view; this worker rebuilds it at startup and on an
// interval so crashes, manual edits and recalculations all converge.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/osudroid-server/internal/config"
	"github.com/osudroid-server/internal/domain"
	"github.com/osudroid-server/internal/postgres"
	"github.com/osudroid-server/internal/redis"
)

// RankingsWorker periodically rebuilds the global rankings from statistics
type RankingsWorker struct {
	redis    *redis.Client
	postgres *postgres.Repository
	config   *config.SyncConfig
	metric   domain.Metric
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewRankingsWorker creates a new rankings worker
func NewRankingsWorker(
	redisClient *redis.Client,
	repo *postgres.Repository,
	cfg *config.SyncConfig,
	metric domain.Metric,
	logger *slog.Logger,
) *RankingsWorker {
	return &RankingsWorker{
		redis:    redisClient,
		postgres: repo,
		config:   cfg,
		metric:   metric,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start rebuilds the rankings once, then begins the periodic loop
func (w *RankingsWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// A cold Redis would otherwise serve empty rankings until the first
	// tick.
	w.rebuild(ctx)

	w.logger.Info("rankings worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background loop
func (w *RankingsWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("rankings worker stopped")
	return nil
}

// run is the main worker loop
func (w *RankingsWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.rebuild(ctx)
		}
	}
}

// rebuild replaces the sorted set with the current statistics table
func (w *RankingsWorker) rebuild(ctx context.Context) {
	startTime := time.Now()

	stats, err := w.postgres.AllStatistics(ctx, domain.ModeStandard)
	if err != nil {
		w.logger.Error("failed to load statistics for rankings rebuild", "error", err)
		return
	}

	if err := w.redis.ReplaceRankings(ctx, domain.ModeStandard, w.metric, stats); err != nil {
		w.logger.Error("failed to rebuild rankings", "error", err)
		return
	}

	w.logger.Info("rankings rebuilt",
		"duration", time.Since(startTime),
		"players", len(stats),
	)
}

// IsRunning returns whether the worker is currently running
func (w *RankingsWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single rebuild (useful for manual triggers)
func (w *RankingsWorker) RunOnce(ctx context.Context) {
	w.rebuild(ctx)
}
