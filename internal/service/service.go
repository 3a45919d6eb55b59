// Package service holds the business logic for score submission, replay
// verification, accounts and leaderboards. Persistence, caching and the
// external engines sit behind narrow interfaces so the logic tests without
// infrastructure.
package service

import (
	"context"
	"log/slog"

	"github.com/osudroid-server/internal/config"
	"github.com/osudroid-server/internal/difficulty"
	"github.com/osudroid-server/internal/domain"
	"github.com/osudroid-server/internal/postgres"
	"github.com/osudroid-server/internal/rank"
	"github.com/osudroid-server/internal/redis"
)

// Store is the persistence surface the service needs.
type Store interface {
	CreatePlayer(ctx context.Context, p *domain.Player) error
	GetPlayer(ctx context.Context, id int64) (*domain.Player, error)
	GetPlayerByUsername(ctx context.Context, username string) (*domain.Player, error)
	UpdatePlaying(ctx context.Context, playerID int64, hash string) error
	UpdateSession(ctx context.Context, playerID int64, session string) error
	AddDeviceID(ctx context.Context, playerID int64, deviceID string) error

	GetStatistics(ctx context.Context, playerID int64, mode domain.GameMode) (*domain.Statistics, error)
	SaveStatistics(ctx context.Context, s *domain.Statistics) error

	GetScore(ctx context.Context, id int64) (*domain.Score, error)
	GetBestScore(ctx context.Context, playerID int64, mapHash string) (*domain.Score, error)
	InsertScore(ctx context.Context, s *domain.Score) error
	SubmitBest(ctx context.Context, s *domain.Score, stats *domain.Statistics) error
	MapRank(ctx context.Context, scoreID int64, mapHash string, metric domain.Metric, value float64) (int64, error)
	TopScoresOnMap(ctx context.Context, mapHash string, metric domain.Metric, limit int) ([]postgres.MapLeaderboardEntry, error)
	BestScoreWindow(ctx context.Context, playerID int64, mode domain.GameMode, metric domain.Metric, limit int) ([]rank.ScoreSample, error)
	CountPlayersWithMetricAtLeast(ctx context.Context, mode domain.GameMode, metric domain.Metric, value float64, excludePlayerID int64) (int64, error)
	DeleteScoreRestorePrevious(ctx context.Context, score *domain.Score, metric domain.Metric, restored domain.SubmissionStatus) error
	UpdateScorePP(ctx context.Context, scoreID int64, pp float64) error
	BatchUpdateScorePP(ctx context.Context, values map[int64]float64) error
	BestScores(ctx context.Context, playerID int64) ([]domain.Score, error)
	RecordScoreEvent(ctx context.Context, scoreID, playerID int64, mapHash, eventType string) error
}

// Rankings is the global rankings surface, backed by the Redis sorted set.
type Rankings interface {
	SetPlayerMetric(ctx context.Context, mode domain.GameMode, playerID int64, value float64) error
	GlobalRank(ctx context.Context, mode domain.GameMode, playerID int64, value float64) (int64, error)
	TopPlayers(ctx context.Context, mode domain.GameMode, offset, limit int64) ([]redis.RankedPlayer, error)
	CountPlayers(ctx context.Context, mode domain.GameMode) (int64, error)
}

// BeatmapSource resolves beatmap metadata by hash.
type BeatmapSource interface {
	Lookup(ctx context.Context, hash string) (*domain.Beatmap, error)
}

// Engine is the external difficulty and performance engine.
type Engine interface {
	ComputeDifficulty(ctx context.Context, hash, mods string, speed float64) (*domain.DifficultyAttributes, error)
	ComputePerformance(ctx context.Context, req difficulty.PerformanceRequest) (*domain.Performance, error)
	AnalyzeReplay(ctx context.Context, replay []byte) (*domain.ReplayAnalysis, error)
}

// ReplayFiles stores uploaded binary replays.
type ReplayFiles interface {
	Put(scoreID int64, data []byte) error
	Get(scoreID int64) ([]byte, error)
	Exists(scoreID int64) (bool, error)
	Remove(scoreID int64) error
}

// Events publishes score lifecycle events to the message bus. Publishing is
// best-effort; a down broker never fails a submission.
type Events interface {
	ScoreSubmitted(ctx context.Context, score *domain.Score, username string) error
}

// Broadcaster pushes live updates to websocket subscribers.
type Broadcaster interface {
	NotifyBest(score *domain.Score, username string)
}

// Service implements the server's business operations
type Service struct {
	store       Store
	rankings    Rankings
	beatmaps    BeatmapSource
	engine      Engine
	replays     ReplayFiles
	events      Events
	broadcaster Broadcaster
	cfg         *config.Config
	metric      domain.Metric
	logger      *slog.Logger
}

// NewService creates the service. Events and broadcaster may be nil when
// the deployment runs without Kafka or websockets.
func NewService(
	store Store,
	rankings Rankings,
	beatmaps BeatmapSource,
	engine Engine,
	replays ReplayFiles,
	events Events,
	broadcaster Broadcaster,
	cfg *config.Config,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:       store,
		rankings:    rankings,
		beatmaps:    beatmaps,
		engine:      engine,
		replays:     replays,
		events:      events,
		broadcaster: broadcaster,
		cfg:         cfg,
		metric:      domain.Metric(cfg.Ranking.RankingMetric()),
		logger:      logger,
	}
}

// globalRank resolves a player's global position, preferring the Redis
// sorted set and falling back to a PostgreSQL count when Redis is down.
func (s *Service) globalRank(ctx context.Context, playerID int64, stats *domain.Statistics) int64 {
	value := stats.MetricValue(s.metric)
	rank, err := s.rankings.GlobalRank(ctx, stats.Mode, playerID, value)
	if err == nil {
		return rank
	}
	s.logger.Warn("redis rank lookup failed, falling back to postgres", "player_id", playerID, "error", err)

	count, err := s.store.CountPlayersWithMetricAtLeast(ctx, stats.Mode, s.metric, value, playerID)
	if err != nil {
		s.logger.Error("postgres rank fallback failed", "player_id", playerID, "error", err)
		return 0
	}
	return count + 1
}

// refreshStatistics recomputes a player's aggregate accuracy and pp from
// their best-score window and pushes the new metric into the rankings.
// Ranked score, total score and play count are cumulative and stay as
// stored.
func (s *Service) refreshStatistics(ctx context.Context, playerID int64, mode domain.GameMode) (*domain.Statistics, error) {
	stats, err := s.store.GetStatistics(ctx, playerID, mode)
	if err != nil {
		return nil, err
	}

	window, err := s.store.BestScoreWindow(ctx, playerID, mode, s.metric, 100)
	if err != nil {
		return nil, err
	}

	agg := rank.AggregateStatistics(window, nil, s.metric)
	if agg.AccuracyOK {
		stats.Accuracy = agg.Accuracy
	}
	if agg.PPOK {
		stats.PP = agg.PP
	}

	if err := s.store.SaveStatistics(ctx, stats); err != nil {
		return nil, err
	}
	if err := s.rankings.SetPlayerMetric(ctx, mode, playerID, stats.MetricValue(s.metric)); err != nil {
		s.logger.Warn("rankings update failed", "player_id", playerID, "error", err)
	}
	return stats, nil
}
