// Package redis keeps the hot read paths off PostgreSQL: the global
// rankings sorted set and short-lived caches for beatmap and difficulty
// lookups. PostgreSQL stays the source of truth; everything here can be
// rebuilt from it.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/osudroid-server/internal/config"
	"github.com/osudroid-server/internal/domain"
)

// Client wraps the Redis connection
type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewClient creates a new Redis client
func NewClient(cfg *config.RedisConfig, logger *slog.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Client{rdb: rdb, logger: logger}, nil
}

// NewClientFromRedis wraps an existing go-redis client. Used by tests.
func NewClientFromRedis(rdb *redis.Client, logger *slog.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func rankingsKey(mode domain.GameMode) string {
	return fmt.Sprintf("rankings:%d", mode)
}

// SetPlayerMetric writes a player's ranking metric into the mode's sorted set
func (c *Client) SetPlayerMetric(ctx context.Context, mode domain.GameMode, playerID int64, value float64) error {
	member := strconv.FormatInt(playerID, 10)
	if err := c.rdb.ZAdd(ctx, rankingsKey(mode), redis.Z{Score: value, Member: member}).Err(); err != nil {
		return fmt.Errorf("setting player metric: %w", err)
	}
	return nil
}

// RemovePlayer drops a player from the mode's rankings
func (c *Client) RemovePlayer(ctx context.Context, mode domain.GameMode, playerID int64) error {
	member := strconv.FormatInt(playerID, 10)
	if err := c.rdb.ZRem(ctx, rankingsKey(mode), member).Err(); err != nil {
		return fmt.Errorf("removing player from rankings: %w", err)
	}
	return nil
}

// GlobalRank computes a player's global position: one plus the number of
// other players whose metric meets or exceeds theirs. Counting against the
// live sorted set means the rank is recomputed on every call, never stored.
func (c *Client) GlobalRank(ctx context.Context, mode domain.GameMode, playerID int64, value float64) (int64, error) {
	key := rankingsKey(mode)
	member := strconv.FormatInt(playerID, 10)
	min := strconv.FormatFloat(value, 'f', -1, 64)

	count, err := c.rdb.ZCount(ctx, key, min, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("counting rankings: %w", err)
	}

	// When the player's own entry is inside the counted range it already
	// stands in for the "plus one".
	_, err = c.rdb.ZScore(ctx, key, member).Result()
	if err == redis.Nil {
		return count + 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("checking rankings membership: %w", err)
	}
	return count, nil
}

// RankedPlayer is one row of the global rankings page.
type RankedPlayer struct {
	PlayerID int64
	Value    float64
	Rank     int64
}

// TopPlayers returns the global rankings page for a mode
func (c *Client) TopPlayers(ctx context.Context, mode domain.GameMode, offset, limit int64) ([]RankedPlayer, error) {
	results, err := c.rdb.ZRevRangeWithScores(ctx, rankingsKey(mode), offset, offset+limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top players: %w", err)
	}

	players := make([]RankedPlayer, 0, len(results))
	for i, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		players = append(players, RankedPlayer{
			PlayerID: id,
			Value:    z.Score,
			Rank:     offset + int64(i) + 1,
		})
	}
	return players, nil
}

// CountPlayers returns the number of ranked players in a mode
func (c *Client) CountPlayers(ctx context.Context, mode domain.GameMode) (int64, error) {
	count, err := c.rdb.ZCard(ctx, rankingsKey(mode)).Result()
	if err != nil {
		return 0, fmt.Errorf("counting ranked players: %w", err)
	}
	return count, nil
}

// ReplaceRankings atomically rewrites a mode's sorted set from statistics
// rows. The reconciliation worker calls this so crashed submissions or
// manual database edits converge back into the rankings.
func (c *Client) ReplaceRankings(ctx context.Context, mode domain.GameMode, metric domain.Metric, stats []domain.Statistics) error {
	key := rankingsKey(mode)
	if len(stats) == 0 {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("clearing rankings: %w", err)
		}
		return nil
	}

	staging := key + ":staging"
	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, staging)
	for _, s := range stats {
		pipe.ZAdd(ctx, staging, redis.Z{
			Score:  s.MetricValue(metric),
			Member: strconv.FormatInt(s.PlayerID, 10),
		})
	}
	pipe.Rename(ctx, staging, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replacing rankings: %w", err)
	}
	return nil
}
