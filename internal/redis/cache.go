package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/osudroid-server/internal/domain"
)

// missingSentinel marks a cached lookup miss. Negative caching keeps a
// burst of submissions for an unknown beatmap from hammering the lookup
// service.
const missingSentinel = "-"

func beatmapKey(hash string) string {
	return "beatmap:" + hash
}

// GetBeatmap reads a beatmap from the cache. The second return reports
// whether the key was present at all; a present key with a nil beatmap is a
// cached miss.
func (c *Client) GetBeatmap(ctx context.Context, hash string) (*domain.Beatmap, bool, error) {
	data, err := c.rdb.Get(ctx, beatmapKey(hash)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading beatmap cache: %w", err)
	}
	if data == missingSentinel {
		return nil, true, nil
	}

	var bm domain.Beatmap
	if err := json.Unmarshal([]byte(data), &bm); err != nil {
		return nil, false, fmt.Errorf("decoding cached beatmap: %w", err)
	}
	return &bm, true, nil
}

// SetBeatmap caches a beatmap for the given TTL
func (c *Client) SetBeatmap(ctx context.Context, bm *domain.Beatmap, ttl time.Duration) error {
	data, err := json.Marshal(bm)
	if err != nil {
		return fmt.Errorf("encoding beatmap: %w", err)
	}
	if err := c.rdb.Set(ctx, beatmapKey(bm.Hash), data, ttl).Err(); err != nil {
		return fmt.Errorf("caching beatmap: %w", err)
	}
	return nil
}

// SetBeatmapMissing records that a beatmap lookup came back empty
func (c *Client) SetBeatmapMissing(ctx context.Context, hash string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, beatmapKey(hash), missingSentinel, ttl).Err(); err != nil {
		return fmt.Errorf("caching beatmap miss: %w", err)
	}
	return nil
}

// DifficultyKey builds the cache key for a difficulty calculation. Mods and
// speed change the attributes, so they are part of the identity.
func DifficultyKey(hash, mods string, speed float64) string {
	return "difficulty:" + hash + "|" + mods + "|" + strconv.FormatFloat(speed, 'f', -1, 64)
}

// GetDifficulty reads cached difficulty attributes
func (c *Client) GetDifficulty(ctx context.Context, key string) (*domain.DifficultyAttributes, bool, error) {
	data, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading difficulty cache: %w", err)
	}

	var attrs domain.DifficultyAttributes
	if err := json.Unmarshal([]byte(data), &attrs); err != nil {
		return nil, false, fmt.Errorf("decoding cached difficulty: %w", err)
	}
	return &attrs, true, nil
}

// SetDifficulty caches difficulty attributes for the given TTL
func (c *Client) SetDifficulty(ctx context.Context, key string, attrs *domain.DifficultyAttributes, ttl time.Duration) error {
	data, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encoding difficulty: %w", err)
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("caching difficulty: %w", err)
	}
	return nil
}
