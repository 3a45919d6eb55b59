// Package beatmap talks to the external beatmap lookup service. Lookups go
// through a Redis cache with negative caching so repeated submissions on
// the same map, or on a map the service does not know, stay cheap.
package beatmap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/osudroid-server/internal/config"
	"github.com/osudroid-server/internal/domain"
	"github.com/osudroid-server/internal/redis"
)

// Client fetches beatmap metadata by MD5 hash
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      *redis.Client
	cacheTTL   time.Duration
	missTTL    time.Duration
	logger     *slog.Logger
}

// NewClient creates a beatmap lookup client
func NewClient(cfg *config.BeatmapConfig, cache *redis.Client, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		cache:      cache,
		cacheTTL:   cfg.CacheTTL,
		missTTL:    cfg.NegativeCacheTTL,
		logger:     logger,
	}
}

// Lookup resolves a beatmap by hash, consulting the cache first. A cached
// miss short-circuits to ErrBeatmapNotFound without touching the service.
func (c *Client) Lookup(ctx context.Context, hash string) (*domain.Beatmap, error) {
	bm, found, err := c.cache.GetBeatmap(ctx, hash)
	if err != nil {
		c.logger.Warn("beatmap cache read failed", "hash", hash, "error", err)
	} else if found {
		if bm == nil {
			return nil, domain.ErrBeatmapNotFound
		}
		return bm, nil
	}

	bm, err = c.fetch(ctx, hash)
	if err != nil {
		if err == domain.ErrBeatmapNotFound {
			if cacheErr := c.cache.SetBeatmapMissing(ctx, hash, c.missTTL); cacheErr != nil {
				c.logger.Warn("beatmap miss cache write failed", "hash", hash, "error", cacheErr)
			}
		}
		return nil, err
	}

	if cacheErr := c.cache.SetBeatmap(ctx, bm, c.cacheTTL); cacheErr != nil {
		c.logger.Warn("beatmap cache write failed", "hash", hash, "error", cacheErr)
	}
	return bm, nil
}

func (c *Client) fetch(ctx context.Context, hash string) (*domain.Beatmap, error) {
	url := fmt.Sprintf("%s/beatmaps/%s", c.baseURL, hash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building beatmap request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching beatmap: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, domain.ErrBeatmapNotFound
	default:
		return nil, fmt.Errorf("beatmap service returned status %d", resp.StatusCode)
	}

	var bm domain.Beatmap
	if err := json.NewDecoder(resp.Body).Decode(&bm); err != nil {
		return nil, fmt.Errorf("decoding beatmap: %w", err)
	}
	if bm.Hash == "" {
		bm.Hash = hash
	}
	return &bm, nil
}
