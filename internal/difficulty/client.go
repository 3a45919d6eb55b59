// Package difficulty talks to the external difficulty and performance
// engine. Difficulty attributes are cached per (hash, mods, speed);
// performance and replay analysis are always computed fresh because their
// inputs never repeat.
package difficulty

import (
	"bytes"
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

// Client calls the difficulty engine service
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      *redis.Client
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// NewClient creates a difficulty engine client
func NewClient(cfg *config.DifficultyConfig, cache *redis.Client, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		cache:      cache,
		cacheTTL:   cfg.CacheTTL,
		logger:     logger,
	}
}

type difficultyRequest struct {
	Hash  string  `json:"hash"`
	Mods  string  `json:"mods"`
	Speed float64 `json:"speed"`
}

// PerformanceRequest carries everything the engine needs to price a play.
type PerformanceRequest struct {
	Hash       string  `json:"hash"`
	Mods       string  `json:"mods"`
	Speed      float64 `json:"speed"`
	MaxCombo   int     `json:"max_combo"`
	Geki       int     `json:"geki"`
	N300       int     `json:"n300"`
	Katu       int     `json:"katu"`
	N100       int     `json:"n100"`
	N50        int     `json:"n50"`
	Miss       int     `json:"miss"`
	TapPenalty float64 `json:"tap_penalty,omitempty"`
}

// ComputeDifficulty returns the difficulty attributes for a beatmap under
// the given mods and speed, consulting the cache first.
func (c *Client) ComputeDifficulty(ctx context.Context, hash, mods string, speed float64) (*domain.DifficultyAttributes, error) {
	key := redis.DifficultyKey(hash, mods, speed)
	attrs, found, err := c.cache.GetDifficulty(ctx, key)
	if err != nil {
		c.logger.Warn("difficulty cache read failed", "hash", hash, "error", err)
	} else if found {
		return attrs, nil
	}

	attrs = &domain.DifficultyAttributes{}
	err = c.post(ctx, "/difficulty", difficultyRequest{Hash: hash, Mods: mods, Speed: speed}, attrs)
	if err != nil {
		return nil, err
	}

	if cacheErr := c.cache.SetDifficulty(ctx, key, attrs, c.cacheTTL); cacheErr != nil {
		c.logger.Warn("difficulty cache write failed", "hash", hash, "error", cacheErr)
	}
	return attrs, nil
}

// ComputePerformance prices a play. A 404 from the engine means the beatmap
// is unknown on its side and surfaces as ErrBeatmapNotFound.
func (c *Client) ComputePerformance(ctx context.Context, req PerformanceRequest) (*domain.Performance, error) {
	perf := &domain.Performance{}
	if err := c.post(ctx, "/performance", req, perf); err != nil {
		return nil, err
	}
	return perf, nil
}

// AnalyzeReplay sends a raw binary replay to the engine and returns its
// decoded contents. Malformed replays surface as ErrMalformedReplay.
func (c *Client) AnalyzeReplay(ctx context.Context, replay []byte) (*domain.ReplayAnalysis, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(replay))
	if err != nil {
		return nil, fmt.Errorf("building analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyzing replay: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return nil, domain.ErrMalformedReplay
	default:
		return nil, fmt.Errorf("difficulty engine returned status %d", resp.StatusCode)
	}

	var analysis domain.ReplayAnalysis
	if err := json.NewDecoder(resp.Body).Decode(&analysis); err != nil {
		return nil, fmt.Errorf("decoding replay analysis: %w", err)
	}
	return &analysis, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling difficulty engine: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.ErrBeatmapNotFound
	default:
		return fmt.Errorf("difficulty engine returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
