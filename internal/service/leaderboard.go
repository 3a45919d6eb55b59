package service

import (
	"context"

	"github.com/osudroid-server/internal/domain"
	"github.com/osudroid-server/internal/postgres"
)

// MapLeaderboard returns the top best-status scores on a beatmap, ranks
// assigned by position.
func (s *Service) MapLeaderboard(ctx context.Context, mapHash string) ([]postgres.MapLeaderboardEntry, error) {
	entries, err := s.store.TopScoresOnMap(ctx, mapHash, s.metric, s.cfg.Ranking.LeaderboardSize)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Score.Rank = int64(i + 1)
	}
	return entries, nil
}

// ScoreDetail returns one score with its live map rank filled in.
func (s *Service) ScoreDetail(ctx context.Context, scoreID int64) (*domain.Score, error) {
	score, err := s.store.GetScore(ctx, scoreID)
	if err != nil {
		return nil, err
	}
	if score.Status.IsUserBest() {
		rank, err := s.store.MapRank(ctx, score.ID, score.MapHash, s.metric, score.MetricValue(s.metric))
		if err != nil {
			return nil, err
		}
		score.Rank = rank
	}
	return score, nil
}

// GlobalEntry is one row of the global rankings page, enriched with player
// identity.
type GlobalEntry struct {
	Rank      int64   `json:"rank"`
	PlayerID  int64   `json:"player_id"`
	Username  string  `json:"username"`
	Value     float64 `json:"value"`
	Accuracy  float64 `json:"accuracy"`
	PlayCount int64   `json:"play_count"`
}

// GlobalTop returns a page of the global rankings.
func (s *Service) GlobalTop(ctx context.Context, offset, limit int64) ([]GlobalEntry, error) {
	if limit <= 0 || limit > int64(s.cfg.Ranking.MaxLimit) {
		limit = int64(s.cfg.Ranking.LeaderboardSize)
	}

	ranked, err := s.rankings.TopPlayers(ctx, domain.ModeStandard, offset, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]GlobalEntry, 0, len(ranked))
	for _, r := range ranked {
		entry := GlobalEntry{
			Rank:     r.Rank,
			PlayerID: r.PlayerID,
			Value:    r.Value,
		}
		if player, err := s.store.GetPlayer(ctx, r.PlayerID); err == nil {
			entry.Username = player.Username
		}
		if stats, err := s.store.GetStatistics(ctx, r.PlayerID, domain.ModeStandard); err == nil {
			entry.Accuracy = stats.Accuracy
			entry.PlayCount = stats.PlayCount
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// BeatmapInfo is beatmap metadata together with its difficulty attributes.
type BeatmapInfo struct {
	Beatmap    *domain.Beatmap              `json:"beatmap"`
	Difficulty *domain.DifficultyAttributes `json:"difficulty,omitempty"`
}

// BeatmapInfo resolves a beatmap and its star rating under the given mods
// and speed. A failed difficulty computation degrades to metadata only.
func (s *Service) BeatmapInfo(ctx context.Context, hash, mods string, speed float64) (*BeatmapInfo, error) {
	bm, err := s.beatmaps.Lookup(ctx, hash)
	if err != nil {
		return nil, err
	}

	info := &BeatmapInfo{Beatmap: bm}
	attrs, err := s.engine.ComputeDifficulty(ctx, hash, mods, speed)
	if err != nil {
		s.logger.Warn("difficulty computation failed", "hash", hash, "error", err)
		return info, nil
	}
	info.Difficulty = attrs
	return info, nil
}

// Replay returns the stored binary replay for a score.
func (s *Service) Replay(ctx context.Context, scoreID int64) ([]byte, error) {
	if _, err := s.store.GetScore(ctx, scoreID); err != nil {
		return nil, err
	}
	return s.replays.Get(scoreID)
}
