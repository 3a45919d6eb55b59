package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/osudroid-server/internal/difficulty"
	"github.com/osudroid-server/internal/domain"
	"github.com/osudroid-server/internal/mods"
	"github.com/osudroid-server/internal/rank"
	"github.com/osudroid-server/internal/replay"
)

// Ping marks the start of a play: it records which beatmap the player is
// attempting so the following submission can resolve it.
func (s *Service) Ping(ctx context.Context, playerID int64, session, mapHash string) (*domain.Player, error) {
	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if player.Session != session {
		return nil, domain.ErrSessionMismatch
	}
	if err := s.store.UpdatePlaying(ctx, playerID, mapHash); err != nil {
		return nil, err
	}
	player.Playing = mapHash
	return player, nil
}

// SubmitResult is what the submission endpoint reports back to the client.
type SubmitResult struct {
	Status        domain.SubmissionStatus
	ScoreID       int64 // zero when the score did not become a best
	GlobalRank    int64
	Metric        int64 // rounded ranking metric after this submission
	DroidAccuracy int64
	MapRank       int64 // zero when the player holds no best on the map
}

// Submit processes one replay-summary submission end to end: parse,
// validate, price, decide status, persist and rank. The whole operation
// runs under the response budget; a submission that cannot finish in time
// fails rather than blocking the client.
func (s *Service) Submit(ctx context.Context, playerID int64, session, data string) (*SubmitResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Ranking.ResponseBudget)
	defer cancel()

	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if player.Session != session {
		return nil, domain.ErrSessionMismatch
	}
	if player.Playing == "" {
		return nil, domain.ErrBeatmapNotFound
	}

	parsed, err := replay.ParseSubmission(data)
	if err != nil {
		return nil, err
	}

	// The summary string names the account the play claims to belong to;
	// a session may only submit its own plays.
	if parsed.Username != player.Username {
		return nil, fmt.Errorf("%w: %q", domain.ErrUsernameMismatch, parsed.Username)
	}

	modSet, modSpeed, err := mods.Decode(parsed.ModString)
	if err != nil {
		return nil, errors.Join(domain.ErrInvalidRequest, err)
	}
	if parsed.Speed == 1.0 && modSpeed != 1.0 {
		parsed.Speed = modSpeed
	}

	// The beatmap fetch and the statistics read are independent; overlap
	// them to stay inside the response budget.
	var (
		bm    *domain.Beatmap
		stats *domain.Statistics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bm, err = s.beatmaps.Lookup(gctx, player.Playing)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.store.GetStatistics(gctx, playerID, domain.ModeStandard)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !bm.Approval.Submittable() {
		return nil, domain.ErrBeatmapNotSubmittable
	}

	score := s.buildScore(player, parsed, bm)

	// Unranked or contradictory mods and clock-skewed timestamps soft-fail:
	// the client gets its current standing back instead of an error.
	if !modSet.Ranked() || !modSet.Compatible() || s.timestampSkewed(parsed.Timestamp) {
		return s.softFail(ctx, player, score, stats)
	}

	score.PP = s.pricePlay(ctx, score, 0)

	previous, err := s.store.GetBestScore(ctx, playerID, score.MapHash)
	if err != nil {
		return nil, err
	}

	decision := rank.DecideStatus(previous, score, s.metric, bm.Approval)
	score.Status = decision.Status
	if score.Status == domain.StatusFailed {
		return s.softFail(ctx, player, score, stats)
	}

	window, err := s.store.BestScoreWindow(ctx, playerID, score.Mode, s.metric, 100)
	if err != nil {
		return nil, err
	}
	// The window is read before the swap commits, so the score about to be
	// demoted is still in it. Drop it; the new score takes its place.
	if decision.DemotePrevious && previous != nil {
		for i, sample := range window {
			if sample.ID == previous.ID {
				window = append(window[:i], window[i+1:]...)
				break
			}
		}
	}
	recent := &rank.ScoreSample{PP: score.PP, Score: score.Score, Accuracy: score.Accuracy}
	agg := rank.AggregateStatistics(window, recent, s.metric)

	stats.PlayCount++
	stats.TotalScore += score.Score
	stats.RankedScore += score.Score
	if decision.DemotePrevious && previous != nil {
		stats.RankedScore -= previous.Score
	}
	if agg.AccuracyOK {
		stats.Accuracy = agg.Accuracy
	}
	if agg.PPOK {
		stats.PP = agg.PP
	}

	if err := s.store.SubmitBest(ctx, score, stats); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.ErrSubmissionTimedOut
		}
		return nil, err
	}

	if err := s.rankings.SetPlayerMetric(ctx, score.Mode, playerID, stats.MetricValue(s.metric)); err != nil {
		s.logger.Warn("rankings update failed", "player_id", playerID, "error", err)
	}

	mapRank, err := s.store.MapRank(ctx, score.ID, score.MapHash, s.metric, score.MetricValue(s.metric))
	if err != nil {
		return nil, err
	}
	score.Rank = mapRank

	s.announce(ctx, score, player.Username)

	return &SubmitResult{
		Status:        score.Status,
		ScoreID:       score.ID,
		GlobalRank:    s.globalRank(ctx, playerID, stats),
		Metric:        stats.RoundedMetric(s.metric),
		DroidAccuracy: stats.DroidAccuracy(),
		MapRank:       mapRank,
	}, nil
}

func (s *Service) buildScore(player *domain.Player, parsed *replay.ParsedSubmission, bm *domain.Beatmap) *domain.Score {
	return &domain.Score{
		PlayerID:  player.ID,
		MapHash:   bm.Hash,
		Mode:      domain.ModeStandard,
		Score:     parsed.Score,
		MaxCombo:  parsed.MaxCombo,
		Grade:     parsed.Grade,
		Geki:      parsed.Geki,
		N300:      parsed.N300,
		Katu:      parsed.Katu,
		N100:      parsed.N100,
		N50:       parsed.N50,
		Miss:      parsed.Miss,
		Accuracy:  replay.AccuracyPercent(parsed.N300, parsed.N100, parsed.N50, parsed.Miss),
		Mods:      parsed.ModString,
		Speed:     parsed.Speed,
		FullCombo: bm.MaxCombo > 0 && parsed.MaxCombo >= bm.MaxCombo,
		DeviceID:  parsed.DeviceID,
		Status:    domain.StatusFailed,
		Date:      time.Now(),
	}
}

// timestampSkewed rejects submissions whose client timestamp drifts from
// server time by more than the response budget, in either direction. A
// replay is submitted right after the play ends, so a claimed timestamp
// hours old is as suspect as one from the future.
func (s *Service) timestampSkewed(ts time.Time) bool {
	drift := time.Since(ts)
	if drift < 0 {
		drift = -drift
	}
	return drift > s.cfg.Ranking.ResponseBudget
}

// pricePlay asks the engine for the play's pp value. Engine failures and
// non-finite results degrade to zero so a flaky engine never blocks
// submissions.
func (s *Service) pricePlay(ctx context.Context, score *domain.Score, tapPenalty float64) float64 {
	perf, err := s.engine.ComputePerformance(ctx, difficulty.PerformanceRequest{
		Hash:       score.MapHash,
		Mods:       score.Mods,
		Speed:      score.Speed,
		MaxCombo:   score.MaxCombo,
		Geki:       score.Geki,
		N300:       score.N300,
		Katu:       score.Katu,
		N100:       score.N100,
		N50:        score.N50,
		Miss:       score.Miss,
		TapPenalty: tapPenalty,
	})
	if err != nil {
		s.logger.Warn("performance computation failed", "map_hash", score.MapHash, "error", err)
		return 0
	}
	if math.IsNaN(perf.Total) || math.IsInf(perf.Total, 0) || perf.Total < 0 {
		s.logger.Warn("performance computation returned non-finite value", "map_hash", score.MapHash, "pp", perf.Total)
		return 0
	}
	return perf.Total
}

// softFail answers a submission that keeps its FAILED status: the client
// receives its unchanged standing, and the attempt is only persisted when
// the deployment keeps failed scores.
func (s *Service) softFail(ctx context.Context, player *domain.Player, score *domain.Score, stats *domain.Statistics) (*SubmitResult, error) {
	score.Status = domain.StatusFailed
	if s.cfg.Ranking.KeepFailedScores {
		if err := s.store.InsertScore(ctx, score); err != nil {
			s.logger.Warn("persisting failed score", "player_id", player.ID, "error", err)
		}
	}

	var mapRank int64
	if previous, err := s.store.GetBestScore(ctx, player.ID, score.MapHash); err == nil && previous != nil {
		if r, err := s.store.MapRank(ctx, previous.ID, score.MapHash, s.metric, previous.MetricValue(s.metric)); err == nil {
			mapRank = r
		}
	}

	return &SubmitResult{
		Status:        domain.StatusFailed,
		GlobalRank:    s.globalRank(ctx, player.ID, stats),
		Metric:        stats.RoundedMetric(s.metric),
		DroidAccuracy: stats.DroidAccuracy(),
		MapRank:       mapRank,
	}, nil
}

// announce fans the new best out to the event bus and live subscribers.
// Both paths are best-effort.
func (s *Service) announce(ctx context.Context, score *domain.Score, username string) {
	if s.events != nil {
		if err := s.events.ScoreSubmitted(ctx, score, username); err != nil {
			s.logger.Warn("publishing score event", "score_id", score.ID, "error", err)
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.NotifyBest(score, username)
	}
	if err := s.store.RecordScoreEvent(ctx, score.ID, score.PlayerID, score.MapHash, "submit"); err != nil {
		s.logger.Warn("recording score event", "score_id", score.ID, "error", err)
	}
}
