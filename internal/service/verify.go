package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/osudroid-server/internal/domain"
	"github.com/osudroid-server/internal/mods"
	"github.com/osudroid-server/internal/replay"
)

// VerifyReplay runs the integrity gates over an uploaded binary replay and,
// when every gate passes, stores it. A replay that contradicts the score it
// claims to back gets the score retracted: the score row is deleted and the
// player's previous best on the map is restored.
//
// Precondition failures (the score is not a best, or already has a replay)
// reject the upload without touching the score.
func (s *Service) VerifyReplay(ctx context.Context, scoreID int64, data []byte) error {
	score, err := s.store.GetScore(ctx, scoreID)
	if err != nil {
		return err
	}
	if !score.Status.IsUserBest() {
		return domain.ErrNotBestScore
	}

	exists, err := s.replays.Exists(scoreID)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrAlreadyUploaded
	}

	if err := s.runGates(ctx, score, data); err != nil {
		if domain.IsIntegrityError(err) {
			s.retract(ctx, score, err)
		}
		return err
	}

	if err := s.replays.Put(scoreID, data); err != nil {
		return fmt.Errorf("storing replay: %w", err)
	}
	return nil
}

func (s *Service) runGates(ctx context.Context, score *domain.Score, data []byte) error {
	cfg := s.cfg.Replay

	// The upload budget runs from the moment the score was accepted.
	if time.Since(score.Date) > cfg.UploadTimeout {
		return domain.ErrUploadTimedOut
	}

	analysis, err := s.engine.AnalyzeReplay(ctx, data)
	if err != nil {
		return err
	}

	player, err := s.store.GetPlayer(ctx, score.PlayerID)
	if err != nil {
		return err
	}
	if analysis.PlayerName != player.Username {
		return fmt.Errorf("%w: %q", domain.ErrUsernameMismatch, analysis.PlayerName)
	}

	if analysis.Version < cfg.MinVersion {
		return fmt.Errorf("%w: version %d", domain.ErrStaleReplayVersion, analysis.Version)
	}

	if math.Abs(analysis.Accuracy-score.Accuracy) > cfg.AccuracyTolerance {
		return fmt.Errorf("%w: replay %.3f, score %.3f", domain.ErrAccuracyMismatch, analysis.Accuracy, score.Accuracy)
	}

	hitDeltas := [][2]int{
		{analysis.Geki, score.Geki},
		{analysis.N300, score.N300},
		{analysis.Katu, score.Katu},
		{analysis.N100, score.N100},
		{analysis.N50, score.N50},
		{analysis.Miss, score.Miss},
	}
	for _, d := range hitDeltas {
		if abs(d[0]-d[1]) > cfg.HitTolerance {
			return fmt.Errorf("%w: replay %d, score %d", domain.ErrHitCountMismatch, d[0], d[1])
		}
	}

	if abs(analysis.MaxCombo-score.MaxCombo) > cfg.HitTolerance {
		return fmt.Errorf("%w: replay %d, score %d", domain.ErrComboMismatch, analysis.MaxCombo, score.MaxCombo)
	}

	if math.Abs(analysis.Speed-score.Speed) > cfg.SpeedTolerance {
		return fmt.Errorf("%w: replay %.3f, score %.3f", domain.ErrSpeedMismatch, analysis.Speed, score.Speed)
	}

	if err := s.checkEstimatedScore(ctx, score, analysis); err != nil {
		return err
	}

	// Three-finger play does not invalidate the replay but taxes the pp.
	if analysis.TapPenalty > 0 {
		s.applyTapPenalty(ctx, score, analysis.TapPenalty)
	}

	return nil
}

// checkEstimatedScore re-derives the score value from the replay's
// per-object hit data and compares it against the declared score. Mods with
// a custom score multiplier widen the tolerance, since the estimator only
// knows the stock tables.
func (s *Service) checkEstimatedScore(ctx context.Context, score *domain.Score, analysis *domain.ReplayAnalysis) error {
	modSet, _, err := mods.Decode(score.Mods)
	if err != nil {
		return fmt.Errorf("%w: undecodable mods %q", domain.ErrScoreMismatch, score.Mods)
	}

	bm, err := s.beatmaps.Lookup(ctx, score.MapHash)
	if err != nil {
		return err
	}

	estimated := replay.EstimateScore(bm, analysis.HitData, modSet, score.Speed)
	if estimated == 0 {
		return nil
	}

	tolerance := s.cfg.Replay.ScoreTolerance
	if modSet.HasCustomMultiplier() {
		tolerance *= s.cfg.Replay.CustomModFactor
	}
	if math.Abs(float64(score.Score-estimated)) > tolerance*float64(estimated) {
		return fmt.Errorf("%w: declared %d, estimated %d", domain.ErrScoreMismatch, score.Score, estimated)
	}
	return nil
}

// applyTapPenalty reprices the play with the analyzer's tap penalty and
// refreshes the player's aggregates. Failures here degrade to the original
// pp rather than failing the upload.
func (s *Service) applyTapPenalty(ctx context.Context, score *domain.Score, penalty float64) {
	pp := s.pricePlay(ctx, score, penalty)
	if pp >= score.PP {
		return
	}
	if err := s.store.UpdateScorePP(ctx, score.ID, pp); err != nil {
		s.logger.Warn("applying tap penalty", "score_id", score.ID, "error", err)
		return
	}
	score.PP = pp
	if _, err := s.refreshStatistics(ctx, score.PlayerID, score.Mode); err != nil {
		s.logger.Warn("refreshing statistics after tap penalty", "player_id", score.PlayerID, "error", err)
	}
}

// retract deletes a score whose replay failed verification, restores the
// player's previous best on the map, and brings the aggregates back in
// line.
func (s *Service) retract(ctx context.Context, score *domain.Score, cause error) {
	restored := domain.StatusBest
	if bm, err := s.beatmaps.Lookup(ctx, score.MapHash); err == nil && bm.Approval == domain.ApprovalLoved {
		restored = domain.StatusApproved
	}

	if err := s.store.DeleteScoreRestorePrevious(ctx, score, s.metric, restored); err != nil {
		s.logger.Error("retracting score", "score_id", score.ID, "error", err)
		return
	}
	s.logger.Info("score retracted after failed replay verification",
		"score_id", score.ID, "player_id", score.PlayerID, "cause", cause)

	if err := s.store.RecordScoreEvent(ctx, score.ID, score.PlayerID, score.MapHash, "retracted"); err != nil {
		s.logger.Warn("recording retraction event", "score_id", score.ID, "error", err)
	}

	// Ranked score is cumulative over best swaps, so hand the deleted
	// score's contribution back to whatever got restored.
	if stats, err := s.store.GetStatistics(ctx, score.PlayerID, score.Mode); err == nil {
		stats.RankedScore -= score.Score
		if restoredBest, err := s.store.GetBestScore(ctx, score.PlayerID, score.MapHash); err == nil && restoredBest != nil {
			stats.RankedScore += restoredBest.Score
		}
		if err := s.store.SaveStatistics(ctx, stats); err != nil {
			s.logger.Warn("adjusting ranked score after retraction", "player_id", score.PlayerID, "error", err)
		}
	}

	if _, err := s.refreshStatistics(ctx, score.PlayerID, score.Mode); err != nil {
		s.logger.Warn("refreshing statistics after retraction", "player_id", score.PlayerID, "error", err)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
