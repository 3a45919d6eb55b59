package service

import (
	"context"

	"github.com/osudroid-server/internal/domain"
)

// RecalculatePlayer reprices every best score the player holds against the
// current engine and rebuilds their aggregates. Driven by the recalc
// consumer after difficulty algorithm updates.
func (s *Service) RecalculatePlayer(ctx context.Context, playerID int64) error {
	scores, err := s.store.BestScores(ctx, playerID)
	if err != nil {
		return err
	}

	updates := make(map[int64]float64, len(scores))
	for i := range scores {
		score := &scores[i]
		pp := s.pricePlay(ctx, score, 0)
		if pp != score.PP {
			updates[score.ID] = pp
		}
	}

	if len(updates) > 0 {
		if err := s.store.BatchUpdateScorePP(ctx, updates); err != nil {
			return err
		}
	}

	if _, err := s.refreshStatistics(ctx, playerID, domain.ModeStandard); err != nil {
		return err
	}

	s.logger.Info("player recalculated", "player_id", playerID, "scores", len(scores), "updated", len(updates))
	return nil
}
