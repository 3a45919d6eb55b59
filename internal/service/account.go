package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/osudroid-server/internal/auth"
	"github.com/osudroid-server/internal/domain"
)

const (
	minUsernameLen = 2
	maxUsernameLen = 16
	minPasswordLen = 8
)

// Register creates a new player account with a fresh session token.
func (s *Service) Register(ctx context.Context, username, password, email, deviceID string) (*domain.Player, error) {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return nil, domain.ErrInvalidRequest
	}
	if len(password) < minPasswordLen {
		return nil, domain.ErrInvalidRequest
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	player := &domain.Player{
		Username:     username,
		Email:        email,
		EmailMD5:     auth.EmailMD5(email),
		PasswordHash: hash,
		Session:      uuid.NewString(),
	}
	if deviceID != "" {
		player.DeviceIDs = []string{deviceID}
	}

	if err := s.store.CreatePlayer(ctx, player); err != nil {
		return nil, err
	}

	s.logger.Info("player registered", "player_id", player.ID, "username", player.Username)
	return player, nil
}

// LoginResult is what the login endpoint reports back to the client.
type LoginResult struct {
	Player        *domain.Player
	Session       string
	GlobalRank    int64
	Metric        int64
	DroidAccuracy int64
}

// Login verifies credentials, rotates the session token and returns the
// player's current standing. Every login invalidates the previous session.
func (s *Service) Login(ctx context.Context, username, password, deviceID string) (*LoginResult, error) {
	player, err := s.store.GetPlayerByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPassword(player.PasswordHash, password); err != nil {
		return nil, err
	}

	session := uuid.NewString()
	if err := s.store.UpdateSession(ctx, player.ID, session); err != nil {
		return nil, err
	}
	player.Session = session

	if deviceID != "" {
		if err := s.store.AddDeviceID(ctx, player.ID, deviceID); err != nil {
			s.logger.Warn("recording device id", "player_id", player.ID, "error", err)
		}
	}

	// Recalculations may have repriced scores since the last submission;
	// recompute the aggregates so the client starts from current numbers.
	stats, err := s.refreshStatistics(ctx, player.ID, domain.ModeStandard)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Player:        player,
		Session:       session,
		GlobalRank:    s.globalRank(ctx, player.ID, stats),
		Metric:        stats.RoundedMetric(s.metric),
		DroidAccuracy: stats.DroidAccuracy(),
	}, nil
}

// Profile is a player's public profile with standing and recent bests.
type Profile struct {
	Player     *domain.Player
	Statistics *domain.Statistics
	GlobalRank int64
	BestScores []domain.Score
}

// GetProfile returns a player's profile for the public API.
func (s *Service) GetProfile(ctx context.Context, playerID int64) (*Profile, error) {
	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.GetStatistics(ctx, playerID, domain.ModeStandard)
	if err != nil {
		return nil, err
	}
	best, err := s.store.BestScores(ctx, playerID)
	if err != nil {
		return nil, err
	}

	return &Profile{
		Player:     player,
		Statistics: stats,
		GlobalRank: s.globalRank(ctx, playerID, stats),
		BestScores: best,
	}, nil
}
