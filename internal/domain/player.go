package domain

import (
	"math"
	"time"
)

// GameMode identifies the ruleset statistics are tracked under.
type GameMode int

const (
	ModeStandard GameMode = 0
)

// Player represents a registered player.
type Player struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	EmailMD5     string    `json:"email_md5,omitempty"`
	PasswordHash string    `json:"-"`
	Session      string    `json:"-"` // current session token, rotated at login
	DeviceIDs    []string  `json:"device_ids,omitempty"`
	Playing      string    `json:"playing,omitempty"` // hash of the beatmap being attempted
	LastSeen     time.Time `json:"last_seen"`
	CreatedAt    time.Time `json:"created_at"`
}

// Statistics is a player's derived aggregate for one game mode. It is
// recomputed from the player's best-status scores and never hand-edited.
type Statistics struct {
	PlayerID    int64    `json:"player_id"`
	Mode        GameMode `json:"mode"`
	PP          float64  `json:"pp"`
	RankedScore int64    `json:"ranked_score"`
	TotalScore  int64    `json:"total_score"`
	PlayCount   int64    `json:"play_count"`
	Accuracy    float64  `json:"accuracy"` // percent, 0..100
}

// NewStatistics returns the lazily-created default row: full accuracy,
// everything else zero.
func NewStatistics(playerID int64, mode GameMode) *Statistics {
	return &Statistics{
		PlayerID: playerID,
		Mode:     mode,
		Accuracy: 100,
	}
}

// MetricValue returns the value ranking this player under the configured
// metric.
func (s *Statistics) MetricValue(m Metric) float64 {
	switch m {
	case MetricRankedScore:
		return float64(s.RankedScore)
	case MetricTotalScore:
		return float64(s.TotalScore)
	default:
		return s.PP
	}
}

// RoundedMetric returns the metric value rounded for the wire protocol.
func (s *Statistics) RoundedMetric(m Metric) int64 {
	return int64(math.Round(s.MetricValue(m)))
}

// DroidAccuracy returns the accuracy in the client's fixed-point encoding.
func (s *Statistics) DroidAccuracy() int64 {
	return int64(math.Round(s.Accuracy * 1000))
}
