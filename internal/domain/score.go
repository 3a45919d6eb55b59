package domain

import (
	"math"
	"time"
)

// SubmissionStatus is the terminal state assigned to a score at submission
// time. The numeric values are part of the client protocol and must not be
// reordered.
type SubmissionStatus int

const (
	// StatusFailed marks a submission that was rejected or superseded on arrival.
	StatusFailed SubmissionStatus = 0
	// StatusSubmitted marks a persisted score that is not the player's best on its map.
	StatusSubmitted SubmissionStatus = 1
	// StatusBest marks the player's current best score on a ranked or approved map.
	StatusBest SubmissionStatus = 2
	// StatusApproved marks the player's current best score on a loved map.
	// It counts for the map leaderboard but carries its own tag.
	StatusApproved SubmissionStatus = 3
)

// IsUserBest reports whether the status counts as the player's current best
// on the beatmap.
func (s SubmissionStatus) IsUserBest() bool {
	return s == StatusBest || s == StatusApproved
}

// Metric selects which value ranks players and scores.
type Metric string

const (
	MetricPP          Metric = "pp"
	MetricRankedScore Metric = "ranked_score"
	MetricTotalScore  Metric = "total_score"
)

// Score is a single replay submission.
type Score struct {
	ID        int64            `json:"id"`
	PlayerID  int64            `json:"player_id"`
	MapHash   string           `json:"map_hash"`
	Mode      GameMode         `json:"mode"`
	Score     int64            `json:"score"`
	MaxCombo  int              `json:"max_combo"`
	Grade     string           `json:"grade"`
	Geki      int              `json:"geki"`
	N300      int              `json:"n300"`
	Katu      int              `json:"katu"`
	N100      int              `json:"n100"`
	N50       int              `json:"n50"`
	Miss      int              `json:"miss"`
	Accuracy  float64          `json:"accuracy"` // percent, 0..100
	Mods      string           `json:"mods"`     // droid mod string, including custom speed segment
	Speed     float64          `json:"speed"`    // custom speed multiplier, 1.0 when unset
	FullCombo bool             `json:"fc"`
	DeviceID  string           `json:"device_id"`
	PP        float64          `json:"pp"`
	Status    SubmissionStatus `json:"status"`
	Date      time.Time        `json:"date"`

	// Rank is the score's position on its beatmap leaderboard. It is
	// computed on demand and never persisted.
	Rank int64 `json:"rank,omitempty"`
}

// MetricValue returns the value used to compare this score against others
// under the configured ranking metric. Score-based metrics both compare the
// raw score value.
func (s *Score) MetricValue(m Metric) float64 {
	if m == MetricPP {
		return s.PP
	}
	return float64(s.Score)
}

// DroidAccuracy returns the accuracy in the client's fixed-point encoding
// (percent times 1000).
func (s *Score) DroidAccuracy() int64 {
	return int64(math.Round(s.Accuracy * 1000))
}
