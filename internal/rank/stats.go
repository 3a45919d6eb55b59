package rank

import (
	"math"

	"github.com/osudroid-server/internal/domain"
)

// Aggregation window sizes. The accuracy window is deliberately half the pp
// window; the asymmetry is part of the scoring contract.
const (
	ppWindow       = 100
	accuracyWindow = 50
	ppWeightDecay  = 0.95
)

// ScoreSample is the slice of a best score the aggregator needs.
type ScoreSample struct {
	ID       int64
	PP       float64
	Score    int64
	Accuracy float64 // percent, 0..100
}

// MetricValue mirrors domain.Score.MetricValue for samples.
func (s ScoreSample) MetricValue(m domain.Metric) float64 {
	if m == domain.MetricPP {
		return s.PP
	}
	return float64(s.Score)
}

// Aggregate is the recomputed player aggregate. A false OK flag means the
// intermediate result was not finite and the stored value must stay
// untouched.
type Aggregate struct {
	Accuracy   float64
	AccuracyOK bool
	PP         float64
	PPOK       bool
}

// AggregateStatistics recomputes a player's accuracy and weighted pp from
// their best-score window, ordered descending by the configured metric and
// at most 100 entries long. A just-submitted score that has not reached the
// window yet is appended while the window has room, or substituted for the
// last slot when it would outrank it, so a single request aggregates
// consistently without a second round-trip. The function is pure: the same
// window always yields the same aggregate.
func AggregateStatistics(window []ScoreSample, recent *ScoreSample, metric domain.Metric) Aggregate {
	scores := make([]ScoreSample, len(window))
	copy(scores, window)

	if recent != nil && !containsID(scores, recent.ID) {
		if len(scores) < ppWindow {
			scores = append(scores, *recent)
		} else if last := scores[len(scores)-1]; recent.MetricValue(metric) > last.MetricValue(metric) {
			scores[len(scores)-1] = *recent
		}
	}

	var agg Aggregate
	if len(scores) == 0 {
		return agg
	}

	accCount := len(scores)
	if accCount > accuracyWindow {
		accCount = accuracyWindow
	}
	var accSum float64
	for _, s := range scores[:accCount] {
		accSum += s.Accuracy
	}
	if acc := accSum / float64(accCount); isFinite(acc) {
		agg.Accuracy = acc
		agg.AccuracyOK = true
	}

	var pp float64
	weight := 1.0
	for _, s := range scores {
		pp += s.PP * weight
		weight *= ppWeightDecay
	}
	if isFinite(pp) {
		agg.PP = pp
		agg.PPOK = true
	}

	return agg
}

func containsID(scores []ScoreSample, id int64) bool {
	for _, s := range scores {
		if s.ID == id {
			return true
		}
	}
	return false
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
