package rank

import (
	"math"
	"testing"

	"github.com/osudroid-server/internal/domain"
)

func TestAggregateSingleScore(t *testing.T) {
	window := []ScoreSample{{ID: 1, PP: 250, Accuracy: 98.5}}
	agg := AggregateStatistics(window, nil, domain.MetricPP)
	if !agg.PPOK || agg.PP != 250 {
		t.Fatalf("pp: got %+v, want exactly 250", agg)
	}
	if !agg.AccuracyOK || agg.Accuracy != 98.5 {
		t.Fatalf("accuracy: got %+v, want 98.5", agg)
	}
}

func TestAggregateWeighting(t *testing.T) {
	window := []ScoreSample{
		{ID: 1, PP: 100, Accuracy: 100},
		{ID: 2, PP: 100, Accuracy: 90},
		{ID: 3, PP: 100, Accuracy: 80},
	}
	agg := AggregateStatistics(window, nil, domain.MetricPP)
	want := 100 + 100*0.95 + 100*0.95*0.95
	if math.Abs(agg.PP-want) > 1e-9 {
		t.Fatalf("pp: got %v, want %v", agg.PP, want)
	}
	if math.Abs(agg.Accuracy-90) > 1e-9 {
		t.Fatalf("accuracy: got %v, want 90", agg.Accuracy)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	window := []ScoreSample{
		{ID: 1, PP: 312.4, Accuracy: 99.1},
		{ID: 2, PP: 250.0, Accuracy: 97.3},
		{ID: 3, PP: 120.9, Accuracy: 91.8},
	}
	first := AggregateStatistics(window, nil, domain.MetricPP)
	second := AggregateStatistics(window, nil, domain.MetricPP)
	if first != second {
		t.Fatalf("aggregation not idempotent: %+v vs %+v", first, second)
	}
}

func TestAggregateAppendsRecentWhenWindowHasRoom(t *testing.T) {
	window := []ScoreSample{{ID: 1, PP: 100, Accuracy: 95}}
	recent := &ScoreSample{ID: 2, PP: 50, Accuracy: 85}
	agg := AggregateStatistics(window, recent, domain.MetricPP)
	want := 100 + 50*0.95
	if math.Abs(agg.PP-want) > 1e-9 {
		t.Fatalf("pp: got %v, want %v", agg.PP, want)
	}
}

func TestAggregateRecentAlreadyInWindow(t *testing.T) {
	window := []ScoreSample{{ID: 7, PP: 100, Accuracy: 95}}
	recent := &ScoreSample{ID: 7, PP: 100, Accuracy: 95}
	agg := AggregateStatistics(window, recent, domain.MetricPP)
	if agg.PP != 100 {
		t.Fatalf("recent already in window must not double count: got %v", agg.PP)
	}
}

func TestAggregateSubstitutesLastSlotWhenFull(t *testing.T) {
	window := make([]ScoreSample, 100)
	for i := range window {
		window[i] = ScoreSample{ID: int64(i + 1), PP: float64(200 - i), Accuracy: 95}
	}
	recent := &ScoreSample{ID: 500, PP: 150, Accuracy: 95}
	with := AggregateStatistics(window, recent, domain.MetricPP)
	without := AggregateStatistics(window, nil, domain.MetricPP)
	if with.PP <= without.PP {
		t.Fatalf("substituted recent should raise pp: %v vs %v", with.PP, without.PP)
	}

	// A recent score worse than the 100th entry changes nothing.
	worse := &ScoreSample{ID: 501, PP: 90, Accuracy: 95}
	unchanged := AggregateStatistics(window, worse, domain.MetricPP)
	if unchanged != without {
		t.Fatalf("worse recent must not enter a full window")
	}
}

func TestAggregateAccuracyWindowIsFifty(t *testing.T) {
	window := make([]ScoreSample, 100)
	for i := range window {
		acc := 100.0
		if i >= 50 {
			acc = 0 // must not influence the accuracy average
		}
		window[i] = ScoreSample{ID: int64(i + 1), PP: float64(200 - i), Accuracy: acc}
	}
	agg := AggregateStatistics(window, nil, domain.MetricPP)
	if agg.Accuracy != 100 {
		t.Fatalf("accuracy window leaked past 50 entries: got %v", agg.Accuracy)
	}
}

func TestAggregateNonFiniteDiscarded(t *testing.T) {
	window := []ScoreSample{{ID: 1, PP: math.NaN(), Accuracy: 95}}
	agg := AggregateStatistics(window, nil, domain.MetricPP)
	if agg.PPOK {
		t.Fatalf("NaN pp must be discarded")
	}
	if !agg.AccuracyOK {
		t.Fatalf("accuracy should still aggregate")
	}
}

func TestAggregateEmptyWindow(t *testing.T) {
	agg := AggregateStatistics(nil, nil, domain.MetricPP)
	if agg.PPOK || agg.AccuracyOK {
		t.Fatalf("empty window must leave values untouched: %+v", agg)
	}
}
