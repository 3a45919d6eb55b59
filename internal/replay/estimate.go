package replay

import (
	"math"

	"github.com/osudroid-server/internal/domain"
	"github.com/osudroid-server/internal/mods"
)

// Nested slider element values: ticks score 10, the slider tail 30.
const (
	sliderTickValue = 10
	sliderTailValue = 30
)

// EstimateScore replays the scoring rules over an analyzed replay's
// per-object hit data and returns the score value the client should have
// produced. Combo-scaled hit values follow the stock formula: each hit adds
// its base value plus value*combo*difficultyMultiplier*scoreMultiplier/25.
// Unranked mod sets always estimate to zero.
func EstimateScore(bm *domain.Beatmap, hits []domain.HitData, set mods.ModSet, speed float64) int64 {
	difficultyMultiplier := 1 + bm.OD/10 + bm.HP/10 + (bm.CS-3)/4
	scoreMultiplier := set.ScoreMultiplier() * speedScoreMultiplier(speed)

	var score float64
	combo := 0

	hitValue := func(value float64) {
		score += value
		score += value * float64(combo) * difficultyMultiplier * scoreMultiplier / 25
		combo++
	}

	for i, hit := range hits {
		if i >= len(bm.Objects) {
			break
		}
		object := bm.Objects[i]

		if object.Slider {
			for j := 1; j <= object.NestedCount; j++ {
				if j-1 < len(hit.Tickset) && hit.Tickset[j-1] {
					if j < object.NestedCount {
						score += sliderTickValue
					} else {
						score += sliderTailValue
					}
				} else {
					combo = 0
				}
			}
			continue
		}

		switch hit.Result {
		case domain.HitResultMiss:
			combo = 0
		case domain.HitResult50:
			hitValue(50)
		case domain.HitResult100:
			hitValue(100)
		case domain.HitResult300:
			hitValue(300)
		}
	}

	return int64(score)
}

// speedScoreMultiplier scales score for custom playback speeds: faster play
// earns a linear bonus, slower play decays exponentially.
func speedScoreMultiplier(speed float64) float64 {
	switch {
	case speed > 1:
		return 1 + (speed-1)*0.24
	case speed < 1:
		return math.Pow(0.3, (1-speed)*4)
	default:
		return 1
	}
}
