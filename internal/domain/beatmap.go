package domain

// ApprovalState is the beatmap's ranked status as reported by the lookup
// service. Values follow the osu! API convention.
type ApprovalState int

const (
	ApprovalRanked    ApprovalState = 1
	ApprovalApproved  ApprovalState = 2
	ApprovalQualified ApprovalState = 3
	ApprovalLoved     ApprovalState = 4
)

// Submittable reports whether scores on a beatmap in this state may enter
// ranked scoring.
func (a ApprovalState) Submittable() bool {
	switch a {
	case ApprovalRanked, ApprovalApproved, ApprovalLoved:
		return true
	}
	return false
}

// HitObject is the slice of beatmap geometry the score estimator needs.
// For sliders, NestedCount is the number of nested elements after the head;
// the last nested element is the slider tail, the rest are ticks.
type HitObject struct {
	Slider      bool `json:"slider"`
	NestedCount int  `json:"nested_count,omitempty"`
}

// Beatmap is the read-only metadata returned by the external lookup service.
type Beatmap struct {
	Hash     string        `json:"hash"`
	Title    string        `json:"title"`
	Approval ApprovalState `json:"approval"`
	MaxCombo int           `json:"max_combo"`
	OD       float64       `json:"od"`
	HP       float64       `json:"hp"`
	CS       float64       `json:"cs"`
	Objects  []HitObject   `json:"objects"`
}

// Hit result values reported per object by the replay analyzer.
const (
	HitResultMiss = 0
	HitResult50   = 50
	HitResult100  = 100
	HitResult300  = 300
)

// HitData is one object's outcome in an analyzed replay.
type HitData struct {
	Result  int    `json:"result"`
	Tickset []bool `json:"tickset,omitempty"`
}

// ReplayAnalysis is the external analyzer's view of an uploaded binary
// replay.
type ReplayAnalysis struct {
	PlayerName string    `json:"player_name"`
	Version    int       `json:"version"`
	Accuracy   float64   `json:"accuracy"` // percent, 0..100
	Geki       int       `json:"geki"`
	N300       int       `json:"n300"`
	Katu       int       `json:"katu"`
	N100       int       `json:"n100"`
	N50        int       `json:"n50"`
	Miss       int       `json:"miss"`
	MaxCombo   int       `json:"max_combo"`
	Mods       string    `json:"mods"` // droid mod string
	Speed      float64   `json:"speed"`
	Score      int64     `json:"score"`
	HitData    []HitData `json:"hit_data"`
	TapPenalty float64   `json:"tap_penalty"` // from 3-finger detection, 0 when clean
}

// DifficultyAttributes is the opaque result of the external difficulty
// computation, cached per (hash, mods, speed).
type DifficultyAttributes struct {
	Stars            float64 `json:"stars"`
	AimDifficulty    float64 `json:"aim"`
	TapDifficulty    float64 `json:"tap"`
	FlashlightRating float64 `json:"flashlight,omitempty"`
}

// Performance is the external performance computation result.
type Performance struct {
	Total float64 `json:"total"`
}
