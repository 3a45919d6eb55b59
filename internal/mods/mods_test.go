package mods

import "testing"

func TestDecodeEmpty(t *testing.T) {
	set, speed, err := Decode("-")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set != 0 {
		t.Fatalf("expected empty set, got %v", set)
	}
	if speed != 1.0 {
		t.Fatalf("expected default speed, got %v", speed)
	}
}

func TestDecodeLetters(t *testing.T) {
	set, _, err := Decode("-hd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !set.Has(Hidden) || !set.Has(DoubleTime) {
		t.Fatalf("expected hidden+doubletime, got %s", set)
	}
	if set.Has(HardRock) {
		t.Fatalf("unexpected hardrock in %s", set)
	}
}

func TestDecodeCustomSpeed(t *testing.T) {
	set, speed, err := Decode("-x|x1.25")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !set.Has(Relax) {
		t.Fatalf("expected relax, got %s", set)
	}
	if speed != 1.25 {
		t.Fatalf("expected speed 1.25, got %v", speed)
	}
}

func TestDecodeBadSpeedFallsBack(t *testing.T) {
	_, speed, err := Decode("-h|xfast")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if speed != 1.0 {
		t.Fatalf("expected default speed on bad segment, got %v", speed)
	}
}

func TestDecodeUnknownLetter(t *testing.T) {
	if _, _, err := Decode("-hz"); err == nil {
		t.Fatalf("expected error for unknown letter")
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		set   ModSet
		speed float64
	}{
		{0, 1.0},
		{ModSet(Hidden | DoubleTime), 1.0},
		{ModSet(Relax), 1.25},
		{ModSet(NoFail | Easy | Hidden | HardRock), 0.75},
		{ModSet(Auto), 1.0},
	}
	for _, c := range cases {
		encoded := Encode(c.set, c.speed)
		set, speed, err := Decode(encoded)
		if err != nil {
			t.Fatalf("decode(%q): %v", encoded, err)
		}
		if set != c.set || speed != c.speed {
			t.Fatalf("round trip %q: got (%v, %v), want (%v, %v)", encoded, set, speed, c.set, c.speed)
		}
		if again := Encode(set, speed); again != encoded {
			t.Fatalf("re-encode %q: got %q", encoded, again)
		}
	}
}

func TestRanked(t *testing.T) {
	if !ModSet(Hidden | HardRock).Ranked() {
		t.Fatalf("hidden+hardrock should be ranked")
	}
	for _, m := range []Mod{Auto, Autopilot, ScoreV2} {
		if ModSet(m).Ranked() {
			t.Fatalf("%s should be unranked", ModSet(m))
		}
	}
}

func TestCompatible(t *testing.T) {
	if ModSet(DoubleTime | HalfTime).Compatible() {
		t.Fatalf("two speed mods should be incompatible")
	}
	if ModSet(Easy | HardRock).Compatible() {
		t.Fatalf("easy+hardrock should be incompatible")
	}
	if !ModSet(Hidden | DoubleTime | Flashlight).Compatible() {
		t.Fatalf("hidden+doubletime+flashlight should be compatible")
	}
}

func TestScoreMultiplier(t *testing.T) {
	if got := ModSet(Relax).ScoreMultiplier(); got != 0.8 {
		t.Fatalf("relax multiplier: got %v, want 0.8", got)
	}
	if got := ModSet(Auto).ScoreMultiplier(); got != 0 {
		t.Fatalf("unranked multiplier: got %v, want 0", got)
	}
	if got := ModSet(0).ScoreMultiplier(); got != 1.0 {
		t.Fatalf("nomod multiplier: got %v, want 1", got)
	}
	if !ModSet(Relax|Hidden).HasCustomMultiplier() {
		t.Fatalf("relax should report a custom multiplier")
	}
	if ModSet(Hidden).HasCustomMultiplier() {
		t.Fatalf("hidden should not report a custom multiplier")
	}
}
