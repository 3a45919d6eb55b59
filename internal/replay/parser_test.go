package replay

import (
	"errors"
	"testing"
	"time"

	"github.com/osudroid-server/internal/domain"
)

const validSubmission = "-hd 1837465 523 S 120 480 30 12 3 1 98234 device-42 1700000000000 peppy"

func TestParseSubmission(t *testing.T) {
	parsed, err := ParseSubmission(validSubmission)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.ModString != "-hd" {
		t.Fatalf("mods: got %q", parsed.ModString)
	}
	if parsed.Score != 1837465 {
		t.Fatalf("score: got %d", parsed.Score)
	}
	if parsed.MaxCombo != 523 {
		t.Fatalf("combo: got %d", parsed.MaxCombo)
	}
	if parsed.Grade != "S" {
		t.Fatalf("grade: got %q", parsed.Grade)
	}
	if parsed.Geki != 120 || parsed.N300 != 480 || parsed.Katu != 30 ||
		parsed.N100 != 12 || parsed.N50 != 3 || parsed.Miss != 1 {
		t.Fatalf("hit counts: got %+v", parsed)
	}
	if parsed.DeviceID != "device-42" {
		t.Fatalf("device: got %q", parsed.DeviceID)
	}
	if !parsed.Timestamp.Equal(time.UnixMilli(1700000000000)) {
		t.Fatalf("timestamp: got %v", parsed.Timestamp)
	}
	if parsed.Username != "peppy" {
		t.Fatalf("username: got %q", parsed.Username)
	}
	if parsed.Speed != 1.0 {
		t.Fatalf("speed: got %v, want default", parsed.Speed)
	}
}

func TestParseSubmissionSpeedSuffix(t *testing.T) {
	parsed, err := ParseSubmission(validSubmission + " x1.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Speed != 1.5 {
		t.Fatalf("speed: got %v, want 1.5", parsed.Speed)
	}
}

func TestParseSubmissionMissingFields(t *testing.T) {
	_, err := ParseSubmission("-hd 1837465 523 S")
	if !errors.Is(err, domain.ErrMalformedReplay) {
		t.Fatalf("expected ErrMalformedReplay, got %v", err)
	}
}

func TestParseSubmissionEmptyField(t *testing.T) {
	_, err := ParseSubmission("-hd 1837465  S 120 480 30 12 3 1 98234 device-42 1700000000000 peppy")
	if !errors.Is(err, domain.ErrMalformedReplay) {
		t.Fatalf("expected ErrMalformedReplay, got %v", err)
	}
}

func TestParseSubmissionNonNumeric(t *testing.T) {
	_, err := ParseSubmission("-hd lots 523 S 120 480 30 12 3 1 98234 device-42 1700000000000 peppy")
	if !errors.Is(err, domain.ErrInvalidNumericField) {
		t.Fatalf("expected ErrInvalidNumericField, got %v", err)
	}
}

func TestAccuracyPercent(t *testing.T) {
	if got := AccuracyPercent(100, 0, 0, 0); got != 100 {
		t.Fatalf("all 300s: got %v", got)
	}
	if got := AccuracyPercent(0, 0, 0, 10); got != 0 {
		t.Fatalf("all misses: got %v", got)
	}
	got := AccuracyPercent(90, 10, 0, 0)
	want := float64(300*90+100*10) / float64(300*100) * 100
	if got != want {
		t.Fatalf("mixed: got %v, want %v", got, want)
	}
}
