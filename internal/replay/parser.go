// Package replay decodes the client's replay-summary submission string and
// re-derives score values from analyzed replays.
package replay

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/osudroid-server/internal/domain"
)

// Positional fields of the submission string. All fields through username
// are mandatory; the speed suffix was added in a later client version and
// is optional.
const (
	fieldMods = iota
	fieldScore
	fieldMaxCombo
	fieldGrade
	fieldGeki
	fieldN300
	fieldKatu
	fieldN100
	fieldN50
	fieldMiss
	fieldAccuracy // sent by old clients, re-derived server side
	fieldDeviceID
	fieldTimestamp
	fieldUsername
	mandatoryFields
	fieldSpeed = mandatoryFields
)

// ParsedSubmission is the structured form of one replay-summary string.
type ParsedSubmission struct {
	ModString string
	Score     int64
	MaxCombo  int
	Grade     string
	Geki      int
	N300      int
	Katu      int
	N100      int
	N50       int
	Miss      int
	DeviceID  string
	Timestamp time.Time
	Username  string
	Speed     float64
}

// ParseSubmission decodes the space-delimited replay summary. Missing or
// empty mandatory fields fail with ErrMalformedReplay; numeric fields that
// do not parse as integers fail with ErrInvalidNumericField.
func ParseSubmission(data string) (*ParsedSubmission, error) {
	fields := strings.Split(data, " ")
	if len(fields) < mandatoryFields {
		return nil, fmt.Errorf("%w: %d fields, want %d", domain.ErrMalformedReplay, len(fields), mandatoryFields)
	}
	for i := 0; i < mandatoryFields; i++ {
		if fields[i] == "" {
			return nil, fmt.Errorf("%w: empty field %d", domain.ErrMalformedReplay, i)
		}
	}

	parsed := &ParsedSubmission{
		ModString: fields[fieldMods],
		Grade:     fields[fieldGrade],
		DeviceID:  fields[fieldDeviceID],
		Username:  fields[fieldUsername],
		Speed:     1.0,
	}

	intField := func(index int) (int64, error) {
		v, err := strconv.ParseInt(fields[index], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: field %d %q", domain.ErrInvalidNumericField, index, fields[index])
		}
		return v, nil
	}

	var err error
	if parsed.Score, err = intField(fieldScore); err != nil {
		return nil, err
	}
	counts := []struct {
		index int
		dst   *int
	}{
		{fieldMaxCombo, &parsed.MaxCombo},
		{fieldGeki, &parsed.Geki},
		{fieldN300, &parsed.N300},
		{fieldKatu, &parsed.Katu},
		{fieldN100, &parsed.N100},
		{fieldN50, &parsed.N50},
		{fieldMiss, &parsed.Miss},
	}
	for _, c := range counts {
		v, err := intField(c.index)
		if err != nil {
			return nil, err
		}
		*c.dst = int(v)
	}

	millis, err := intField(fieldTimestamp)
	if err != nil {
		return nil, err
	}
	parsed.Timestamp = time.UnixMilli(millis)

	// Old clients omit the speed suffix; tolerate a malformed one the same
	// way the mod codec tolerates a malformed extension segment.
	if len(fields) > fieldSpeed {
		if suffix := fields[fieldSpeed]; strings.HasPrefix(suffix, "x") {
			if v, err := strconv.ParseFloat(suffix[1:], 64); err == nil {
				parsed.Speed = v
			}
		}
	}

	return parsed, nil
}

// Accuracy derives the accuracy fraction (0..1) from hit counts.
func Accuracy(n300, n100, n50, miss int) float64 {
	objects := n300 + n100 + n50 + miss
	if objects == 0 {
		return 0
	}
	return float64(300*n300+100*n100+50*n50) / float64(300*objects)
}

// AccuracyPercent derives the accuracy percentage (0..100) from hit counts.
func AccuracyPercent(n300, n100, n50, miss int) float64 {
	return Accuracy(n300, n100, n50, miss) * 100
}
