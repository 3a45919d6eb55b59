// Package mods implements the droid mod-string codec: the compact
// single-letter encoding the client sends with every score, plus the
// ranked/compatibility/multiplier tables derived from it.
package mods

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Mod is a single gameplay modifier, represented as a bit flag so sets
// stay cheap to compare.
type Mod uint32

const (
	NoFail Mod = 1 << iota
	Easy
	Hidden
	HardRock
	SuddenDeath
	DoubleTime
	HalfTime
	NightCore
	Flashlight
	Relax
	Autopilot
	Perfect
	Precise
	ReallyEasy
	SmallCircle
	SpeedUp
	Auto
	ScoreV2
)

// ModSet is a combination of mods.
type ModSet uint32

var ErrUnknownMod = errors.New("unknown mod letter")

// modEntry fixes the canonical encode order. Encode walks this slice, so
// encode(decode(s)) is stable for any string encode produces.
type modEntry struct {
	mod        Mod
	letter     byte
	multiplier float64
}

var modTable = []modEntry{
	{NoFail, 'n', 0.5},
	{Easy, 'e', 0.5},
	{Hidden, 'h', 1.06},
	{HardRock, 'r', 1.06},
	{SuddenDeath, 'u', 1.0},
	{DoubleTime, 'd', 1.12},
	{HalfTime, 't', 0.3},
	{NightCore, 'c', 1.12},
	{Flashlight, 'i', 1.12},
	{Relax, 'x', 0.8},
	{Autopilot, 'p', 1.0},
	{Perfect, 'f', 1.0},
	{Precise, 's', 1.06},
	{ReallyEasy, 'l', 0.5},
	{SmallCircle, 'm', 1.06},
	{SpeedUp, 'b', 1.06},
	{Auto, 'a', 1.0},
	{ScoreV2, 'v', 1.0},
}

var byLetter = func() map[byte]Mod {
	m := make(map[byte]Mod, len(modTable))
	for _, e := range modTable {
		m[e.letter] = e.mod
	}
	return m
}()

// unrankedMods never enter ranked scoring.
const unrankedMods = ModSet(Auto | Autopilot | ScoreV2)

// customMultiplierMods carry a score multiplier the client cannot derive
// from the stock tables; the replay score estimator widens its tolerance
// for these.
const customMultiplierMods = ModSet(Relax)

// incompatiblePairs lists mutually exclusive mods.
var incompatiblePairs = [][2]Mod{
	{DoubleTime, NightCore},
	{DoubleTime, HalfTime},
	{NightCore, HalfTime},
	{Easy, HardRock},
	{Relax, Autopilot},
	{SuddenDeath, NoFail},
	{Perfect, NoFail},
}

// Decode parses a droid mod string. "-" (or the empty mods segment) decodes
// to the empty set. An optional |-delimited extension segment carries the
// custom speed multiplier as "x<value>"; a missing or non-numeric segment
// yields the default speed of 1.0.
func Decode(s string) (ModSet, float64, error) {
	speed := 1.0
	segments := strings.Split(s, "|")
	modPart := strings.TrimPrefix(segments[0], "-")

	var set ModSet
	for i := 0; i < len(modPart); i++ {
		mod, ok := byLetter[modPart[i]]
		if !ok {
			return 0, 1.0, fmt.Errorf("%w: %q", ErrUnknownMod, modPart[i])
		}
		set |= ModSet(mod)
	}

	for _, seg := range segments[1:] {
		if !strings.HasPrefix(seg, "x") {
			continue
		}
		if v, err := strconv.ParseFloat(seg[1:], 64); err == nil {
			speed = v
		}
	}

	return set, speed, nil
}

// Encode renders the set back into the droid string form, appending the
// custom speed segment when the speed is not the default.
func Encode(set ModSet, speed float64) string {
	var b strings.Builder
	b.WriteByte('-')
	for _, e := range modTable {
		if set.Has(e.mod) {
			b.WriteByte(e.letter)
		}
	}
	if speed != 1.0 {
		b.WriteByte('|')
		b.WriteByte('x')
		b.WriteString(strconv.FormatFloat(speed, 'g', -1, 64))
	}
	return b.String()
}

// Has reports whether the set contains the mod.
func (s ModSet) Has(m Mod) bool {
	return s&ModSet(m) != 0
}

// Ranked reports whether the set may enter ranked scoring.
func (s ModSet) Ranked() bool {
	return s&unrankedMods == 0
}

// Compatible reports whether no two mutually exclusive mods are present.
func (s ModSet) Compatible() bool {
	for _, pair := range incompatiblePairs {
		if s.Has(pair[0]) && s.Has(pair[1]) {
			return false
		}
	}
	return true
}

// HasCustomMultiplier reports whether the set contains a mod whose score
// multiplier diverges from the stock client tables.
func (s ModSet) HasCustomMultiplier() bool {
	return s&customMultiplierMods != 0
}

// ScoreMultiplier returns the product of the individual mod multipliers,
// or 0 for unranked sets.
func (s ModSet) ScoreMultiplier() float64 {
	if !s.Ranked() {
		return 0
	}
	multiplier := 1.0
	for _, e := range modTable {
		if s.Has(e.mod) {
			multiplier *= e.multiplier
		}
	}
	return multiplier
}

// String renders the set without a speed segment.
func (s ModSet) String() string {
	return Encode(s, 1.0)
}
