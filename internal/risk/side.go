package risk

import (
	"math"

	"terminal-core/internal/position"
)

type comparator func(value, compare float64) bool

func below(value, compare float64) bool { return value < compare }
func above(value, compare float64) bool { return value > compare }

// lessBySide picks the comparison that means "on the losing side of compare".
var lessBySide = map[position.Side]comparator{
	position.SideLong:  below,
	position.SideShort: above,
}

// LessThan requires value < compare for LONG and value > compare for SHORT.
func LessThan(value, compare float64, side position.Side) bool {
	cmp, ok := lessBySide[side]
	if !ok {
		return false
	}
	return cmp(value, compare)
}

// GreaterThan mirrors LessThan: value > compare for LONG, value < compare for SHORT.
func GreaterThan(value, compare float64, side position.Side) bool {
	cmp, ok := lessBySide[side.Opposite()]
	if !ok || (side != position.SideLong && side != position.SideShort) {
		return false
	}
	return cmp(value, compare)
}

// ValidPercentage reports 0 < value <= 100.
func ValidPercentage(value float64) bool {
	return value > 0 && value <= 100
}

// PercentageKind names a signed percentage field family.
type PercentageKind string

const (
	PctStopLoss         PercentageKind = "stopLoss"
	PctDCA              PercentageKind = "dca"
	PctTrailingTrigger  PercentageKind = "trailingTrigger"
	PctTrailingDistance PercentageKind = "trailingDistance"
	PctTakeProfit       PercentageKind = "takeProfit"
	PctReduce           PercentageKind = "reduce"
)

// longSigns is the single source of sign conventions; SHORT mirrors every entry.
// Entries match current product behaviour; do not change them without product sign-off.
var longSigns = map[PercentageKind]float64{
	PctStopLoss:         -1,
	PctDCA:              -1,
	PctTrailingDistance: -1,
	PctTrailingTrigger:  1,
	PctTakeProfit:       1,
	PctReduce:           1,
}

// SignFor returns +1 or -1 for the field family on side.
func SignFor(kind PercentageKind, side position.Side) float64 {
	s, ok := longSigns[kind]
	if !ok {
		s = 1
	}
	if side == position.SideShort {
		return -s
	}
	return s
}

// ApplySign forces the conventional sign onto the magnitude of v.
func ApplySign(kind PercentageKind, side position.Side, v float64) float64 {
	return SignFor(kind, side) * math.Abs(v)
}

// ValidateDirection checks a signed percentage points the conventional way.
// Zero always fails.
func ValidateDirection(kind PercentageKind, side position.Side, v float64) *Violation {
	var ok bool
	if longSigns[kind] < 0 {
		ok = LessThan(v, 0, side)
	} else {
		ok = GreaterThan(v, 0, side)
	}
	if ok {
		return nil
	}
	if SignFor(kind, side) < 0 {
		return numeric("PercentageMustBeNegative")
	}
	return numeric("PercentageMustBePositive")
}
