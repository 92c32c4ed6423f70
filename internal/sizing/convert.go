// Package sizing converts between the representations of a position size:
// quote cost, base units, leveraged investment and price offsets.
//
// Every function is a pure function of its arguments. Degenerate inputs
// (non-positive price or leverage) yield 0 rather than Inf/NaN so callers can
// surface a validation error instead of propagating garbage.
package sizing

import (
	"math"

	"github.com/shopspring/decimal"

	"terminal-core/internal/symbols"
)

// UnitsFromPositionSize returns base units for a quote position size.
//
//	inverse:          units = price * positionSize / multiplier
//	linear / quanto:  units = positionSize / (price * multiplier)
func UnitsFromPositionSize(positionSize, price float64, sym symbols.Symbol) float64 {
	if price <= 0 {
		return 0
	}
	if sym.Inverse() {
		return price * positionSize / sym.Mult()
	}
	return positionSize / (price * sym.Mult())
}

// PositionSizeFromUnits is the inverse of UnitsFromPositionSize.
func PositionSizeFromUnits(units, price float64, sym symbols.Symbol) float64 {
	if price <= 0 {
		return 0
	}
	if sym.Inverse() {
		return units * sym.Mult() / price
	}
	return units * price * sym.Mult()
}

// RealInvestment is the margin actually committed for a leveraged position size.
func RealInvestment(positionSize, leverage float64) float64 {
	if leverage <= 0 {
		leverage = 1
	}
	return positionSize / leverage
}

// PositionSizeFromInvestment scales committed margin back up by leverage.
func PositionSizeFromInvestment(realInvestment, leverage float64) float64 {
	if leverage <= 0 {
		leverage = 1
	}
	return realInvestment * leverage
}

// TargetPrice applies a signed percentage offset to price.
func TargetPrice(price, signedPercentage float64) float64 {
	return price * (100 + signedPercentage) / 100
}

// PricePercentage is the signed offset of target from price, in percent.
func PricePercentage(target, price float64) float64 {
	if price == 0 {
		return 0
	}
	return ((target - price) / price) * 100
}

// Round trims v to places decimals (half away from zero). Negative places leave v as is.
func Round(v float64, places int32) float64 {
	if places < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Format renders v for a form field: fixed places when known, shortest form otherwise.
// Non-finite values render empty.
func Format(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	d := decimal.NewFromFloat(v)
	if places > 0 {
		return d.Round(places).String()
	}
	// Percentages and unknown precisions: keep enough digits to round trip sensibly.
	return d.Round(8).String()
}
