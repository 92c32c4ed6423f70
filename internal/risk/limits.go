package risk

import "terminal-core/internal/symbols"

// Missing limits pass: an instrument whose limits have not loaded yet is
// treated as unknown, not failing. Callers must not tighten this.

// ValidateCostLimits checks a quote cost against the cost group, or the amount
// group for inverse contracts.
func ValidateCostLimits(cost float64, sym symbols.Symbol) *Violation {
	return checkRange(cost, sym.CostRange(), "LimitCostMin", "LimitCostMax")
}

// ValidateUnitsLimits checks base units against the amount group, or the cost
// group for inverse contracts.
func ValidateUnitsLimits(units float64, sym symbols.Symbol) *Violation {
	return checkRange(units, sym.UnitsRange(), "LimitUnitsMin", "LimitUnitsMax")
}

// ValidateTargetPriceLimits checks any price field against the price group.
func ValidateTargetPriceLimits(price float64, sym symbols.Symbol) *Violation {
	return checkRange(price, sym.PriceRange(), "LimitPriceMin", "LimitPriceMax")
}

func checkRange(v float64, r *symbols.Range, minKey, maxKey string) *Violation {
	if r == nil {
		return nil
	}
	if r.Min != nil && v < *r.Min {
		return limit(minKey, *r.Min)
	}
	if r.Max != nil && v > *r.Max {
		return limit(maxKey, *r.Max)
	}
	return nil
}
