// Package symbols describes exchange instruments and the numeric limits the
// terminal validates against.
package symbols

import (
	"fmt"
	"strings"
)

// ContractType selects the cost/units conversion formula.
type ContractType string

const (
	ContractLinear  ContractType = "linear"
	ContractInverse ContractType = "inverse"
	ContractQuanto  ContractType = "quanto"
)

// ParseContractType accepts the exchange spelling in any case. Empty means linear (spot).
func ParseContractType(s string) (ContractType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return ContractLinear, nil
	case "inverse":
		return ContractInverse, nil
	case "quanto":
		return ContractQuanto, nil
	}
	return "", fmt.Errorf("unknown contract type %q", s)
}

// Range is a min/max pair; nil bounds are unknown and never fail.
type Range struct {
	Min *float64 `yaml:"min" json:"min,omitempty"`
	Max *float64 `yaml:"max" json:"max,omitempty"`
}

// Limits groups the exchange limits. Nil groups have not been loaded yet.
type Limits struct {
	Price  *Range `yaml:"price" json:"price,omitempty"`
	Cost   *Range `yaml:"cost" json:"cost,omitempty"`
	Amount *Range `yaml:"amount" json:"amount,omitempty"`
}

// Symbol is the instrument snapshot shared read-only by every panel of a session.
type Symbol struct {
	ID           string       `yaml:"id" json:"id"`
	Base         string       `yaml:"base" json:"base"`
	Quote        string       `yaml:"quote" json:"quote"`
	ContractType ContractType `yaml:"contract_type" json:"contractType"`
	Multiplier   float64      `yaml:"multiplier" json:"multiplier"`
	Limits       *Limits      `yaml:"limits" json:"limits,omitempty"`

	PricePrecision  int32 `yaml:"price_precision" json:"pricePrecision"`
	AmountPrecision int32 `yaml:"amount_precision" json:"amountPrecision"`

	MaxLeverage           float64 `yaml:"max_leverage" json:"maxLeverage"`
	LeverageLockedInCross bool    `yaml:"leverage_locked_in_cross" json:"leverageLockedInCross"`
}

// Mult returns the contract multiplier, treating an unset value as 1.
func (s Symbol) Mult() float64 {
	if s.Multiplier <= 0 {
		return 1
	}
	return s.Multiplier
}

// Inverse reports whether cost is denominated in base units.
func (s Symbol) Inverse() bool {
	return s.ContractType == ContractInverse
}

// CostRange is the limit group used for quote cost checks: amount for inverse contracts.
func (s Symbol) CostRange() *Range {
	if s.Limits == nil {
		return nil
	}
	if s.Inverse() {
		return s.Limits.Amount
	}
	return s.Limits.Cost
}

// UnitsRange mirrors CostRange: inverse contracts swap the cost and amount roles.
func (s Symbol) UnitsRange() *Range {
	if s.Limits == nil {
		return nil
	}
	if s.Inverse() {
		return s.Limits.Cost
	}
	return s.Limits.Amount
}

// PriceRange returns the price limits, nil when not loaded.
func (s Symbol) PriceRange() *Range {
	if s.Limits == nil {
		return nil
	}
	return s.Limits.Price
}

// Bound is a small helper for building limits in code and tests.
func Bound(v float64) *float64 { return &v }
