package terminal

// Defaults are the magnitudes seeded into freshly expanded panels. Signs come
// from the side and the field kind, never from these values.
type Defaults struct {
	Leverage                   float64
	MaxLeverage                float64
	DCAPercentage              float64
	RebuyPercentage            float64
	StopLossPercentage         float64
	TrailingTriggerPercentage  float64
	TrailingDistancePercentage float64
	TakeProfitPercentage       float64
	ReducePercentage           float64
	ReduceAvailablePercentage  float64
}

// DefaultDefaults mirrors the config defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		Leverage:                   1,
		MaxLeverage:                125,
		DCAPercentage:              5,
		RebuyPercentage:            100,
		StopLossPercentage:         5,
		TrailingTriggerPercentage:  2,
		TrailingDistancePercentage: 1,
		TakeProfitPercentage:       10,
		ReducePercentage:           5,
		ReduceAvailablePercentage:  50,
	}
}

func (d Defaults) withFallback() Defaults {
	def := DefaultDefaults()
	if d.Leverage <= 0 {
		d.Leverage = def.Leverage
	}
	if d.MaxLeverage <= 0 {
		d.MaxLeverage = def.MaxLeverage
	}
	return d
}
