package terminal

import "terminal-core/internal/position"

// PriceSource exposes the latest live price of a symbol. Only the newest tick
// is ever consulted.
type PriceSource interface {
	LatestPrice(symbol string) (float64, bool)
}

// Resolver picks the reference price and size of a position: the confirmed
// position first, then the draft, then the live feed.
type Resolver struct {
	Symbol   string
	Position *position.Entity
	Prices   PriceSource

	// Draft entry fields; nil when the entry form is not in use.
	Price        *Field
	Units        *Field
	PositionSize *Field
}

// EntryPrice returns 0 when nothing is known yet.
func (r Resolver) EntryPrice() float64 {
	if r.Position != nil && r.Position.BuyPrice > 0 {
		return r.Position.BuyPrice
	}
	if v, ok := draftValue(r.Price); ok {
		return v
	}
	if r.Prices != nil {
		if p, ok := r.Prices.LatestPrice(r.Symbol); ok && p > 0 {
			return p
		}
	}
	return 0
}

// EntrySize returns the size in base units.
func (r Resolver) EntrySize() float64 {
	if r.Position != nil {
		return r.Position.Amount
	}
	v, _ := draftValue(r.Units)
	return v
}

// EntrySizeQuote returns the position size in quote currency.
func (r Resolver) EntrySizeQuote() float64 {
	if r.Position != nil {
		return r.Position.PositionSizeQuote
	}
	v, _ := draftValue(r.PositionSize)
	return v
}

func draftValue(f *Field) (float64, bool) {
	if f == nil {
		return 0, false
	}
	v, ok := f.Value()
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}
