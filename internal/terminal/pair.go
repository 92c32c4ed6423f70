package terminal

import (
	"terminal-core/internal/position"
	"terminal-core/internal/risk"
	"terminal-core/internal/sizing"
)

const percentPlaces = 2

// pricePair links a signed percentage offset to the absolute price it implies
// relative to a reference price. Whichever member was edited last is the source.
type pricePair struct {
	pct   string
	price string
	kind  risk.PercentageKind
}

func (pp pricePair) slot() string { return pp.pct }

func (pp pricePair) owns(name string) bool { return name == pp.pct || name == pp.price }

// seed stores a signed percentage as the source and derives the price.
func (pp pricePair) seed(s *Session, fs *fieldSet, magnitude, ref float64) {
	fs.get(pp.pct).setDerived(risk.ApplySign(pp.kind, s.side(), magnitude), percentPlaces)
	fs.markSource(pp.slot(), pp.pct)
	pp.derive(s, fs, ref)
}

// derive recomputes the dependent member, skipped while the source is suppressed.
func (pp pricePair) derive(s *Session, fs *fieldSet, ref float64) {
	if ref <= 0 {
		return
	}
	if fs.sourceOf(pp.slot(), pp.pct) == pp.price {
		src := fs.get(pp.price)
		if !src.usable() {
			return
		}
		fs.get(pp.pct).setDerived(sizing.PricePercentage(src.value, ref), percentPlaces)
		return
	}
	src := fs.get(pp.pct)
	if !src.usable() {
		return
	}
	fs.get(pp.price).setDerived(sizing.TargetPrice(ref, src.value), s.pricePlaces())
}

// flip re-signs the percentage magnitude for side and makes it the source.
func (pp pricePair) flip(fs *fieldSet, side position.Side) {
	f := fs.get(pp.pct)
	v, ok := f.Value()
	if !ok {
		return
	}
	f.setDerived(risk.ApplySign(pp.kind, side, v), percentPlaces)
	fs.markSource(pp.slot(), pp.pct)
}

func (pp pricePair) validate(s *Session, fs *fieldSet) {
	pct := fs.get(pp.pct)
	pct.resolve(required(pct), direction(pct, pp.kind, s.side()))
	price := fs.get(pp.price)
	price.resolve(required(price), positive(price), s.priceLimits(price))
}

// values returns the pair as it would be submitted.
func (pp pricePair) values(s *Session, fs *fieldSet) (pct, price float64) {
	pct, _ = fs.get(pp.pct).Value()
	price, _ = fs.get(pp.price).Value()
	return sizing.Round(pct, percentPlaces), sizing.Round(price, s.pricePlaces())
}

func direction(f *Field, kind risk.PercentageKind, side position.Side) *FieldError {
	v, ok := f.Value()
	if !ok {
		return nil
	}
	return risk.ValidateDirection(kind, side, v)
}
