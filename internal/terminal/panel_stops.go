package terminal

import (
	"math"

	"terminal-core/internal/risk"
)

// Stop-loss and trailing-stop keys.
const (
	KeyStopLossPercentage             = "stopLossPercentage"
	KeyStopLossPrice                  = "stopLossPrice"
	KeyTrailingStopTriggerPercentage  = "trailingStopTriggerPercentage"
	KeyTrailingStopTriggerPrice       = "trailingStopTriggerPrice"
	KeyTrailingStopDistancePercentage = "trailingStopDistancePercentage"
)

type stopLoss struct {
	pair pricePair
}

func newStopLoss(p *Panel) *stopLoss {
	p.fields.add(KeyStopLossPercentage, newNumberField())
	p.fields.add(KeyStopLossPrice, newNumberField())
	return &stopLoss{pair: pricePair{pct: KeyStopLossPercentage, price: KeyStopLossPrice, kind: risk.PctStopLoss}}
}

func (sl *stopLoss) available(*Session) bool { return true }

func (sl *stopLoss) collapsible() bool { return true }

func (sl *stopLoss) hasStored(s *Session) bool {
	return s.pos != nil && (s.pos.StopLossPercentage != 0 || s.pos.StopLossPrice > 0)
}

func (sl *stopLoss) seed(s *Session, p *Panel) {
	fs := p.fields
	ref := s.refPrice()
	switch {
	case s.pos != nil && s.pos.StopLossPercentage != 0:
		fs.get(KeyStopLossPercentage).setDerived(s.pos.StopLossPercentage, percentPlaces)
		fs.markSource(sl.pair.slot(), KeyStopLossPercentage)
		sl.pair.derive(s, fs, ref)
	case s.pos != nil && s.pos.StopLossPrice > 0:
		fs.get(KeyStopLossPrice).setDerived(s.pos.StopLossPrice, s.pricePlaces())
		fs.markSource(sl.pair.slot(), KeyStopLossPrice)
		sl.pair.derive(s, fs, ref)
	default:
		sl.pair.seed(s, fs, s.defaults.StopLossPercentage, ref)
	}
}

func (sl *stopLoss) edited(s *Session, _ *Panel, fs *fieldSet, name string) {
	fs.markSource(sl.pair.slot(), name)
	if fs.get(name).usable() {
		sl.pair.derive(s, fs, s.refPrice())
	}
}

func (sl *stopLoss) rederive(s *Session, p *Panel) { sl.pair.derive(s, p.fields, s.refPrice()) }

func (sl *stopLoss) flipSide(s *Session, p *Panel) { sl.pair.flip(p.fields, s.side()) }

func (sl *stopLoss) validate(s *Session, p *Panel) { sl.pair.validate(s, p.fields) }

func (sl *stopLoss) contribute(s *Session, p *Panel, out *Payload) {
	pct, price := sl.pair.values(s, p.fields)
	out.StopLoss = &StopLossParams{Percentage: pct, Price: price}
}

type trailingStop struct {
	trigger pricePair
}

func newTrailingStop(p *Panel) *trailingStop {
	p.fields.add(KeyTrailingStopTriggerPercentage, newNumberField())
	p.fields.add(KeyTrailingStopTriggerPrice, newNumberField())
	p.fields.add(KeyTrailingStopDistancePercentage, newNumberField())
	return &trailingStop{trigger: pricePair{
		pct:   KeyTrailingStopTriggerPercentage,
		price: KeyTrailingStopTriggerPrice,
		kind:  risk.PctTrailingTrigger,
	}}
}

func (ts *trailingStop) available(*Session) bool { return true }

func (ts *trailingStop) collapsible() bool { return true }

func (ts *trailingStop) hasStored(s *Session) bool {
	return s.pos != nil && s.pos.TrailingStop != nil && s.pos.TrailingStop.TriggerPercentage != 0
}

func (ts *trailingStop) seed(s *Session, p *Panel) {
	fs := p.fields
	ref := s.refPrice()
	if ts.hasStored(s) {
		stored := s.pos.TrailingStop
		fs.get(KeyTrailingStopTriggerPercentage).setDerived(stored.TriggerPercentage, percentPlaces)
		fs.markSource(ts.trigger.slot(), KeyTrailingStopTriggerPercentage)
		ts.trigger.derive(s, fs, ref)
		fs.get(KeyTrailingStopDistancePercentage).setDerived(stored.DistancePercentage, percentPlaces)
		return
	}
	ts.trigger.seed(s, fs, s.defaults.TrailingTriggerPercentage, ref)
	distance := risk.ApplySign(risk.PctTrailingDistance, s.side(), s.defaults.TrailingDistancePercentage)
	fs.get(KeyTrailingStopDistancePercentage).setDerived(distance, percentPlaces)
}

func (ts *trailingStop) edited(s *Session, _ *Panel, fs *fieldSet, name string) {
	if !ts.trigger.owns(name) {
		return
	}
	fs.markSource(ts.trigger.slot(), name)
	if fs.get(name).usable() {
		ts.trigger.derive(s, fs, s.refPrice())
	}
}

func (ts *trailingStop) rederive(s *Session, p *Panel) { ts.trigger.derive(s, p.fields, s.refPrice()) }

func (ts *trailingStop) flipSide(s *Session, p *Panel) {
	ts.trigger.flip(p.fields, s.side())
	f := p.fields.get(KeyTrailingStopDistancePercentage)
	if v, ok := f.Value(); ok {
		f.setDerived(risk.ApplySign(risk.PctTrailingDistance, s.side(), v), percentPlaces)
	}
}

func (ts *trailingStop) validate(s *Session, p *Panel) {
	ts.trigger.validate(s, p.fields)
	f := p.fields.get(KeyTrailingStopDistancePercentage)
	var magnitude *FieldError
	if v, ok := f.Value(); ok && !risk.ValidPercentage(math.Abs(v)) {
		magnitude = risk.Numeric("PercentageOutOfRange")
	}
	f.resolve(required(f), direction(f, risk.PctTrailingDistance, s.side()), magnitude)
}

func (ts *trailingStop) contribute(s *Session, p *Panel, out *Payload) {
	pct, price := ts.trigger.values(s, p.fields)
	distance, _ := p.fields.get(KeyTrailingStopDistancePercentage).Value()
	out.TrailingStop = &TrailingStopParams{
		TriggerPercentage:  pct,
		TriggerPrice:       price,
		DistancePercentage: distance,
	}
}
