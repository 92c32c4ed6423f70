package terminal

import (
	"strconv"

	"terminal-core/internal/position"
	"terminal-core/internal/risk"
	"terminal-core/internal/sizing"
)

// Entry form keys and option values.
const (
	KeySide       = "side"
	KeyLeverage   = "leverage"
	KeyMarginMode = "marginMode"

	OrderMarket    = "market"
	OrderLimit     = "limit"
	MarginIsolated = "isolated"
	MarginCross    = "cross"
)

type orderKeys struct {
	typ, price, size, units, investment string
}

var (
	entryKeys    = orderKeys{"entryType", "price", "positionSize", "units", "realInvestment"}
	increaseKeys = orderKeys{"increaseType", "increasePrice", "increasePositionSize", "increaseUnits", "increaseRealInvestment"}
)

const sizeSlot = "size"

// orderForm is the price/positionSize/units/realInvestment form shared by the
// entry panel and the increase panel.
type orderForm struct {
	keys  orderKeys
	entry bool
}

func newOrderForm(p *Panel, entry bool) *orderForm {
	o := &orderForm{keys: increaseKeys, entry: entry}
	if entry {
		o.keys = entryKeys
		p.fields.add(KeySide, newOptionField(string(position.SideLong), string(position.SideShort)))
	}
	p.fields.add(o.keys.typ, newOptionField(OrderMarket, OrderLimit))
	p.fields.add(o.keys.price, newNumberField())
	p.fields.add(o.keys.size, newNumberField())
	p.fields.add(o.keys.units, newNumberField())
	p.fields.add(o.keys.investment, newNumberField())
	if entry {
		p.fields.add(KeyLeverage, newNumberField())
		p.fields.add(KeyMarginMode, newOptionField(MarginIsolated, MarginCross))
	}
	return o
}

func (o *orderForm) available(s *Session) bool {
	if o.entry {
		return s.pos == nil
	}
	return s.pos != nil
}

func (o *orderForm) collapsible() bool { return !o.entry }

func (o *orderForm) hasStored(*Session) bool { return false }

func (o *orderForm) seed(s *Session, p *Panel) {
	fs := p.fields
	if o.entry {
		fs.get(KeySide).Set(string(position.SideLong))
		fs.get(KeyLeverage).setDerived(s.leverage, 2)
		fs.get(KeyMarginMode).Set(MarginIsolated)
	}
	fs.get(o.keys.typ).Set(OrderMarket)
	if price, ok := s.latestPrice(); ok {
		fs.get(o.keys.price).setDerived(price, s.pricePlaces())
	}
	fs.markSource(sizeSlot, o.keys.size)
}

// lockedBy returns the message key explaining why name cannot be edited, or "".
func (o *orderForm) lockedBy(s *Session, name string) string {
	if !o.entry || name != KeyLeverage || !s.sym.LeverageLockedInCross {
		return ""
	}
	if s.panels[PanelEntry].fields.get(KeyMarginMode).Text() != MarginCross {
		return ""
	}
	return "LeverageLocked"
}

func (o *orderForm) edited(s *Session, p *Panel, fs *fieldSet, name string) {
	switch name {
	case o.keys.size, o.keys.units, o.keys.investment:
		fs.markSource(sizeSlot, name)
	case o.keys.typ:
		if fs.get(name).Text() == OrderMarket {
			if price, ok := s.latestPrice(); ok {
				fs.get(o.keys.price).setDerived(price, s.pricePlaces())
				o.validate(s, p)
			}
		}
	}
	if !fs.get(name).usable() {
		return
	}
	o.derive(s, fs)
}

func (o *orderForm) onTick(s *Session, p *Panel, price float64) {
	if p.fields.get(o.keys.typ).Text() != OrderMarket {
		return
	}
	p.fields.get(o.keys.price).setDerived(price, s.pricePlaces())
	o.validate(s, p)
	o.derive(s, p.fields)
}

func (o *orderForm) rederive(s *Session, p *Panel) {
	if p.fields.get(o.keys.typ).Text() == OrderMarket {
		if price, ok := s.latestPrice(); ok {
			p.fields.get(o.keys.price).setDerived(price, s.pricePlaces())
			o.validate(s, p)
		}
	}
	o.derive(s, p.fields)
}

func (o *orderForm) flipSide(*Session, *Panel) {}

func (o *orderForm) leverage(s *Session, fs *fieldSet) float64 {
	if !o.entry {
		if s.pos != nil && s.pos.Leverage >= 1 {
			return s.pos.Leverage
		}
		return s.leverage
	}
	if f := fs.get(KeyLeverage); f.usable() {
		return f.value
	}
	return s.leverage
}

// derive recomputes the sizing triple from whichever member was edited last.
func (o *orderForm) derive(s *Session, fs *fieldSet) {
	src := fs.sourceOf(sizeSlot, o.keys.size)
	sf := fs.get(src)
	if !sf.usable() {
		return
	}
	price := 0.0
	if pf := fs.get(o.keys.price); pf.usable() && pf.value > 0 {
		price = pf.value
	}
	lev := o.leverage(s, fs)

	var size float64
	switch src {
	case o.keys.units:
		if price == 0 {
			return
		}
		size = sizing.PositionSizeFromUnits(sf.value, price, s.sym)
	case o.keys.investment:
		size = sizing.PositionSizeFromInvestment(sf.value, lev)
	default:
		size = sf.value
	}
	if src != o.keys.size {
		fs.get(o.keys.size).setDerived(size, quotePlaces)
	}
	if src != o.keys.investment {
		fs.get(o.keys.investment).setDerived(sizing.RealInvestment(size, lev), quotePlaces)
	}
	if src != o.keys.units && price > 0 {
		fs.get(o.keys.units).setDerived(sizing.UnitsFromPositionSize(size, price, s.sym), s.amountPlaces())
	}
}

func (o *orderForm) validate(s *Session, p *Panel) {
	fs := p.fields
	typ := fs.get(o.keys.typ)
	typ.resolve(required(typ))

	price := fs.get(o.keys.price)
	var priceRequired *FieldError
	if typ.Text() == OrderLimit {
		priceRequired = required(price)
	}
	price.resolve(priceRequired, positive(price), s.priceLimits(price))

	size := fs.get(o.keys.size)
	size.resolve(required(size), positive(size), s.costLimits(size))
	units := fs.get(o.keys.units)
	units.resolve(required(units), positive(units), s.unitsLimits(units))
	inv := fs.get(o.keys.investment)
	inv.resolve(required(inv), positive(inv))

	if !o.entry {
		return
	}
	side := fs.get(KeySide)
	side.resolve(required(side))
	mm := fs.get(KeyMarginMode)
	mm.resolve(required(mm))
	lev := fs.get(KeyLeverage)
	lev.resolve(required(lev), s.leverageRange(lev))
}

func (s *Session) leverageRange(f *Field) *FieldError {
	v, ok := f.Value()
	if !ok {
		return nil
	}
	if limit := s.maxLeverage(); v < 1 || v > limit {
		return risk.Numeric("LeverageOutOfRange", strconv.FormatFloat(limit, 'f', -1, 64))
	}
	return nil
}

func (o *orderForm) contribute(s *Session, p *Panel, out *Payload) {
	fs := p.fields
	price, _ := fs.get(o.keys.price).Value()
	size, _ := fs.get(o.keys.size).Value()
	units, _ := fs.get(o.keys.units).Value()
	inv, _ := fs.get(o.keys.investment).Value()
	params := OrderParams{
		Type:           fs.get(o.keys.typ).Text(),
		Price:          sizing.Round(price, s.pricePlaces()),
		PositionSize:   sizing.Round(size, quotePlaces),
		Units:          sizing.Round(units, s.amountPlaces()),
		RealInvestment: sizing.Round(inv, quotePlaces),
	}
	if !o.entry {
		out.Increase = &params
		return
	}
	out.Entry = &EntryParams{
		OrderParams: params,
		Leverage:    o.leverage(s, fs),
		MarginMode:  fs.get(KeyMarginMode).Text(),
	}
}
