package terminal

import (
	"terminal-core/internal/position"
	"terminal-core/internal/risk"
	"terminal-core/internal/sizing"
)

type amountRule int

const (
	amountRebuy amountRule = iota
	amountExit
	amountAvailable
)

// targetPanel drives the DCA, take-profit and reduce panels: a group of
// targets, each a price/percentage pair plus an amount percentage.
type targetPanel struct {
	group         string
	pair          pricePair
	amount        string
	rule          amountRule
	needsPosition bool
	stored        func(*position.Entity) map[int]position.Target
	defaultPct    func(Defaults) float64
	defaultAmount func(Defaults) float64
}

func dcaBehavior() *targetPanel {
	return &targetPanel{
		group:         GroupDCA,
		pair:          pricePair{pct: BaseTargetPricePercentage, price: BaseTargetPrice, kind: risk.PctDCA},
		amount:        BaseRebuyPercentage,
		rule:          amountRebuy,
		stored:        func(e *position.Entity) map[int]position.Target { return e.ReBuyTargets },
		defaultPct:    func(d Defaults) float64 { return d.DCAPercentage },
		defaultAmount: func(d Defaults) float64 { return d.RebuyPercentage },
	}
}

func takeProfitBehavior() *targetPanel {
	return &targetPanel{
		group:      GroupTakeProfit,
		pair:       pricePair{pct: BaseTargetPricePercentage, price: BaseTargetPrice, kind: risk.PctTakeProfit},
		amount:     BaseExitUnitsPercentage,
		rule:       amountExit,
		defaultPct: func(d Defaults) float64 { return d.TakeProfitPercentage },
	}
}

func reduceBehavior() *targetPanel {
	return &targetPanel{
		group:         GroupReduce,
		pair:          pricePair{pct: BaseTargetPercentage, price: BaseTargetPrice, kind: risk.PctReduce},
		amount:        BaseAvailablePercentage,
		rule:          amountAvailable,
		needsPosition: true,
		stored:        func(e *position.Entity) map[int]position.Target { return e.ReduceOrders },
		defaultPct:    func(d Defaults) float64 { return d.ReducePercentage },
		defaultAmount: func(d Defaults) float64 { return d.ReduceAvailablePercentage },
	}
}

func (tp *targetPanel) available(s *Session) bool {
	return !tp.needsPosition || s.pos != nil
}

func (tp *targetPanel) collapsible() bool { return true }

func (tp *targetPanel) hasStored(s *Session) bool {
	return s.pos != nil && tp.stored != nil && len(tp.stored(s.pos)) > 0
}

// load rebuilds the group: one planned target for a fresh position, the stored
// targets otherwise.
func (tp *targetPanel) load(s *Session, p *Panel) {
	if s.pos == nil {
		p.group.Load(nil, true, 1)
		return
	}
	var stored map[int]position.Target
	if tp.stored != nil {
		stored = tp.stored(s.pos)
	}
	p.group.Load(stored, false, 0)
}

func (tp *targetPanel) seed(s *Session, p *Panel) {
	if p.group.Cardinality() == 0 {
		// read-only groups refuse the add and stay empty
		_, _ = p.group.Add()
	}
	for _, id := range p.group.IDs() {
		tp.seedTarget(s, p, id)
	}
}

func (tp *targetPanel) seedTarget(s *Session, p *Panel, id position.TargetID) {
	t, ok := p.group.Target(id)
	if !ok {
		return
	}
	ref := s.refPrice()
	if t.stored != nil {
		t.get(tp.pair.pct).setDerived(t.stored.TargetPricePercentage, percentPlaces)
		t.markSource(tp.pair.slot(), tp.pair.pct)
		tp.pair.derive(s, t.fieldSet, ref)
		t.get(tp.amount).setDerived(t.stored.AmountPercentage, percentPlaces)
		return
	}
	tp.pair.seed(s, t.fieldSet, tp.defaultPct(s.defaults)*float64(p.group.ordinal(id)), ref)
	if amount := tp.seedAmount(s, p, id); amount > 0 {
		t.get(tp.amount).setDerived(amount, percentPlaces)
	}
}

// seedAmount returns the default amount. Take-profit exits split whatever is
// left of 100 evenly across the targets that have no exit yet.
func (tp *targetPanel) seedAmount(s *Session, p *Panel, id position.TargetID) float64 {
	if tp.rule != amountExit {
		return tp.defaultAmount(s.defaults)
	}
	used, open := 0.0, 1
	for _, other := range p.group.IDs() {
		if other == id {
			continue
		}
		t, _ := p.group.Target(other)
		if v, ok := t.get(tp.amount).Value(); ok {
			used += v
		} else {
			open++
		}
	}
	return sizing.Round((100-used)/float64(open), percentPlaces)
}

func (tp *targetPanel) edited(s *Session, p *Panel, fs *fieldSet, name string) {
	if !tp.pair.owns(name) {
		return
	}
	fs.markSource(tp.pair.slot(), name)
	if fs.get(name).usable() {
		tp.pair.derive(s, fs, s.refPrice())
	}
}

func (tp *targetPanel) rederive(s *Session, p *Panel) {
	ref := s.refPrice()
	for _, id := range p.group.IDs() {
		t, _ := p.group.Target(id)
		tp.pair.derive(s, t.fieldSet, ref)
	}
}

func (tp *targetPanel) flipSide(s *Session, p *Panel) {
	for _, id := range p.group.IDs() {
		t, _ := p.group.Target(id)
		if !t.Locked() {
			tp.pair.flip(t.fieldSet, s.side())
		}
	}
}

func (tp *targetPanel) validate(s *Session, p *Panel) {
	exitTotal := 0.0
	for _, id := range p.group.IDs() {
		t, _ := p.group.Target(id)
		if t.Locked() {
			for _, f := range t.fields {
				f.resolve()
			}
			continue
		}
		tp.pair.validate(s, t.fieldSet)

		amount := t.get(tp.amount)
		switch tp.rule {
		case amountRebuy:
			amount.resolve(required(amount), positive(amount), s.rebuyCost(amount))
		case amountExit:
			var total *FieldError
			if v, ok := amount.Value(); ok {
				exitTotal += v
				if exitTotal > 100+1e-9 {
					total = risk.Numeric("ExitTotalExceeded")
				}
			}
			amount.resolve(required(amount), percentage(amount), total)
		case amountAvailable:
			amount.resolve(required(amount), percentage(amount))
		}
	}
}

// rebuyCost checks the quote cost a rebuy percentage implies against cost limits.
func (s *Session) rebuyCost(f *Field) *FieldError {
	v, ok := f.Value()
	if !ok {
		return nil
	}
	size := s.resolver().EntrySizeQuote()
	if size <= 0 {
		return nil
	}
	return risk.ValidateCostLimits(size*v/100, s.sym)
}

func (tp *targetPanel) contribute(s *Session, p *Panel, out *Payload) {
	list := make([]TargetParams, 0, p.group.Cardinality())
	for _, id := range p.group.IDs() {
		t, _ := p.group.Target(id)
		pct, price := tp.pair.values(s, t.fieldSet)
		amount, _ := t.get(tp.amount).Value()
		tgt := TargetParams{
			ID:               id.External(),
			Persisted:        t.stored != nil,
			PricePercentage:  pct,
			Price:            price,
			AmountPercentage: sizing.Round(amount, percentPlaces),
		}
		if t.stored != nil {
			tgt.Done, tgt.Skipped, tgt.Cancel = t.stored.Done, t.stored.Skipped, t.stored.Cancel
			tgt.OrderID = t.stored.OrderID
		}
		list = append(list, tgt)
	}
	switch tp.group {
	case GroupDCA:
		out.DCATargets = list
	case GroupTakeProfit:
		out.TakeProfitTargets = list
	case GroupReduce:
		out.ReduceTargets = list
	}
}
