package terminal

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"terminal-core/internal/position"
	"terminal-core/internal/risk"
	"terminal-core/internal/symbols"
	"terminal-core/pkg/i18n"
)

const (
	defaultPlaces = 8
	quotePlaces   = 8
)

// Options configure one session. Symbol and leverage are explicit so that
// several sessions can run side by side without shared state.
type Options struct {
	ID       string
	Symbol   symbols.Symbol
	Leverage float64
	Prices   PriceSource
	Position *position.Entity
	Defaults Defaults
}

// Session is the draft of one position edit. All methods are safe for
// concurrent use; mutation is serialised and never blocks on I/O.
type Session struct {
	mu sync.Mutex

	id       string
	sym      symbols.Symbol
	leverage float64
	prices   PriceSource
	defaults Defaults
	pos      *position.Entity

	panels  map[PanelName]*Panel
	effects effectRegistry

	tick     float64
	tickAt   time.Time
	lastSide position.Side
	lastRef  float64
}

// NewSession builds the panels and expands those that already carry stored values.
func NewSession(opts Options) *Session {
	s := &Session{
		id:       opts.ID,
		sym:      opts.Symbol,
		leverage: opts.Leverage,
		prices:   opts.Prices,
		defaults: opts.Defaults.withFallback(),
		panels:   make(map[PanelName]*Panel, len(panelOrder)),
	}
	if s.leverage <= 0 {
		s.leverage = s.defaults.Leverage
	}
	if opts.Position != nil {
		cl := opts.Position.Clone()
		s.pos = &cl
	}
	for _, name := range panelOrder {
		s.panels[name] = newPanel(name)
	}
	for _, name := range panelOrder {
		p := s.panels[name]
		s.load(p)
		if p.behavior.available(s) && (!p.behavior.collapsible() || p.behavior.hasStored(s)) {
			s.expand(p)
		}
	}
	s.lastSide = s.side()
	s.lastRef = s.resolver().EntryPrice()
	s.validateAll()
	return s
}

func newPanel(name PanelName) *Panel {
	p := &Panel{name: name, state: Collapsed, fields: newFieldSet()}
	switch name {
	case PanelEntry:
		p.behavior = newOrderForm(p, true)
	case PanelIncrease:
		p.behavior = newOrderForm(p, false)
	case PanelDCA:
		p.behavior = dcaBehavior()
	case PanelTakeProfit:
		p.behavior = takeProfitBehavior()
	case PanelReduce:
		p.behavior = reduceBehavior()
	case PanelStopLoss:
		p.behavior = newStopLoss(p)
	case PanelTrailingStop:
		p.behavior = newTrailingStop(p)
	}
	if tp, ok := p.behavior.(*targetPanel); ok {
		p.group = NewTargetGroup(tp.group)
	}
	return p
}

func (s *Session) ID() string { return s.id }

func (s *Session) Symbol() symbols.Symbol { return s.sym }

// Position returns a copy of the held snapshot, nil for a fresh session.
func (s *Session) Position() *position.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos == nil {
		return nil
	}
	cl := s.pos.Clone()
	return &cl
}

// Supersedes reports whether e would replace the held snapshot.
func (s *Session) Supersedes(e position.Entity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos == nil || e.NewerThan(*s.pos)
}

// ReadOnly reports the disable-all-fields policy for the current snapshot.
func (s *Session) ReadOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readOnly()
}

// Edit sets one field by its external key and recomputes what depends on it.
func (s *Session) Edit(key, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, fs, name, target, err := s.locate(key)
	if err != nil {
		return err
	}
	if !p.behavior.available(s) {
		return ErrPanelUnavailable
	}
	if !p.expanded() {
		return ErrPanelCollapsed
	}
	if s.readOnly() {
		return ErrReadOnly
	}
	if target != nil && target.Locked() {
		return ErrTargetLocked
	}
	if l, ok := p.behavior.(fieldLocker); ok {
		if key := l.lockedBy(s, name); key != "" {
			return fmt.Errorf("%w: %s", ErrFieldLocked, i18n.Get(key))
		}
	}

	fs.get(name).Set(raw)
	p.behavior.validate(s, p)
	p.behavior.edited(s, p, fs, name)
	s.refreshDependencies()
	s.validateAll()
	return nil
}

// FieldError returns the current error of a field, nil when it is valid.
func (s *Session) FieldError(key string) (*FieldError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, fs, name, _, err := s.locate(key)
	if err != nil {
		return nil, err
	}
	return fs.get(name).Err(), nil
}

// Value returns the displayed text of a field.
func (s *Session) Value(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, fs, name, _, err := s.locate(key)
	if err != nil {
		return "", err
	}
	return fs.get(name).Text(), nil
}

// TogglePanel switches a panel between Collapsed and Expanded.
func (s *Session) TogglePanel(name PanelName) (PanelState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.panels[name]
	if !ok {
		return "", ErrUnknownPanel
	}
	if !p.behavior.collapsible() || !p.behavior.available(s) {
		return p.state, ErrPanelUnavailable
	}
	if p.expanded() {
		s.collapse(p)
	} else {
		s.expand(p)
	}
	return p.state, nil
}

// PanelState reports the state of one panel.
func (s *Session) PanelState(name PanelName) (PanelState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.panels[name]
	if !ok {
		return "", ErrUnknownPanel
	}
	return p.state, nil
}

// Cardinality returns the number of active targets in group.
func (s *Session) Cardinality(group string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.groupPanel(group)
	if err != nil {
		return 0, err
	}
	return p.group.Cardinality(), nil
}

// AddTarget appends a target to group and seeds its defaults.
func (s *Session) AddTarget(group string) (position.TargetID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.groupPanel(group)
	if err != nil {
		return position.TargetID{}, err
	}
	if !p.expanded() {
		return position.TargetID{}, ErrPanelCollapsed
	}
	id, err := p.group.Add()
	if err != nil {
		return id, err
	}
	tp := p.behavior.(*targetPanel)
	tp.seedTarget(s, p, id)
	s.validateAll()
	return id, nil
}

// RemoveTarget drops the last target of group. It is a no-op on an empty group.
func (s *Session) RemoveTarget(group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.groupPanel(group)
	if err != nil {
		return err
	}
	if err := p.group.Remove(); err != nil {
		return err
	}
	s.validateAll()
	return nil
}

// RemoveTargetID drops one target through its own remove handler.
func (s *Session) RemoveTargetID(group string, id position.TargetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.groupPanel(group)
	if err != nil {
		return err
	}
	if err := p.group.RemoveTarget(id); err != nil {
		return err
	}
	s.validateAll()
	return nil
}

// ApplyPosition replaces the held snapshot when e is newer and force-collapses
// every panel so stale edits are discarded.
func (s *Session) ApplyPosition(e position.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos != nil && !e.NewerThan(*s.pos) {
		return fmt.Errorf("%w: v%d", ErrStaleSnapshot, e.Version)
	}
	cl := e.Clone()
	s.pos = &cl
	for _, name := range panelOrder {
		p := s.panels[name]
		if p.expanded() {
			s.collapse(p)
		}
		s.load(p)
	}
	s.lastSide = s.side()
	s.lastRef = s.resolver().EntryPrice()
	return nil
}

// OnPriceTick records the latest live price. Ticks older than the held one are
// dropped; it reports whether the tick was taken.
func (s *Session) OnPriceTick(price float64, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if price <= 0 || (!at.IsZero() && at.Before(s.tickAt)) {
		return false
	}
	s.tick, s.tickAt = price, at
	for _, name := range panelOrder {
		p := s.panels[name]
		if !p.expanded() {
			continue
		}
		if t, ok := p.behavior.(tickAware); ok {
			t.onTick(s, p, price)
		}
	}
	s.refreshDependencies()
	s.validateAll()
	return true
}

// Assemble re-derives every linked field from its source, validates the whole
// draft and flattens it into a Payload.
func (s *Session) Assemble() (Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.activePanels() {
		p.behavior.rederive(s, p)
	}
	s.validateAll()
	n := 0
	for _, p := range s.activePanels() {
		n += p.errorCount()
	}
	if n > 0 {
		return Payload{}, fmt.Errorf("%w: %d field errors", ErrInvalidDraft, n)
	}

	out := Payload{SessionID: s.id, Symbol: s.sym.ID, Side: s.side()}
	if s.pos != nil {
		out.PositionID = s.pos.ID
		out.PositionVersion = s.pos.Version
	}
	for _, p := range s.activePanels() {
		p.behavior.contribute(s, p, &out)
	}
	return out, nil
}

// PanelOf names the panel that owns key.
func (s *Session) PanelOf(key string) (PanelName, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, _, _, _, err := s.locate(key)
	if err != nil {
		return "", err
	}
	return p.name, nil
}

// ErrorCount is the number of failing fields across expanded panels.
func (s *Session) ErrorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.activePanels() {
		n += p.errorCount()
	}
	return n
}

type fieldLocker interface {
	lockedBy(s *Session, name string) string
}

type tickAware interface {
	onTick(s *Session, p *Panel, price float64)
}

func (s *Session) locate(key string) (*Panel, *fieldSet, string, *TargetFields, error) {
	for _, name := range panelOrder {
		p := s.panels[name]
		if p.fields.has(key) {
			return p, p.fields, key, nil, nil
		}
	}
	group, base, id, err := ParseTargetPropertyName(key)
	if err != nil {
		return nil, nil, "", nil, err
	}
	p := s.panels[PanelName(group)]
	t, ok := p.group.Target(id)
	if !ok {
		return nil, nil, "", nil, fmt.Errorf("%w: %s", ErrUnknownTarget, key)
	}
	return p, t.fieldSet, base, t, nil
}

func (s *Session) groupPanel(group string) (*Panel, error) {
	p, ok := s.panels[PanelName(group)]
	if !ok || p.group == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPanel, group)
	}
	if !p.behavior.available(s) {
		return nil, ErrPanelUnavailable
	}
	return p, nil
}

func (s *Session) load(p *Panel) {
	if tp, ok := p.behavior.(*targetPanel); ok {
		tp.load(s, p)
	}
	if p.group != nil {
		p.group.SetReadOnly(s.readOnly())
	}
	if !p.behavior.available(s) && p.expanded() {
		s.collapse(p)
	}
}

func (s *Session) expand(p *Panel) {
	p.state = Expanded
	p.generation++
	p.behavior.seed(s, p)
	if p.behavior.collapsible() {
		s.effects.register(p, DepSide, func() {
			p.behavior.flipSide(s, p)
			p.behavior.validate(s, p)
			p.behavior.rederive(s, p)
		})
		s.effects.register(p, DepReferencePrice, func() {
			p.behavior.rederive(s, p)
		})
	}
	s.validateAll()
}

func (s *Session) collapse(p *Panel) {
	p.state = Collapsed
	p.generation++
	s.effects.teardown(p.name)
	p.clearOwned()
	if tp, ok := p.behavior.(*targetPanel); ok && s.pos != nil {
		// stored targets removed while expanded come back from the snapshot
		tp.load(s, p)
	}
}

func (s *Session) activePanels() []*Panel {
	out := make([]*Panel, 0, len(panelOrder))
	for _, name := range panelOrder {
		p := s.panels[name]
		if p.expanded() && p.behavior.available(s) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) validateAll() {
	for _, p := range s.activePanels() {
		p.behavior.validate(s, p)
	}
}

// refreshDependencies fires watchers when the side or the reference price moved.
func (s *Session) refreshDependencies() {
	gen := func(name PanelName) uint64 { return s.panels[name].generation }
	if side := s.side(); side != s.lastSide {
		s.lastSide = side
		s.effects.fire(DepSide, gen)
	}
	if ref := s.resolver().EntryPrice(); ref != s.lastRef {
		s.lastRef = ref
		s.effects.fire(DepReferencePrice, gen)
	}
}

func (s *Session) readOnly() bool { return s.pos.ReadOnly() }

func (s *Session) side() position.Side {
	if s.pos != nil && s.pos.Side != "" {
		return s.pos.Side
	}
	if e := s.panels[PanelEntry]; e.expanded() {
		if side, ok := position.ParseSide(e.fields.get(KeySide).Text()); ok {
			return side
		}
	}
	return position.SideLong
}

func (s *Session) resolver() Resolver {
	r := Resolver{Symbol: s.sym.ID, Position: s.pos, Prices: tickSource{s}}
	if e := s.panels[PanelEntry]; e.expanded() {
		r.Price = e.fields.get(entryKeys.price)
		r.Units = e.fields.get(entryKeys.units)
		r.PositionSize = e.fields.get(entryKeys.size)
	}
	return r
}

func (s *Session) refPrice() float64 { return s.resolver().EntryPrice() }

// latestPrice prefers ticks pushed into the session over the shared source.
func (s *Session) latestPrice() (float64, bool) {
	if s.tick > 0 {
		return s.tick, true
	}
	if s.prices != nil {
		return s.prices.LatestPrice(s.sym.ID)
	}
	return 0, false
}

type tickSource struct{ s *Session }

func (t tickSource) LatestPrice(symbol string) (float64, bool) {
	if !strings.EqualFold(symbol, t.s.sym.ID) {
		return 0, false
	}
	return t.s.latestPrice()
}

func (s *Session) pricePlaces() int32 {
	if s.sym.PricePrecision > 0 {
		return s.sym.PricePrecision
	}
	return defaultPlaces
}

func (s *Session) amountPlaces() int32 {
	if s.sym.AmountPrecision > 0 {
		return s.sym.AmountPrecision
	}
	return defaultPlaces
}

func (s *Session) maxLeverage() float64 {
	limit := s.defaults.MaxLeverage
	if s.sym.MaxLeverage > 0 && s.sym.MaxLeverage < limit {
		limit = s.sym.MaxLeverage
	}
	return limit
}

func (s *Session) priceLimits(f *Field) *FieldError {
	if v, ok := f.Value(); ok {
		return risk.ValidateTargetPriceLimits(v, s.sym)
	}
	return nil
}

func (s *Session) costLimits(f *Field) *FieldError {
	if v, ok := f.Value(); ok {
		return risk.ValidateCostLimits(v, s.sym)
	}
	return nil
}

func (s *Session) unitsLimits(f *Field) *FieldError {
	if v, ok := f.Value(); ok {
		return risk.ValidateUnitsLimits(v, s.sym)
	}
	return nil
}
