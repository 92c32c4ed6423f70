package terminal

import (
	"slices"
)

// PanelName identifies a strategy panel; it doubles as the group prefix for
// panels that own targets.
type PanelName string

const (
	PanelEntry        PanelName = "entry"
	PanelDCA          PanelName = "dca"
	PanelTakeProfit   PanelName = "takeProfit"
	PanelStopLoss     PanelName = "stopLoss"
	PanelTrailingStop PanelName = "trailingStop"
	PanelReduce       PanelName = "reduce"
	PanelIncrease     PanelName = "increase"
)

var panelOrder = []PanelName{
	PanelEntry, PanelDCA, PanelTakeProfit, PanelStopLoss, PanelTrailingStop, PanelReduce, PanelIncrease,
}

// ParsePanelName rejects unknown names.
func ParsePanelName(s string) (PanelName, error) {
	if slices.Contains(panelOrder, PanelName(s)) {
		return PanelName(s), nil
	}
	return "", ErrUnknownPanel
}

// PanelState is Collapsed or Expanded.
type PanelState string

const (
	Collapsed PanelState = "collapsed"
	Expanded  PanelState = "expanded"
)

// behavior is what differs between panels. Every method runs with the session
// lock held.
type behavior interface {
	// available reports whether the panel applies to the current position.
	available(s *Session) bool
	collapsible() bool
	// hasStored reports whether the position carries values for this panel.
	hasStored(s *Session) bool
	// seed fills defaults, or stored values when present.
	seed(s *Session, p *Panel)
	// edited recomputes dependents after field name of fs changed.
	edited(s *Session, p *Panel, fs *fieldSet, name string)
	// rederive recomputes every linked field from its last edited source.
	rederive(s *Session, p *Panel)
	// flipSide re-signs percentages after the side changed.
	flipSide(s *Session, p *Panel)
	validate(s *Session, p *Panel)
	contribute(s *Session, p *Panel, out *Payload)
}

// Panel is one collapsible unit of fields bound to the session draft.
type Panel struct {
	name       PanelName
	state      PanelState
	generation uint64
	fields     *fieldSet
	group      *TargetGroup
	behavior   behavior
}

func (p *Panel) Name() PanelName { return p.name }

func (p *Panel) State() PanelState { return p.state }

// Generation increases on every transition; effect registrations carry it.
func (p *Panel) Generation() uint64 { return p.generation }

// Group returns the target group, nil for panels without targets.
func (p *Panel) Group() *TargetGroup { return p.group }

func (p *Panel) expanded() bool { return p.state == Expanded }

// clearOwned drops every draft value and error owned by this panel.
func (p *Panel) clearOwned() {
	p.fields.clear()
	if p.group != nil {
		p.group.dropDrafts()
	}
}

func (p *Panel) errorCount() int {
	n := p.fields.errorCount()
	if p.group != nil {
		n += p.group.errorCount()
	}
	return n
}

// Dependency is a session value expanded panels watch.
type Dependency int

const (
	DepSide Dependency = iota
	DepReferencePrice
)

type registration struct {
	panel PanelName
	gen   uint64
	dep   Dependency
	run   func()
}

// effectRegistry scopes derived-effect callbacks to a panel generation.
type effectRegistry struct {
	regs []registration
}

func (r *effectRegistry) register(p *Panel, dep Dependency, run func()) {
	r.regs = append(r.regs, registration{panel: p.name, gen: p.generation, dep: dep, run: run})
}

func (r *effectRegistry) teardown(panel PanelName) {
	r.regs = slices.DeleteFunc(r.regs, func(reg registration) bool { return reg.panel == panel })
}

func (r *effectRegistry) count(panel PanelName) int {
	n := 0
	for _, reg := range r.regs {
		if reg.panel == panel {
			n++
		}
	}
	return n
}

// fire runs callbacks for dep whose generation still matches the panel's.
func (r *effectRegistry) fire(dep Dependency, current func(PanelName) uint64) {
	for _, reg := range slices.Clone(r.regs) {
		if reg.dep == dep && current(reg.panel) == reg.gen {
			reg.run()
		}
	}
}
