package terminal

import "terminal-core/internal/position"

// View is a read-only rendering of a session for transport.
type View struct {
	ID         string           `json:"id"`
	Symbol     string           `json:"symbol"`
	Side       position.Side    `json:"side"`
	ReadOnly   bool             `json:"readOnly"`
	EntryPrice float64          `json:"entryPrice"`
	Position   *position.Entity `json:"position,omitempty"`
	Panels     []PanelView      `json:"panels"`
	Errors     int              `json:"errors"`
}

type PanelView struct {
	Name        PanelName    `json:"name"`
	State       PanelState   `json:"state"`
	Available   bool         `json:"available"`
	Generation  uint64       `json:"generation"`
	Fields      []FieldView  `json:"fields,omitempty"`
	Cardinality *int         `json:"cardinality,omitempty"`
	Targets     []TargetView `json:"targets,omitempty"`
}

type FieldView struct {
	Key     string      `json:"key"`
	Value   string      `json:"value"`
	Error   *FieldError `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

type TargetView struct {
	ID     int         `json:"id"`
	Origin string      `json:"origin"`
	Locked bool        `json:"locked"`
	Fields []FieldView `json:"fields"`
}

// View renders the current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:         s.id,
		Symbol:     s.sym.ID,
		Side:       s.side(),
		ReadOnly:   s.readOnly(),
		EntryPrice: s.refPrice(),
	}
	if s.pos != nil {
		cl := s.pos.Clone()
		v.Position = &cl
	}
	for _, name := range panelOrder {
		p := s.panels[name]
		pv := PanelView{
			Name:       name,
			State:      p.state,
			Available:  p.behavior.available(s),
			Generation: p.generation,
		}
		if p.expanded() {
			pv.Fields = fieldViews(p.fields, func(n string) string { return n })
			v.Errors += p.errorCount()
		}
		if g := p.group; g != nil {
			n := g.Cardinality()
			pv.Cardinality = &n
			for _, id := range g.IDs() {
				t, _ := g.Target(id)
				tv := TargetView{ID: id.External(), Origin: id.Origin().String(), Locked: t.Locked()}
				if p.expanded() {
					tv.Fields = fieldViews(t.fieldSet, func(base string) string { return g.Key(base, id) })
				}
				pv.Targets = append(pv.Targets, tv)
			}
		}
		v.Panels = append(v.Panels, pv)
	}
	return v
}

func fieldViews(fs *fieldSet, key func(string) string) []FieldView {
	out := make([]FieldView, 0, len(fs.order))
	for _, name := range fs.order {
		f := fs.fields[name]
		out = append(out, FieldView{Key: key(name), Value: f.Text(), Error: f.Err(), Message: f.Err().Message()})
	}
	return out
}
