package terminal

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"terminal-core/internal/position"
)

// Group prefixes used in composed field names.
const (
	GroupDCA        = "dca"
	GroupTakeProfit = "takeProfit"
	GroupReduce     = "reduce"
)

// Per-target field bases.
const (
	BaseTargetPricePercentage = "TargetPricePercentage"
	BaseTargetPrice           = "TargetPrice"
	BaseRebuyPercentage       = "RebuyPercentage"
	BaseExitUnitsPercentage   = "ExitUnitsPercentage"
	BaseTargetPercentage      = "TargetPercentage"
	BaseAvailablePercentage   = "AvailablePercentage"
)

var groupBases = map[string][]string{
	GroupDCA:        {BaseTargetPricePercentage, BaseTargetPrice, BaseRebuyPercentage},
	GroupTakeProfit: {BaseTargetPricePercentage, BaseTargetPrice, BaseExitUnitsPercentage},
	GroupReduce:     {BaseTargetPercentage, BaseTargetPrice, BaseAvailablePercentage},
}

type groupBase struct{ group, base string }

// composedPrefixes maps "dcaTargetPrice" style prefixes back to their parts.
var composedPrefixes = func() map[string]groupBase {
	out := make(map[string]groupBase)
	for g, bases := range groupBases {
		for _, b := range bases {
			out[g+b] = groupBase{group: g, base: b}
		}
	}
	return out
}()

// maxPlanned keeps planned and persisted numbers inside [1, DraftIndexBase).
const (
	maxPlanned = position.DraftIndexBase - 1
	maxDrafts  = 1000
)

// ComposeTargetPropertyName returns the external key of one target field.
func ComposeTargetPropertyName(group, base string, id position.TargetID) string {
	return group + base + strconv.Itoa(id.External())
}

// ParseTargetPropertyName splits an external key into its group, base and target.
func ParseTargetPropertyName(key string) (group, base string, id position.TargetID, err error) {
	digits := len(key)
	for digits > 0 && key[digits-1] >= '0' && key[digits-1] <= '9' {
		digits--
	}
	if digits == len(key) || digits == 0 {
		return "", "", position.TargetID{}, fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	gb, ok := composedPrefixes[key[:digits]]
	if !ok {
		return "", "", position.TargetID{}, fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	n, err := strconv.Atoi(key[digits:])
	if err != nil || strings.HasPrefix(key[digits:], "0") {
		return "", "", position.TargetID{}, fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	id, err = position.TargetIDFromExternal(n)
	if err != nil {
		return "", "", position.TargetID{}, fmt.Errorf("%w: %v", ErrUnknownField, err)
	}
	return gb.group, gb.base, id, nil
}

// TargetFields are the editable fields of one target plus the stored target it
// was loaded from, if any.
type TargetFields struct {
	*fieldSet
	stored *position.Target
}

// Locked reports whether the stored target was already executed, skipped or cancelled.
func (t *TargetFields) Locked() bool {
	return t.stored != nil && t.stored.Locked()
}

// Stored returns the backend target, or nil for planned and draft targets.
func (t *TargetFields) Stored() *position.Target { return t.stored }

// TargetGroup is an ordered, resizable collection of targets keyed by TargetID.
// A planned group (no position yet) numbers its targets Persisted(1..N); once a
// position exists, stored targets keep their backend index and additions are drafts.
type TargetGroup struct {
	name     string
	bases    []string
	order    []position.TargetID
	targets  map[position.TargetID]*TargetFields
	planned  bool
	readOnly bool
}

// NewTargetGroup returns an empty group for one of the known prefixes.
func NewTargetGroup(name string) *TargetGroup {
	return &TargetGroup{
		name:    name,
		bases:   groupBases[name],
		targets: make(map[position.TargetID]*TargetFields),
		planned: true,
	}
}

func (g *TargetGroup) Name() string { return g.name }

// Cardinality is the number of active targets.
func (g *TargetGroup) Cardinality() int { return len(g.order) }

// IDs returns the active targets in order.
func (g *TargetGroup) IDs() []position.TargetID { return slices.Clone(g.order) }

// Target looks up one target.
func (g *TargetGroup) Target(id position.TargetID) (*TargetFields, bool) {
	t, ok := g.targets[id]
	return t, ok
}

// Key composes the external key of one field of target id.
func (g *TargetGroup) Key(base string, id position.TargetID) string {
	return ComposeTargetPropertyName(g.name, base, id)
}

func (g *TargetGroup) SetReadOnly(ro bool) { g.readOnly = ro }

func (g *TargetGroup) ReadOnly() bool { return g.readOnly }

// Load rebuilds the group from stored targets. A nil map with planned=true
// yields a fresh group of n planned targets.
func (g *TargetGroup) Load(stored map[int]position.Target, planned bool, n int) {
	g.order = g.order[:0]
	clear(g.targets)
	g.planned = planned
	if planned {
		for i := 1; i <= n && i <= maxPlanned; i++ {
			g.insert(position.PersistedID(i), nil)
		}
		return
	}
	for idx, t := range stored {
		if idx <= 0 || idx > maxPlanned {
			continue
		}
		g.insert(position.PersistedID(idx), &t)
	}
	position.SortTargetIDs(g.order)
}

func (g *TargetGroup) insert(id position.TargetID, stored *position.Target) *TargetFields {
	fs := newFieldSet()
	for _, b := range g.bases {
		fs.add(b, newNumberField())
	}
	t := &TargetFields{fieldSet: fs, stored: stored}
	g.targets[id] = t
	g.order = append(g.order, id)
	return t
}

// Add appends one target at the boundary and returns its id.
func (g *TargetGroup) Add() (position.TargetID, error) {
	if g.readOnly {
		return position.TargetID{}, ErrReadOnly
	}
	var id position.TargetID
	if g.planned {
		if len(g.order) >= maxPlanned {
			return id, ErrGroupFull
		}
		id = position.PersistedID(len(g.order) + 1)
	} else {
		next := 1
		for _, existing := range g.order {
			if existing.Origin() == position.Draft && existing.Index() >= next {
				next = existing.Index() + 1
			}
		}
		if next > maxDrafts {
			return id, ErrGroupFull
		}
		id = position.DraftID(next)
	}
	g.insert(id, nil)
	return id, nil
}

// Remove drops the boundary target. Removing from an empty group is a no-op.
func (g *TargetGroup) Remove() error {
	if len(g.order) == 0 {
		return nil
	}
	return g.remove(g.order[len(g.order)-1])
}

// RemoveTarget drops one specific target. Locked targets are refused whatever
// the read-only flag says.
func (g *TargetGroup) RemoveTarget(id position.TargetID) error {
	if _, ok := g.targets[id]; !ok {
		return fmt.Errorf("%w: %s%d", ErrUnknownTarget, g.name, id.External())
	}
	if g.planned && id != g.order[len(g.order)-1] {
		return ErrNotRemovable
	}
	return g.remove(id)
}

func (g *TargetGroup) remove(id position.TargetID) error {
	if g.targets[id].Locked() {
		return ErrTargetLocked
	}
	if g.readOnly {
		return ErrReadOnly
	}
	delete(g.targets, id)
	g.order = slices.DeleteFunc(g.order, func(x position.TargetID) bool { return x == id })
	return nil
}

// dropDrafts removes every session-local target and clears the rest.
func (g *TargetGroup) dropDrafts() {
	g.order = slices.DeleteFunc(g.order, func(id position.TargetID) bool {
		if id.Origin() == position.Draft {
			delete(g.targets, id)
			return true
		}
		return false
	})
	for _, t := range g.targets {
		t.clear()
	}
}

// ordinal is the 1-based position of id in the group.
func (g *TargetGroup) ordinal(id position.TargetID) int {
	return slices.Index(g.order, id) + 1
}

func (g *TargetGroup) errorCount() int {
	n := 0
	for _, t := range g.targets {
		n += t.errorCount()
	}
	return n
}
