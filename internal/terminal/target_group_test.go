package terminal

import (
	"errors"
	"testing"

	"terminal-core/internal/position"
)

func TestComposeTargetPropertyNameInjective(t *testing.T) {
	seen := make(map[string]struct{})
	for group, bases := range groupBases {
		for _, base := range bases {
			var ids []position.TargetID
			for i := 1; i < position.DraftIndexBase; i++ {
				ids = append(ids, position.PersistedID(i))
			}
			for j := 1; j <= maxDrafts; j++ {
				ids = append(ids, position.DraftID(j))
			}
			for _, id := range ids {
				key := ComposeTargetPropertyName(group, base, id)
				if _, dup := seen[key]; dup {
					t.Fatalf("duplicate key %s", key)
				}
				seen[key] = struct{}{}

				g, b, back, err := ParseTargetPropertyName(key)
				if err != nil {
					t.Fatalf("parse %s: %v", key, err)
				}
				if g != group || b != base || back != id {
					t.Fatalf("parse %s = (%s,%s,%s), expected (%s,%s,%s)", key, g, b, back, group, base, id)
				}
			}
		}
	}
}

func TestParseTargetPropertyNameRejects(t *testing.T) {
	for _, key := range []string{"", "dca", "dcaTargetPrice", "dcaTargetPrice0", "dcaTargetPrice01", "fooTargetPrice1", "123", "stopLossPrice"} {
		if _, _, _, err := ParseTargetPropertyName(key); !errors.Is(err, ErrUnknownField) {
			t.Fatalf("%q: expected ErrUnknownField, got %v", key, err)
		}
	}
}

func TestDraftBandStartsAtBase(t *testing.T) {
	key := ComposeTargetPropertyName(GroupDCA, BaseTargetPrice, position.DraftID(1))
	if key != "dcaTargetPrice1000" {
		t.Fatalf("key=%s", key)
	}
}

func TestAddRemoveRestoresCardinality(t *testing.T) {
	for _, planned := range []bool{true, false} {
		g := NewTargetGroup(GroupDCA)
		g.Load(map[int]position.Target{1: {TargetPricePercentage: -5}}, planned, 1)
		start := g.Cardinality()
		for n := 1; n <= 5; n++ {
			for i := 0; i < n; i++ {
				if _, err := g.Add(); err != nil {
					t.Fatalf("add: %v", err)
				}
			}
			if g.Cardinality() != start+n {
				t.Fatalf("cardinality=%d, expected %d", g.Cardinality(), start+n)
			}
			for i := 0; i < n; i++ {
				if err := g.Remove(); err != nil {
					t.Fatalf("remove: %v", err)
				}
			}
			if g.Cardinality() != start {
				t.Fatalf("planned=%v: cardinality=%d after add/remove, expected %d", planned, g.Cardinality(), start)
			}
		}
	}
}

func TestRemoveAtZeroIsNoop(t *testing.T) {
	g := NewTargetGroup(GroupTakeProfit)
	g.Load(nil, true, 1)
	if err := g.Remove(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := g.Remove(); err != nil {
			t.Fatalf("remove on empty group: %v", err)
		}
		if g.Cardinality() != 0 {
			t.Fatalf("cardinality=%d", g.Cardinality())
		}
	}
}

func TestPlannedIDsAreContiguous(t *testing.T) {
	g := NewTargetGroup(GroupDCA)
	g.Load(nil, true, 1)
	g.Add()
	g.Add()
	for i, id := range g.IDs() {
		if id != position.PersistedID(i+1) {
			t.Fatalf("ids=%v", g.IDs())
		}
	}
	if err := g.RemoveTarget(position.PersistedID(2)); !errors.Is(err, ErrNotRemovable) {
		t.Fatalf("middle planned target removed: %v", err)
	}
	if err := g.RemoveTarget(position.PersistedID(3)); err != nil {
		t.Fatal(err)
	}
}

func TestDraftsFollowStoredTargets(t *testing.T) {
	g := NewTargetGroup(GroupDCA)
	g.Load(map[int]position.Target{2: {}, 1: {Done: true}}, false, 0)

	id, err := g.Add()
	if err != nil {
		t.Fatal(err)
	}
	if id.Origin() != position.Draft || id.External() != position.DraftIndexBase {
		t.Fatalf("id=%s external=%d", id, id.External())
	}
	want := []position.TargetID{position.PersistedID(1), position.PersistedID(2), position.DraftID(1)}
	for i, got := range g.IDs() {
		if got != want[i] {
			t.Fatalf("ids=%v, expected %v", g.IDs(), want)
		}
	}

	if err := g.RemoveTarget(id); err != nil {
		t.Fatalf("drafts are freely removable: %v", err)
	}
	if err := g.RemoveTarget(position.PersistedID(1)); !errors.Is(err, ErrTargetLocked) {
		t.Fatalf("done target removed: %v", err)
	}
	if err := g.Remove(); err != nil {
		t.Fatalf("pending boundary target: %v", err)
	}
	if err := g.Remove(); !errors.Is(err, ErrTargetLocked) {
		t.Fatalf("done boundary target removed: %v", err)
	}
	if g.Cardinality() != 1 {
		t.Fatalf("cardinality=%d", g.Cardinality())
	}
}

func TestReadOnlyGroup(t *testing.T) {
	g := NewTargetGroup(GroupReduce)
	g.Load(map[int]position.Target{1: {Done: true}, 2: {}}, false, 0)
	g.SetReadOnly(true)

	if _, err := g.Add(); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("add on read-only group: %v", err)
	}
	if err := g.RemoveTarget(position.PersistedID(2)); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("remove on read-only group: %v", err)
	}
	// locked wins over read-only
	if err := g.RemoveTarget(position.PersistedID(1)); !errors.Is(err, ErrTargetLocked) {
		t.Fatalf("expected ErrTargetLocked, got %v", err)
	}
	if err := g.RemoveTarget(position.PersistedID(9)); !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("expected ErrUnknownTarget, got %v", err)
	}
}

func TestEffectRegistryDropsStaleGenerations(t *testing.T) {
	var r effectRegistry
	p := &Panel{name: PanelDCA, generation: 1}
	runs := 0
	r.register(p, DepSide, func() { runs++ })

	current := func(PanelName) uint64 { return p.generation }
	r.fire(DepReferencePrice, current)
	r.fire(DepSide, current)
	if runs != 1 {
		t.Fatalf("runs=%d", runs)
	}

	p.generation++
	r.fire(DepSide, current)
	if runs != 1 {
		t.Fatal("stale generation must not run")
	}
	r.teardown(PanelDCA)
	if r.count(PanelDCA) != 0 {
		t.Fatal("teardown left registrations behind")
	}
}
