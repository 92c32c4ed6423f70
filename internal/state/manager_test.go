package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"terminal-core/internal/events"
	"terminal-core/internal/position"
	"terminal-core/pkg/db"
)

func newManager(t *testing.T) (*Manager, *events.Bus, *db.Queries) {
	t.Helper()
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatal(err)
	}
	bus := events.NewBus()
	q := database.Queries()
	return NewManager(q, bus), bus, q
}

func snapshot(version int64) position.Entity {
	return position.Entity{
		ID:        "p-1",
		Symbol:    "BTCUSDT",
		Side:      position.SideLong,
		BuyPrice:  100,
		Amount:    1,
		Status:    position.StatusOpen,
		Version:   version,
		UpdatedAt: time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestApplyVersionGate(t *testing.T) {
	m, bus, q := newManager(t)
	ch, unsub := bus.Subscribe(events.EventPositionChange, 4)
	defer unsub()
	ctx := context.Background()

	if ok, err := m.Apply(ctx, snapshot(2)); !ok || err != nil {
		t.Fatalf("apply v2: ok=%v err=%v", ok, err)
	}
	got := (<-ch).(events.PositionChange)
	if got.Position.Version != 2 {
		t.Fatalf("event %+v", got)
	}

	for _, v := range []int64{1, 2} {
		if ok, _ := m.Apply(ctx, snapshot(v)); ok {
			t.Fatalf("v%d accepted over v2", v)
		}
	}
	if m.StaleCount() != 2 {
		t.Fatalf("stale=%d", m.StaleCount())
	}
	select {
	case ev := <-ch:
		t.Fatalf("stale snapshot published %+v", ev)
	default:
	}

	stored, err := q.GetPosition(ctx, "p-1")
	if err != nil || stored.Version != 2 {
		t.Fatalf("stored=%+v err=%v", stored, err)
	}
}

func TestPositionReturnsCopies(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	e := snapshot(1)
	e.ReBuyTargets = map[int]position.Target{1: {TargetPricePercentage: -5}}
	m.Apply(ctx, e)

	p, err := m.Position("p-1")
	if err != nil {
		t.Fatal(err)
	}
	p.ReBuyTargets[1] = position.Target{Done: true}
	again, _ := m.Position("p-1")
	if again.ReBuyTargets[1].Done {
		t.Fatal("caller mutated held snapshot")
	}
	if _, err := m.Position("nope"); !errors.Is(err, ErrUnknownPosition) {
		t.Fatalf("expected ErrUnknownPosition, got %v", err)
	}
}

func TestLoadSeedsFromStore(t *testing.T) {
	m, _, q := newManager(t)
	ctx := context.Background()
	q.UpsertPosition(ctx, snapshot(7))

	fresh := NewManager(q, nil)
	if err := fresh.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if p, err := fresh.Position("p-1"); err != nil || p.Version != 7 {
		t.Fatalf("p=%+v err=%v", p, err)
	}
	if len(m.Positions()) != 0 {
		t.Fatal("first manager was never loaded")
	}
}
