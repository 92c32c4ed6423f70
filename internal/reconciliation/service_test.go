package reconciliation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"terminal-core/internal/monitor"
	"terminal-core/internal/position"
	"terminal-core/internal/state"
	"terminal-core/pkg/db"
)

type fakeSource struct {
	mu  sync.Mutex
	pos map[string]position.Entity
	err error
}

func (f *fakeSource) FetchPosition(_ context.Context, id string) (position.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return position.Entity{}, f.err
	}
	p, ok := f.pos[id]
	if !ok {
		return position.Entity{}, db.ErrNotFound
	}
	return p, nil
}

func entity(id string, version int64) position.Entity {
	return position.Entity{ID: id, Symbol: "BTCUSDT", Side: position.SideLong, Status: position.StatusOpen, Version: version}
}

func TestRefreshAppliesNewerOnly(t *testing.T) {
	mgr := state.NewManager(nil, nil)
	ctx := context.Background()
	mgr.Apply(ctx, entity("a", 3))

	src := &fakeSource{pos: map[string]position.Entity{"a": entity("a", 2)}}
	svc := NewService(src, mgr, monitor.NewMetrics(prometheus.NewRegistry()), 0)

	res, err := svc.Refresh(ctx, "a")
	if err != nil || res.Applied {
		t.Fatalf("stale refresh: res=%+v err=%v", res, err)
	}
	src.pos["a"] = entity("a", 4)
	if res, _ := svc.Refresh(ctx, "a"); !res.Applied {
		t.Fatal("newer snapshot not applied")
	}
	if p, _ := mgr.Position("a"); p.Version != 4 {
		t.Fatalf("version=%d", p.Version)
	}
}

func TestReconcileReport(t *testing.T) {
	mgr := state.NewManager(nil, nil)
	ctx := context.Background()
	mgr.Apply(ctx, entity("a", 1))
	mgr.Apply(ctx, entity("b", 1))
	closed := entity("c", 1)
	closed.Closed = true
	mgr.Apply(ctx, closed)

	src := &fakeSource{pos: map[string]position.Entity{"a": entity("a", 2)}}
	report := NewService(src, mgr, nil, 0).Reconcile(ctx)
	if len(report.Applied) != 1 || report.Applied[0] != "a" {
		t.Fatalf("applied=%v", report.Applied)
	}
	if !errors.Is(report.Failed["b"], db.ErrNotFound) || len(report.Failed) != 1 {
		t.Fatalf("failed=%v", report.Failed)
	}
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/positions/p-1":
			w.Write([]byte(`{"symbol":"ETHUSDT","side":"SHORT","buyPrice":1800,"amount":2,"status":"open","version":9,
				"reduceOrders":{"1":{"targetPricePercentage":-5,"amountPercentage":50,"done":true}},
				"updatedAt":"2024-01-02T03:04:05Z"}`))
		case "/positions/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL + "/")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e, err := src.FetchPosition(ctx, "p-1")
	if err != nil {
		t.Fatal(err)
	}
	if e.ID != "p-1" || e.Side != position.SideShort || e.Version != 9 || !e.ReduceOrders[1].Done {
		t.Fatalf("entity=%+v", e)
	}
	if _, err := src.FetchPosition(ctx, "missing"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := src.FetchPosition(ctx, "broken"); err == nil {
		t.Fatal("expected status error")
	}
}
