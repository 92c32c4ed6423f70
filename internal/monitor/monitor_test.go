package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"terminal-core/internal/events"
)

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.FieldEdited("dca")
	m.FieldFailed("limit")
	m.Payload(PayloadRejected)
	m.PositionRefresh(RefreshStale)

	if got := testutil.ToFloat64(m.sessionsOpen); got != 1 {
		t.Fatalf("sessions open=%v", got)
	}
	if got := testutil.ToFloat64(m.fieldEdits.WithLabelValues("dca")); got != 1 {
		t.Fatalf("edits=%v", got)
	}
	if got := testutil.ToFloat64(m.positionRefresh.WithLabelValues(RefreshStale)); got != 1 {
		t.Fatalf("refresh=%v", got)
	}
	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Fatalf("gathered %d series: %v", n, err)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.SessionOpened()
	m.FieldEdited("entry")
	m.Payload(PayloadAssembled)
	m.EditTimer().Stop()
	if snap := m.Snapshot(); snap.EditLatency.Count != 0 {
		t.Fatalf("snapshot=%+v", snap)
	}
}

func TestLatencyHistogram(t *testing.T) {
	h := NewLatencyHistogram(3)
	for _, v := range []float64{5, 1, 3, 4} {
		h.Record(v)
	}
	st := h.Stats()
	if st.Count != 3 || st.Min != 1 || st.Max != 4 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestMonitorCountsBusEvents(t *testing.T) {
	bus := events.NewBus()
	m := NewMetrics(prometheus.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	(&Monitor{Bus: bus, Metrics: m}).Start(ctx)

	bus.Publish(events.EventPriceTick, events.PriceTick{Symbol: "BTCUSDT", Price: 1})
	bus.Publish(events.EventPositionChange, events.PositionChange{})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if testutil.ToFloat64(m.priceTicks) == 1 && testutil.ToFloat64(m.positionChanges) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("monitor did not count bus events")
}
