package monitor

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the terminal collectors. All methods are safe on a nil receiver
// so components can run without metrics in tests.
type Metrics struct {
	sessionsOpen    prometheus.Gauge
	fieldEdits      *prometheus.CounterVec
	fieldErrors     *prometheus.CounterVec
	payloads        *prometheus.CounterVec
	positionRefresh *prometheus.CounterVec
	priceTicks      prometheus.Counter
	positionChanges prometheus.Counter

	EditLatency     *LatencyHistogram
	AssembleLatency *LatencyHistogram
}

// NewMetrics builds the collectors and registers them on reg (skipped when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "terminal_sessions_open",
			Help: "Number of open terminal sessions.",
		}),
		fieldEdits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "terminal_field_edits_total",
			Help: "Field edits accepted, by panel.",
		}, []string{"panel"}),
		fieldErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "terminal_field_errors_total",
			Help: "Edits that left the edited field with an error, by error kind.",
		}, []string{"kind"}),
		payloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "terminal_payloads_total",
			Help: "Payload assembly attempts, by result.",
		}, []string{"result"}),
		positionRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "terminal_position_refresh_total",
			Help: "Position refreshes, by result (applied, stale, error).",
		}, []string{"result"}),
		priceTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "terminal_price_ticks_total",
			Help: "Price ticks seen on the event bus.",
		}),
		positionChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "terminal_position_changes_total",
			Help: "Position snapshots accepted by the state manager.",
		}),
		EditLatency:     NewLatencyHistogram(1000),
		AssembleLatency: NewLatencyHistogram(1000),
	}
	if reg != nil {
		reg.MustRegister(m.sessionsOpen, m.fieldEdits, m.fieldErrors, m.payloads,
			m.positionRefresh, m.priceTicks, m.positionChanges)
	}
	return m
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.sessionsOpen.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.sessionsOpen.Dec()
	}
}

func (m *Metrics) FieldEdited(panel string) {
	if m != nil {
		m.fieldEdits.WithLabelValues(panel).Inc()
	}
}

func (m *Metrics) FieldFailed(kind string) {
	if m != nil {
		m.fieldErrors.WithLabelValues(kind).Inc()
	}
}

// Payload result labels.
const (
	PayloadAssembled = "assembled"
	PayloadRejected  = "rejected"
)

func (m *Metrics) Payload(result string) {
	if m != nil {
		m.payloads.WithLabelValues(result).Inc()
	}
}

// Refresh result labels.
const (
	RefreshApplied = "applied"
	RefreshStale   = "stale"
	RefreshError   = "error"
)

func (m *Metrics) PositionRefresh(result string) {
	if m != nil {
		m.positionRefresh.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) PriceTick() {
	if m != nil {
		m.priceTicks.Inc()
	}
}

func (m *Metrics) PositionChanged() {
	if m != nil {
		m.positionChanges.Inc()
	}
}

// EditTimer starts a timer for one edit; nil metrics yield a no-op timer.
func (m *Metrics) EditTimer() *Timer {
	if m == nil {
		return NewTimer(nil)
	}
	return NewTimer(m.EditLatency)
}

func (m *Metrics) AssembleTimer() *Timer {
	if m == nil {
		return NewTimer(nil)
	}
	return NewTimer(m.AssembleLatency)
}

// MetricsSnapshot is the JSON view served next to the Prometheus endpoint.
type MetricsSnapshot struct {
	EditLatency     LatencyStats `json:"edit_latency"`
	AssembleLatency LatencyStats `json:"assemble_latency"`
	GoroutineCount  int          `json:"goroutine_count"`
	HeapAlloc       uint64       `json:"heap_alloc_bytes"`
	HeapSys         uint64       `json:"heap_sys_bytes"`
	Timestamp       time.Time    `json:"timestamp"`
}

// Snapshot returns a point-in-time metrics snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snap := MetricsSnapshot{
		GoroutineCount: runtime.NumGoroutine(),
		HeapAlloc:      memStats.HeapAlloc,
		HeapSys:        memStats.HeapSys,
		Timestamp:      time.Now(),
	}
	if m != nil {
		snap.EditLatency = m.EditLatency.Stats()
		snap.AssembleLatency = m.AssembleLatency.Stats()
	}
	return snap
}
