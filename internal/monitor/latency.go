package monitor

import (
	"sort"
	"sync"
	"time"
)

// LatencyHistogram tracks latency samples with sliding window.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool         // Whether samples have changed since last Stats()
	cachedStats LatencyStats // Cached computed stats
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		// Shift window: remove oldest
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true // Mark as dirty for lazy recomputation
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99.
// Uses lazy computation - only recomputes when samples have changed.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Return cached stats if samples haven't changed
	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	// Compute new stats
	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	min, max := sorted[0], sorted[n-1]
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   min,
		Max:   max,
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false

	return h.cachedStats
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// Timer helps measure operation duration.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer creates a timer that records to the given histogram.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{
		start:     time.Now(),
		histogram: h,
	}
}

// Stop records elapsed time to histogram.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}
