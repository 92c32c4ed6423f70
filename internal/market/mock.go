package market

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"terminal-core/internal/events"
	"terminal-core/pkg/cache"
	"terminal-core/pkg/i18n"
	"terminal-core/pkg/logger"
)

// MockFeed generates synthetic ticks for local development.
type MockFeed struct {
	Bus         *events.Bus
	Prices      *cache.PriceCache
	Symbols     []string
	StartPrices map[string]float64
	// Step is the largest relative move per tick (0.001 = 0.1%).
	Step     float64
	Interval time.Duration
	Rand     *rand.Rand

	mu   sync.Mutex
	last map[string]float64
}

func (m *MockFeed) Start(ctx context.Context) {
	if m.Bus == nil || m.Prices == nil {
		logger.Warn("mock feed: bus or cache not set")
		return
	}
	if len(m.Symbols) == 0 {
		m.Symbols = []string{"BTCUSDT"}
	}
	if m.Interval == 0 {
		m.Interval = time.Second
	}
	m.tick(time.Now())

	go func() {
		t := time.NewTicker(m.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				m.tick(now)
			}
		}
	}()
	logger.Info(i18n.Get("MockFeedStarted"), m.Symbols)
}

// tick advances every symbol by one random-walk step.
func (m *MockFeed) tick(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		m.last = make(map[string]float64, len(m.Symbols))
	}
	if m.Rand == nil {
		m.Rand = rand.New(rand.NewSource(now.UnixNano()))
	}
	step := m.Step
	if step == 0 {
		step = 0.001
	}
	for _, sym := range m.Symbols {
		sym = strings.ToUpper(sym)
		price, ok := m.last[sym]
		if !ok {
			price = m.StartPrices[sym]
			if price <= 0 {
				price = 100.0
			}
		} else {
			// simple random walk
			price *= 1 + (m.Rand.Float64()*2-1)*step
		}
		m.last[sym] = price
		publishTick(m.Bus, m.Prices, sym, price, now)
	}
}
