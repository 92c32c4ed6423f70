package monitor

import (
	"context"

	"terminal-core/internal/events"
	"terminal-core/pkg/logger"
)

// Monitor watches the event bus and feeds bus-level counters.
type Monitor struct {
	Bus     *events.Bus
	Metrics *Metrics
}

func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil || m.Metrics == nil {
		logger.Warn("monitor not fully configured; skipping")
		return
	}
	ticks, unsubTicks := m.Bus.Subscribe(events.EventPriceTick, 256)
	changes, unsubChanges := m.Bus.Subscribe(events.EventPositionChange, 64)
	go func() {
		defer unsubTicks()
		defer unsubChanges()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ticks:
				if !ok {
					return
				}
				m.Metrics.PriceTick()
			case _, ok := <-changes:
				if !ok {
					return
				}
				m.Metrics.PositionChanged()
			}
		}
	}()
}
