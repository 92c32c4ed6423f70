// Package state keeps the versioned in-memory view of backend positions.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"terminal-core/internal/events"
	"terminal-core/internal/position"
)

// ErrUnknownPosition is returned for ids the manager never saw.
var ErrUnknownPosition = errors.New("unknown position")

// Store persists accepted snapshots. *db.Queries satisfies it.
type Store interface {
	UpsertPosition(ctx context.Context, e position.Entity) (bool, error)
	ListOpenPositions(ctx context.Context) ([]position.Entity, error)
}

// Manager keeps an in-memory view of positions while persisting to DB for durability.
type Manager struct {
	mu        sync.RWMutex
	positions map[string]position.Entity
	store     Store
	bus       *events.Bus
	stale     int
}

func NewManager(store Store, bus *events.Bus) *Manager {
	return &Manager{
		store:     store,
		bus:       bus,
		positions: make(map[string]position.Entity),
	}
}

// Load seeds in-memory state from the store on startup.
func (m *Manager) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	pos, err := m.store.ListOpenPositions(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pos {
		m.positions[p.ID] = p
	}
	return nil
}

// Position returns a copy of the latest snapshot for id.
func (m *Manager) Position(id string) (position.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[id]
	if !ok {
		return position.Entity{}, fmt.Errorf("%w: %s", ErrUnknownPosition, id)
	}
	return p.Clone(), nil
}

// Positions returns copies of every snapshot.
func (m *Manager) Positions() []position.Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]position.Entity, 0, len(m.positions))
	for _, p := range m.positions {
		res = append(res, p.Clone())
	}
	return res
}

// Apply accepts e only when it supersedes the held snapshot. Accepted snapshots
// are persisted and announced as EventPositionChange; stale ones are counted.
func (m *Manager) Apply(ctx context.Context, e position.Entity) (bool, error) {
	if e.ID == "" {
		return false, errors.New("position id is empty")
	}
	m.mu.Lock()
	if held, ok := m.positions[e.ID]; ok && !e.NewerThan(held) {
		m.stale++
		m.mu.Unlock()
		return false, nil
	}
	if m.store != nil {
		if _, err := m.store.UpsertPosition(ctx, e); err != nil {
			m.mu.Unlock()
			return false, fmt.Errorf("persist position %s: %w", e.ID, err)
		}
	}
	m.positions[e.ID] = e.Clone()
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(events.EventPositionChange, events.PositionChange{Position: e.Clone()})
	}
	return true, nil
}

// StaleCount reports how many snapshots Apply ignored.
func (m *Manager) StaleCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stale
}
