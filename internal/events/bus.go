package events

import (
	"sync"
)

// Bus is a lightweight pub/sub broker using channels. Sessions, feeds and the
// state manager talk through it without importing each other.
type Bus struct {
	mu   sync.RWMutex
	subs map[Event][]*subscriber
}

type subscriber struct {
	ch chan any
	// latest subscribers keep only the newest payload instead of dropping it
	latest bool
	mu     sync.Mutex
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event][]*subscriber)}
}

// Subscribe registers a listener for an event and returns the channel and an
// unsubscribe function. When the buffer is full new payloads are dropped.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan any, func()) {
	return b.subscribe(e, &subscriber{ch: make(chan any, buffer)})
}

// SubscribeLatest registers a one-slot listener that always holds the newest
// payload: a publish into a full slot replaces the pending value. Use it when
// the payload is a signal to re-read current state.
func (b *Bus) SubscribeLatest(e Event) (<-chan any, func()) {
	return b.subscribe(e, &subscriber{ch: make(chan any, 1), latest: true})
}

func (b *Bus) subscribe(e Event, sub *subscriber) (<-chan any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[e] = append(b.subs[e], sub)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subs[e]
			for i, s := range subs {
				if s == sub {
					close(s.ch)
					b.subs[e] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}
	return sub.ch, unsub
}

// Publish fans the payload out without blocking the publisher.
func (b *Bus) Publish(e Event, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[e] {
		sub.deliver(payload)
	}
}

func (s *subscriber) deliver(payload any) {
	if !s.latest {
		select {
		case s.ch <- payload:
		default:
			// drop if subscriber is slow; keep broker non-blocking
		}
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case s.ch <- payload:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}
