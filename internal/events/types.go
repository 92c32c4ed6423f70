package events

import (
	"time"

	"terminal-core/internal/position"
)

// Event enumerates high-level topics inside the terminal core.
type Event string

const (
	EventPriceTick      Event = "price_tick"
	EventPositionChange Event = "position_change"
	EventSessionUpdate  Event = "session_update"
)

// PriceTick is published by market feeds.
type PriceTick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// PositionChange carries a snapshot the state manager accepted.
type PositionChange struct {
	Position position.Entity `json:"position"`
}

// SessionUpdate tells listeners (websocket clients) that a session re-rendered.
type SessionUpdate struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
}
