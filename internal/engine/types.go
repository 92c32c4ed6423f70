package engine

import (
	"encoding/json"
	"errors"
	"time"

	"terminal-core/internal/persistence"
	"terminal-core/internal/symbols"
	"terminal-core/internal/terminal"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrPositionNotFound = errors.New("position not found")
	ErrSymbolMismatch   = errors.New("position symbol differs from requested symbol")
	ErrNoPosition       = errors.New("session has no position")
)

// OpenRequest selects the symbol and, optionally, the position to edit.
type OpenRequest struct {
	Symbol     string  `json:"symbol"`
	PositionID string  `json:"positionId,omitempty"`
	Leverage   float64 `json:"leverage,omitempty"`
}

// EditResult is the session after an edit plus the state of the edited field.
type EditResult struct {
	View  terminal.View      `json:"view"`
	Field terminal.FieldView `json:"field"`
}

// SessionInfo summarises one open session.
type SessionInfo struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	PositionID string    `json:"positionId,omitempty"`
	ReadOnly   bool      `json:"readOnly"`
	Errors     int       `json:"errors"`
	OpenedAt   time.Time `json:"openedAt"`
}

// SymbolInfo is a catalog entry with its latest live price.
type SymbolInfo struct {
	symbols.Symbol
	LastPrice float64    `json:"lastPrice,omitempty"`
	PriceAt   *time.Time `json:"priceAt,omitempty"`
}

// PayloadInfo is a stored assembled payload.
type PayloadInfo struct {
	ID              int64           `json:"id"`
	PositionID      string          `json:"positionId,omitempty"`
	PositionVersion int64           `json:"positionVersion,omitempty"`
	Payload         json.RawMessage `json:"payload"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// SystemStatus represents overall system status.
type SystemStatus struct {
	Version        string    `json:"version"`
	Feed           string    `json:"feed"`
	StartedAt      time.Time `json:"startedAt"`
	Uptime         string    `json:"uptime"`
	Sessions       int       `json:"sessions"`
	Positions      int       `json:"positions"`
	StaleSnapshots int       `json:"staleSnapshots"`
	CachedPrices   int       `json:"cachedPrices"`

	PayloadWriter *PayloadWriterStatus `json:"payloadWriter,omitempty"`
}

// PayloadWriterStatus reports the payload audit writer's backlog and counters.
type PayloadWriterStatus struct {
	Pending int `json:"pending"`
	persistence.BatchWriterMetrics
}
