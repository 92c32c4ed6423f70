// Package position holds the backend-confirmed position snapshot consumed by the
// terminal. Snapshots are replaced wholesale on refresh and never patched.
package position

import (
	"strings"
	"time"
)

// Side is the directional stance of a position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// ParseSide normalises user/backend input; anything unknown is reported as invalid.
func ParseSide(s string) (Side, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY":
		return SideLong, true
	case "SHORT", "SELL":
		return SideShort, true
	}
	return "", false
}

// Opposite returns the mirrored side.
func (s Side) Opposite() Side {
	if s == SideShort {
		return SideLong
	}
	return SideShort
}

// Status mirrors the lifecycle reported by the position service.
type Status string

const (
	StatusOpening Status = "opening"
	StatusOpen    Status = "open"
	StatusClosing Status = "closing"
	StatusClosed  Status = "closed"
)

// Target is a persisted rebuy (DCA) or reduce order attached to a position.
type Target struct {
	TargetPricePercentage float64 `json:"targetPricePercentage"`
	// RebuyPercentage for DCA targets, share of the available amount for reduce orders.
	AmountPercentage float64 `json:"amountPercentage"`
	Done             bool    `json:"done"`
	Skipped          bool    `json:"skipped"`
	Cancel           bool    `json:"cancel"`
	OrderID          string  `json:"orderId,omitempty"`
	ErrorMSG         string  `json:"errorMSG,omitempty"`
}

// Locked reports whether the target already left the editable state.
func (t Target) Locked() bool {
	return t.Done || t.Skipped || t.Cancel
}

// TrailingStop carries the stored trailing stop parameters.
type TrailingStop struct {
	TriggerPercentage  float64 `json:"triggerPercentage"`
	DistancePercentage float64 `json:"distancePercentage"`
	Triggered          bool    `json:"triggered"`
}

// Entity is a read-only snapshot of a position as confirmed by the backend.
type Entity struct {
	ID                 string         `json:"id"`
	Symbol             string         `json:"symbol"`
	Side               Side           `json:"side"`
	BuyPrice           float64        `json:"buyPrice"`
	Amount             float64        `json:"amount"`
	PositionSizeQuote  float64        `json:"positionSizeQuote"`
	Leverage           float64        `json:"leverage"`
	Status             Status         `json:"status"`
	IsCopyTrading      bool           `json:"isCopyTrading"`
	IsCopyTrader       bool           `json:"isCopyTrader"`
	Updating           bool           `json:"updating"`
	Closed             bool           `json:"closed"`
	StopLossPrice      float64        `json:"stopLossPrice"`
	StopLossPercentage float64        `json:"stopLossPercentage"`
	TrailingStop       *TrailingStop  `json:"trailingStop,omitempty"`
	ReBuyTargets       map[int]Target `json:"reBuyTargets"`
	ReduceOrders       map[int]Target `json:"reduceOrders"`

	// Version increases on every backend write; UpdatedAt breaks ties.
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ReadOnly reports whether every editing surface must be disabled for this snapshot.
func (e *Entity) ReadOnly() bool {
	if e == nil {
		return false
	}
	return (e.IsCopyTrading && !e.IsCopyTrader) || e.Closed || e.Updating || e.Status == StatusOpening
}

// NewerThan reports whether e supersedes other.
func (e Entity) NewerThan(other Entity) bool {
	if e.Version != other.Version {
		return e.Version > other.Version
	}
	return e.UpdatedAt.After(other.UpdatedAt)
}

// Clone returns a deep copy so callers never share target maps.
func (e Entity) Clone() Entity {
	out := e
	if e.TrailingStop != nil {
		ts := *e.TrailingStop
		out.TrailingStop = &ts
	}
	out.ReBuyTargets = cloneTargets(e.ReBuyTargets)
	out.ReduceOrders = cloneTargets(e.ReduceOrders)
	return out
}

func cloneTargets(in map[int]Target) map[int]Target {
	if in == nil {
		return nil
	}
	out := make(map[int]Target, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
