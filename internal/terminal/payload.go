package terminal

import "terminal-core/internal/position"

// Payload is the assembled parameter set handed to the caller for submission.
// Every derived value in it was recomputed from its source at assembly time.
type Payload struct {
	SessionID string        `json:"sessionId"`
	Symbol    string        `json:"symbol"`
	Side      position.Side `json:"side"`

	// PositionID and PositionVersion name the snapshot the payload was built against.
	PositionID      string `json:"positionId,omitempty"`
	PositionVersion int64  `json:"positionVersion,omitempty"`

	Entry             *EntryParams        `json:"entry,omitempty"`
	DCATargets        []TargetParams      `json:"dcaTargets,omitempty"`
	TakeProfitTargets []TargetParams      `json:"takeProfitTargets,omitempty"`
	StopLoss          *StopLossParams     `json:"stopLoss,omitempty"`
	TrailingStop      *TrailingStopParams `json:"trailingStop,omitempty"`
	ReduceTargets     []TargetParams      `json:"reduceTargets,omitempty"`
	Increase          *OrderParams        `json:"increase,omitempty"`
}

// OrderParams is a sizing triple at a price.
type OrderParams struct {
	Type           string  `json:"type"`
	Price          float64 `json:"price"`
	PositionSize   float64 `json:"positionSize"`
	Units          float64 `json:"units"`
	RealInvestment float64 `json:"realInvestment"`
}

// EntryParams opens a new position.
type EntryParams struct {
	OrderParams
	Leverage   float64 `json:"leverage"`
	MarginMode string  `json:"marginMode"`
}

// TargetParams is one flattened target. ID is the external target number.
type TargetParams struct {
	ID               int     `json:"id"`
	Persisted        bool    `json:"persisted"`
	PricePercentage  float64 `json:"pricePercentage"`
	Price            float64 `json:"price"`
	AmountPercentage float64 `json:"amountPercentage"`
	Done             bool    `json:"done,omitempty"`
	Skipped          bool    `json:"skipped,omitempty"`
	Cancel           bool    `json:"cancel,omitempty"`
	OrderID          string  `json:"orderId,omitempty"`
}

type StopLossParams struct {
	Percentage float64 `json:"percentage"`
	Price      float64 `json:"price"`
}

type TrailingStopParams struct {
	TriggerPercentage  float64 `json:"triggerPercentage"`
	TriggerPrice       float64 `json:"triggerPrice"`
	DistancePercentage float64 `json:"distancePercentage"`
}
