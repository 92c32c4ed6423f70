package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"terminal-core/internal/position"
)

// PayloadRecord is an assembled parameter payload kept for audit.
type PayloadRecord struct {
	ID              int64
	SessionID       string
	PositionID      string
	PositionVersion int64
	Symbol          string
	Body            []byte
	CreatedAt       time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

const positionColumns = `id, symbol, side, buy_price, amount, position_size_quote, leverage, status,
	is_copy_trading, is_copy_trader, updating, closed, stop_loss_price, stop_loss_percentage,
	COALESCE(trailing_stop, ''), rebuy_targets, reduce_orders, version, updated_at`

func scanPosition(r rowScanner) (position.Entity, error) {
	var (
		e                     position.Entity
		side, status          string
		trailing              string
		rebuy, reduce         string
		updatedAt             int64
		copyTrading, copyLead int
		updating, closed      int
	)
	if err := r.Scan(&e.ID, &e.Symbol, &side, &e.BuyPrice, &e.Amount, &e.PositionSizeQuote, &e.Leverage, &status,
		&copyTrading, &copyLead, &updating, &closed, &e.StopLossPrice, &e.StopLossPercentage,
		&trailing, &rebuy, &reduce, &e.Version, &updatedAt); err != nil {
		return position.Entity{}, err
	}
	e.Side = position.Side(side)
	e.Status = position.Status(status)
	e.IsCopyTrading = copyTrading != 0
	e.IsCopyTrader = copyLead != 0
	e.Updating = updating != 0
	e.Closed = closed != 0
	e.UpdatedAt = time.Unix(0, updatedAt).UTC()

	if trailing != "" {
		var ts position.TrailingStop
		if err := sonic.UnmarshalString(trailing, &ts); err != nil {
			return position.Entity{}, fmt.Errorf("decode trailing stop of %s: %w", e.ID, err)
		}
		e.TrailingStop = &ts
	}
	var err error
	if e.ReBuyTargets, err = decodeTargets(rebuy); err != nil {
		return position.Entity{}, fmt.Errorf("decode rebuy targets of %s: %w", e.ID, err)
	}
	if e.ReduceOrders, err = decodeTargets(reduce); err != nil {
		return position.Entity{}, fmt.Errorf("decode reduce orders of %s: %w", e.ID, err)
	}
	return e, nil
}

// Target maps are stored keyed by their persisted index.
func encodeTargets(m map[int]position.Target) (string, error) {
	if m == nil {
		m = map[int]position.Target{}
	}
	return sonic.MarshalString(m)
}

func decodeTargets(raw string) (map[int]position.Target, error) {
	if raw == "" {
		return nil, nil
	}
	m := make(map[int]position.Target)
	if err := sonic.UnmarshalString(raw, &m); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

func encodeTrailing(ts *position.TrailingStop) (sql.NullString, error) {
	if ts == nil {
		return sql.NullString{}, nil
	}
	s, err := sonic.MarshalString(ts)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
