package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"terminal-core/internal/position"
)

var (
	ErrPositionIDRequired = errors.New("position id is required")
	ErrNotFound           = errors.New("record not found")
)

// Queries provides the position and payload queries.
type Queries struct {
	db *sql.DB
}

// NewQueries creates a new Queries instance.
func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// ----------------------------------------
// Position Queries
// ----------------------------------------

// UpsertPosition stores a snapshot. Older versions never overwrite newer rows;
// the returned flag reports whether the row changed.
func (q *Queries) UpsertPosition(ctx context.Context, e position.Entity) (bool, error) {
	if e.ID == "" {
		return false, ErrPositionIDRequired
	}
	rebuy, err := encodeTargets(e.ReBuyTargets)
	if err != nil {
		return false, fmt.Errorf("encode rebuy targets: %w", err)
	}
	reduce, err := encodeTargets(e.ReduceOrders)
	if err != nil {
		return false, fmt.Errorf("encode reduce orders: %w", err)
	}
	trailing, err := encodeTrailing(e.TrailingStop)
	if err != nil {
		return false, fmt.Errorf("encode trailing stop: %w", err)
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO positions (id, symbol, side, buy_price, amount, position_size_quote, leverage, status,
			is_copy_trading, is_copy_trader, updating, closed, stop_loss_price, stop_loss_percentage,
			trailing_stop, rebuy_targets, reduce_orders, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			symbol = excluded.symbol,
			side = excluded.side,
			buy_price = excluded.buy_price,
			amount = excluded.amount,
			position_size_quote = excluded.position_size_quote,
			leverage = excluded.leverage,
			status = excluded.status,
			is_copy_trading = excluded.is_copy_trading,
			is_copy_trader = excluded.is_copy_trader,
			updating = excluded.updating,
			closed = excluded.closed,
			stop_loss_price = excluded.stop_loss_price,
			stop_loss_percentage = excluded.stop_loss_percentage,
			trailing_stop = excluded.trailing_stop,
			rebuy_targets = excluded.rebuy_targets,
			reduce_orders = excluded.reduce_orders,
			version = excluded.version,
			updated_at = excluded.updated_at
		WHERE excluded.version > positions.version
			OR (excluded.version = positions.version AND excluded.updated_at > positions.updated_at)
	`, e.ID, e.Symbol, string(e.Side), e.BuyPrice, e.Amount, e.PositionSizeQuote, e.Leverage, string(e.Status),
		boolInt(e.IsCopyTrading), boolInt(e.IsCopyTrader), boolInt(e.Updating), boolInt(e.Closed),
		e.StopLossPrice, e.StopLossPercentage, trailing, rebuy, reduce, e.Version, e.UpdatedAt.UnixNano())
	if err != nil {
		return false, fmt.Errorf("upsert position %s: %w", e.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetPosition returns one snapshot or ErrNotFound.
func (q *Queries) GetPosition(ctx context.Context, id string) (position.Entity, error) {
	if id == "" {
		return position.Entity{}, ErrPositionIDRequired
	}
	row := q.db.QueryRowContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE id = ?`, id)
	e, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return position.Entity{}, fmt.Errorf("position %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return position.Entity{}, fmt.Errorf("query position %s: %w", id, err)
	}
	return e, nil
}

// ListOpenPositions returns every position that is not closed.
func (q *Queries) ListOpenPositions(ctx context.Context) ([]position.Entity, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE closed = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []position.Entity
	for rows.Next() {
		e, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeletePosition removes a snapshot.
func (q *Queries) DeletePosition(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM positions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete position %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("position %s: %w", id, ErrNotFound)
	}
	return nil
}

// ----------------------------------------
// Payload Queries
// ----------------------------------------

// InsertPayload records an assembled payload and returns its row id.
func (q *Queries) InsertPayload(ctx context.Context, p PayloadRecord) (int64, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO payloads (session_id, position_id, position_version, symbol, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.SessionID, p.PositionID, p.PositionVersion, p.Symbol, string(p.Body), p.CreatedAt.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("insert payload: %w", err)
	}
	return res.LastInsertId()
}

// InsertPayloads records several payloads in one transaction.
func (q *Queries) InsertPayloads(ctx context.Context, recs []PayloadRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payload batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO payloads (session_id, position_id, position_version, symbol, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare payload batch: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range recs {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx, p.SessionID, p.PositionID, p.PositionVersion, p.Symbol, string(p.Body), p.CreatedAt.UnixNano()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert payload: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payload batch: %w", err)
	}
	return nil
}

// ListPayloads returns the newest payloads of a session.
func (q *Queries) ListPayloads(ctx context.Context, sessionID string, limit int) ([]PayloadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, session_id, COALESCE(position_id, ''), COALESCE(position_version, 0), symbol, body, created_at
		FROM payloads
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query payloads: %w", err)
	}
	defer rows.Close()

	var out []PayloadRecord
	for rows.Next() {
		var (
			p       PayloadRecord
			body    string
			created int64
		)
		if err := rows.Scan(&p.ID, &p.SessionID, &p.PositionID, &p.PositionVersion, &p.Symbol, &body, &created); err != nil {
			return nil, fmt.Errorf("scan payload: %w", err)
		}
		p.Body = []byte(body)
		p.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}
