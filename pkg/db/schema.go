package db

import (
	"database/sql"
	"fmt"
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS positions (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    buy_price REAL NOT NULL DEFAULT 0,
    amount REAL NOT NULL DEFAULT 0,
    position_size_quote REAL NOT NULL DEFAULT 0,
    leverage REAL NOT NULL DEFAULT 1,
    status TEXT NOT NULL,
    is_copy_trading INTEGER DEFAULT 0,
    is_copy_trader INTEGER DEFAULT 0,
    updating INTEGER DEFAULT 0,
    closed INTEGER DEFAULT 0,
    stop_loss_price REAL DEFAULT 0,
    stop_loss_percentage REAL DEFAULT 0,
    rebuy_targets TEXT NOT NULL DEFAULT '{}',
    reduce_orders TEXT NOT NULL DEFAULT '{}',
    version INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol);

CREATE TABLE IF NOT EXISTS payloads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    position_id TEXT,
    symbol TEXT NOT NULL,
    body TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payloads_session ON payloads(session_id);
`

// ApplyMigrations bootstraps the schema; keep lightweight for fast startup.
func ApplyMigrations(d *Database) error {
	if d == nil || d.DB == nil {
		return fmt.Errorf("database is not initialized")
	}
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	// Lightweight, idempotent migrations for older DB files.
	if err := ensureColumn(d.DB, "positions", "trailing_stop", "TEXT"); err != nil {
		return err
	}
	if err := ensureColumn(d.DB, "payloads", "position_version", "INTEGER DEFAULT 0"); err != nil {
		return err
	}
	return nil
}

// ensureColumn adds a column if it does not already exist.
func ensureColumn(db *sql.DB, table, column, definition string) error {
	exists, err := columnExists(db, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)
	if _, err := db.Exec(alter); err != nil {
		return fmt.Errorf("alter table %s add column %s: %w", table, column, err)
	}
	return nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return false, fmt.Errorf("pragma table_info(%s): %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
