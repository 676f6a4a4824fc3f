// Package storage provides the SQLite-backed persistence collaborator:
// the append-only trade ledger and the strategy capital records.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS strategies (
	id                    TEXT PRIMARY KEY,
	name                  TEXT NOT NULL,
	virtual_capital       TEXT NOT NULL,
	is_active             INTEGER NOT NULL DEFAULT 1,
	notifications_enabled INTEGER NOT NULL DEFAULT 0,
	created_at            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id                 TEXT PRIMARY KEY,
	strategy_id        TEXT NOT NULL,
	symbol             TEXT NOT NULL,
	side               TEXT NOT NULL CHECK (side IN ('BUY', 'SELL')),
	quantity           TEXT NOT NULL,
	unit_price_foreign TEXT NOT NULL,
	unit_price_local   TEXT NOT NULL,
	fx_rate_at_fill    TEXT NOT NULL,
	commission         TEXT NOT NULL,
	realized_gain_tax  TEXT NOT NULL,
	total_cost_local   TEXT NOT NULL,
	timestamp          TEXT NOT NULL,
	notes              TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_trades_strategy_symbol_ts
	ON trades (strategy_id, symbol, timestamp);
CREATE INDEX IF NOT EXISTS idx_trades_strategy_ts
	ON trades (strategy_id, timestamp);
`

// Open opens (creating if necessary) the engine database and applies the
// schema. Monetary columns are TEXT so decimal values round-trip exactly.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		path = absPath
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; one pooled connection avoids lock
	// contention and keeps :memory: databases coherent in tests.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}
