package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"paper_trading/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// timeLayout is the storage format for timestamps. RFC3339Nano is unusable
// here: it trims trailing fractional zeros, so "10:00:00.52Z" sorts before
// "10:00:00.5Z" under the lexicographic TEXT comparisons the queries rely
// on. Fixed-width nanoseconds keep string order chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// tradesColumns avoids SELECT * so scans stay stable across schema changes.
// Column order must match scanTrade.
const tradesColumns = `id, strategy_id, symbol, side, quantity, unit_price_foreign,
	unit_price_local, fx_rate_at_fill, commission, realized_gain_tax,
	total_cost_local, timestamp, notes`

// TradeRepository persists the append-only trade ledger. Rows are inserted
// once and never updated.
type TradeRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTradeRepository creates a new trade repository.
func NewTradeRepository(db *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		db:  db,
		log: log.With().Str("repo", "trade").Logger(),
	}
}

// Create inserts a new trade record and returns its ID. A missing ID is
// assigned here so callers can stay ignorant of ID generation.
func (r *TradeRepository) Create(ctx context.Context, trade models.Trade) (string, error) {
	if err := trade.Validate(); err != nil {
		return "", fmt.Errorf("failed to create trade: %w", err)
	}
	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}

	query := `
		INSERT INTO trades
		(id, strategy_id, symbol, side, quantity, unit_price_foreign,
		 unit_price_local, fx_rate_at_fill, commission, realized_gain_tax,
		 total_cost_local, timestamp, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		trade.ID,
		trade.StrategyID,
		trade.Symbol,
		string(trade.Side),
		trade.Quantity.String(),
		trade.UnitPriceForeign.String(),
		trade.UnitPriceLocal.String(),
		trade.FXRateAtFill.String(),
		trade.Commission.String(),
		trade.RealizedGainTax.String(),
		trade.TotalCostLocal.String(),
		trade.Timestamp.UTC().Format(timeLayout),
		trade.Notes,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create trade: %w", err)
	}

	r.log.Info().
		Str("trade_id", trade.ID).
		Str("strategy_id", trade.StrategyID).
		Str("symbol", trade.Symbol).
		Str("side", string(trade.Side)).
		Str("quantity", trade.Quantity.String()).
		Msg("Trade recorded")

	return trade.ID, nil
}

// GetByID retrieves a trade by its identifier. Returns nil when absent.
func (r *TradeRepository) GetByID(ctx context.Context, id string) (*models.Trade, error) {
	query := "SELECT " + tradesColumns + " FROM trades WHERE id = ?"

	trade, err := scanTrade(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return &trade, nil
}

// History retrieves trades for a strategy, most recent first. An empty
// strategyID returns trades across all strategies.
func (r *TradeRepository) History(ctx context.Context, strategyID string, limit int) ([]models.Trade, error) {
	query := "SELECT " + tradesColumns + " FROM trades"
	var args []any
	if strategyID != "" {
		query += " WHERE strategy_id = ?"
		args = append(args, strategyID)
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	return r.queryTrades(ctx, query, args...)
}

// ListForSymbolBefore retrieves every trade for (strategy, symbol) recorded
// strictly before the given instant, ordered by timestamp ascending. This is
// the input the ledger replays to reconstruct open FIFO lots.
func (r *TradeRepository) ListForSymbolBefore(ctx context.Context, strategyID, symbol string, before time.Time) ([]models.Trade, error) {
	query := `
		SELECT ` + tradesColumns + ` FROM trades
		WHERE strategy_id = ? AND symbol = ? AND timestamp < ?
		ORDER BY timestamp ASC
	`
	return r.queryTrades(ctx, query,
		strategyID,
		strings.ToUpper(strings.TrimSpace(symbol)),
		before.UTC().Format(timeLayout),
	)
}

// CountSince counts trades recorded for a strategy at or after the given
// instant. The executor uses it for the daily trade cap.
func (r *TradeRepository) CountSince(ctx context.Context, strategyID string, since time.Time) (int, error) {
	query := "SELECT COUNT(*) FROM trades WHERE strategy_id = ? AND timestamp >= ?"

	var count int
	err := r.db.QueryRowContext(ctx, query, strategyID, since.UTC().Format(timeLayout)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return count, nil
}

func (r *TradeRepository) queryTrades(ctx context.Context, query string, args ...any) ([]models.Trade, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}
	return trades, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(row rowScanner) (models.Trade, error) {
	var (
		t                             models.Trade
		side, qty, priceF, priceL, fx string
		commission, tax, total, ts    string
	)

	err := row.Scan(&t.ID, &t.StrategyID, &t.Symbol, &side, &qty, &priceF,
		&priceL, &fx, &commission, &tax, &total, &ts, &t.Notes)
	if err != nil {
		return t, err
	}

	t.Side = models.Side(side)
	if t.Quantity, err = decimal.NewFromString(qty); err != nil {
		return t, fmt.Errorf("bad quantity %q: %w", qty, err)
	}
	if t.UnitPriceForeign, err = decimal.NewFromString(priceF); err != nil {
		return t, fmt.Errorf("bad unit_price_foreign %q: %w", priceF, err)
	}
	if t.UnitPriceLocal, err = decimal.NewFromString(priceL); err != nil {
		return t, fmt.Errorf("bad unit_price_local %q: %w", priceL, err)
	}
	if t.FXRateAtFill, err = decimal.NewFromString(fx); err != nil {
		return t, fmt.Errorf("bad fx_rate_at_fill %q: %w", fx, err)
	}
	if t.Commission, err = decimal.NewFromString(commission); err != nil {
		return t, fmt.Errorf("bad commission %q: %w", commission, err)
	}
	if t.RealizedGainTax, err = decimal.NewFromString(tax); err != nil {
		return t, fmt.Errorf("bad realized_gain_tax %q: %w", tax, err)
	}
	if t.TotalCostLocal, err = decimal.NewFromString(total); err != nil {
		return t, fmt.Errorf("bad total_cost_local %q: %w", total, err)
	}
	if t.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
		return t, fmt.Errorf("bad timestamp %q: %w", ts, err)
	}
	return t, nil
}
