// Package ledger turns raw fills into fully priced, persisted trade
// records: currency conversion, commission, and FIFO realized-gain tax.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paper_trading/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TradeStore is the slice of the persistence collaborator the ledger needs.
type TradeStore interface {
	Create(ctx context.Context, trade models.Trade) (string, error)
	ListForSymbolBefore(ctx context.Context, strategyID, symbol string, before time.Time) ([]models.Trade, error)
}

// RateSource supplies the FX rate used to convert listing-currency prices
// into the quote currency. In production this is the quote cache, which
// never fails an FX lookup (it degrades to a fallback rate instead).
type RateSource interface {
	GetFXRate(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

// Config carries the accounting constants.
type Config struct {
	CommissionRate decimal.Decimal // Charged on every trade, both sides
	TaxRate        decimal.Decimal // Charged on realized gain on SELL only
	BaseCurrency   string
	LocalCurrency  string
}

// Service is the fee & ledger engine.
type Service struct {
	trades TradeStore
	rates  RateSource
	cfg    Config
	log    zerolog.Logger

	now func() time.Time // Injectable clock for tests
}

// NewService creates a new ledger service.
func NewService(trades TradeStore, rates RateSource, cfg Config, log zerolog.Logger) *Service {
	return &Service{
		trades: trades,
		rates:  rates,
		cfg:    cfg,
		log:    log.With().Str("service", "ledger").Logger(),
		now:    time.Now,
	}
}

// RecordTrade prices a raw fill and appends it to the ledger.
//
// Pricing:
//
//	unitPriceLocal = unitPriceForeign * fxRate
//	subtotal       = unitPriceLocal * quantity
//	commission     = subtotal * commissionRate          (both sides)
//	tax            = max(0, realizedGain) * taxRate     (SELL only)
//
// TotalCostLocal is cash out for a BUY (subtotal + commission) and net
// proceeds for a SELL (subtotal - commission - tax).
//
// Realized gain on a SELL consumes open buy lots oldest-first. Lots are
// reconstructed from the strategy's prior trades for the symbol; when they
// cannot cover the sell quantity, consumption is clamped to what exists and
// the uncovered remainder realizes no gain (and attracts no tax).
func (s *Service) RecordTrade(
	ctx context.Context,
	strategyID, symbol string,
	side models.Side,
	quantity, unitPriceForeign decimal.Decimal,
) (*models.Trade, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: quantity must be positive, got %s", ErrInvalidTradeInput, quantity)
	}
	if unitPriceForeign.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: unit price must be positive, got %s", ErrInvalidTradeInput, unitPriceForeign)
	}
	if !side.IsValid() {
		return nil, fmt.Errorf("%w: invalid side %q", ErrInvalidTradeInput, side)
	}

	// Normalize once so the lot replay, the stored row and the returned
	// trade all see the same symbol.
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol cannot be empty", ErrInvalidTradeInput)
	}

	fxRate, err := s.rates.GetFXRate(ctx, s.cfg.BaseCurrency, s.cfg.LocalCurrency)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	unitPriceLocal := unitPriceForeign.Mul(fxRate)
	subtotal := unitPriceLocal.Mul(quantity)
	commission := subtotal.Mul(s.cfg.CommissionRate)

	tax := decimal.Zero
	total := subtotal.Add(commission)

	if side == models.SideSell {
		realizedGain, err := s.realizedGain(ctx, strategyID, symbol, quantity, unitPriceLocal, now)
		if err != nil {
			return nil, err
		}
		if realizedGain.IsPositive() {
			tax = realizedGain.Mul(s.cfg.TaxRate)
		}
		total = subtotal.Sub(commission).Sub(tax)
	}

	trade := models.Trade{
		StrategyID:       strategyID,
		Symbol:           symbol,
		Side:             side,
		Quantity:         quantity,
		UnitPriceForeign: unitPriceForeign,
		UnitPriceLocal:   unitPriceLocal,
		FXRateAtFill:     fxRate,
		Commission:       commission,
		RealizedGainTax:  tax,
		TotalCostLocal:   total,
		Timestamp:        now,
	}

	id, err := s.trades.Create(ctx, trade)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	trade.ID = id

	s.log.Info().
		Str("trade_id", trade.ID).
		Str("strategy_id", strategyID).
		Str("symbol", trade.Symbol).
		Str("side", string(side)).
		Str("quantity", quantity.String()).
		Str("unit_price_local", unitPriceLocal.String()).
		Str("commission", commission.String()).
		Str("tax", tax.String()).
		Str("total_cost_local", total.String()).
		Msg("Trade priced and recorded")

	return &trade, nil
}

// realizedGain computes the FIFO gain for a SELL against open lots built
// from trades recorded strictly before the sell's timestamp.
func (s *Service) realizedGain(
	ctx context.Context,
	strategyID, symbol string,
	quantity, unitPriceLocal decimal.Decimal,
	before time.Time,
) (decimal.Decimal, error) {
	history, err := s.trades.ListForSymbolBefore(ctx, strategyID, symbol, before)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	lots := openLots(history)
	consumed, basis := costBasis(lots, quantity)
	if consumed.LessThan(quantity) {
		s.log.Warn().
			Str("strategy_id", strategyID).
			Str("symbol", symbol).
			Str("sell_quantity", quantity.String()).
			Str("covered_quantity", consumed.String()).
			Msg("Sell exceeds tracked lots, gain clamped to covered quantity")
	}

	// Gain covers only the consumed quantity; the uncovered remainder has
	// unknown basis and realizes nothing.
	return unitPriceLocal.Mul(consumed).Sub(basis), nil
}
