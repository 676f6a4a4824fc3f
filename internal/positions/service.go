// Package positions derives live position valuations from broker-reported
// holdings and the current FX rate. Positions are a projection: recomputed
// on every request, never stored.
package positions

import (
	"context"

	"paper_trading/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// HoldingsSource is the slice of the broker collaborator the valuator needs.
type HoldingsSource interface {
	Positions(ctx context.Context) ([]models.RawHolding, error)
}

// RateSource supplies the FX rate, normally via the quote cache.
type RateSource interface {
	GetFXRate(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

var hundred = decimal.NewFromInt(100)

// Service is the position valuator.
type Service struct {
	broker HoldingsSource
	rates  RateSource
	base   string
	local  string
	log    zerolog.Logger
}

// NewService creates a new position valuator.
func NewService(broker HoldingsSource, rates RateSource, baseCurrency, localCurrency string, log zerolog.Logger) *Service {
	return &Service{
		broker: broker,
		rates:  rates,
		base:   baseCurrency,
		local:  localCurrency,
		log:    log.With().Str("service", "positions").Logger(),
	}
}

// GetPositions values every broker holding in the quote currency. The FX
// rate is fetched once per call batch, not once per symbol, to keep cost
// bounded. Broker failures degrade to an empty list: valuation is
// best-effort display data, unlike the ledger's strict accounting.
func (s *Service) GetPositions(ctx context.Context) ([]models.Position, error) {
	holdings, err := s.broker.Positions(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Broker unavailable, returning empty position list")
		return []models.Position{}, nil
	}

	fxRate, err := s.rates.GetFXRate(ctx, s.base, s.local)
	if err != nil {
		// The quote cache degrades FX failures to a fallback rate, so this
		// only triggers with a raw provider wired in directly.
		s.log.Warn().Err(err).Msg("FX rate unavailable, returning empty position list")
		return []models.Position{}, nil
	}

	positions := make([]models.Position, 0, len(holdings))
	for _, h := range holdings {
		positions = append(positions, value(h, fxRate))
	}
	return positions, nil
}

// GetSummary aggregates valuation across all positions by summation.
// Percentages are derived from the summed totals, never by averaging
// per-position percentages, which would weight them incorrectly.
func (s *Service) GetSummary(ctx context.Context) (*models.PositionSummary, error) {
	positions, err := s.GetPositions(ctx)
	if err != nil {
		return nil, err
	}

	summary := &models.PositionSummary{PositionCount: len(positions)}
	for _, p := range positions {
		summary.TotalValueLocal = summary.TotalValueLocal.Add(p.TotalValueLocal)
		summary.TotalCostLocal = summary.TotalCostLocal.Add(p.TotalCostLocal)
	}
	summary.UnrealizedGainLocal = summary.TotalValueLocal.Sub(summary.TotalCostLocal)
	summary.UnrealizedGainPercent = gainPercent(summary.UnrealizedGainLocal, summary.TotalCostLocal)
	return summary, nil
}

// value converts one raw holding into a local-currency position.
func value(h models.RawHolding, fxRate decimal.Decimal) models.Position {
	avgEntryLocal := h.AvgEntryPriceForeign.Mul(fxRate)
	currentLocal := h.CurrentPriceForeign.Mul(fxRate)
	totalValue := currentLocal.Mul(h.Quantity)
	totalCost := avgEntryLocal.Mul(h.Quantity)
	gain := totalValue.Sub(totalCost)

	return models.Position{
		Symbol:                h.Symbol,
		Quantity:              h.Quantity,
		AvgEntryPriceForeign:  h.AvgEntryPriceForeign,
		CurrentPriceForeign:   h.CurrentPriceForeign,
		AvgEntryPriceLocal:    avgEntryLocal,
		CurrentPriceLocal:     currentLocal,
		TotalValueLocal:       totalValue,
		TotalCostLocal:        totalCost,
		UnrealizedGainLocal:   gain,
		UnrealizedGainPercent: gainPercent(gain, totalCost),
	}
}

// gainPercent guards the zero-cost case: a position with no cost basis
// reports 0% rather than dividing by zero.
func gainPercent(gain, cost decimal.Decimal) decimal.Decimal {
	if cost.IsZero() {
		return decimal.Zero
	}
	return gain.Div(cost).Mul(hundred)
}
