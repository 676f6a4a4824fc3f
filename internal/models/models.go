package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the trade direction (BUY or SELL).
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// IsValid checks if the side is one of the two supported directions.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// SideFromString parses a side from user input (case-insensitive).
func SideFromString(value string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	default:
		return "", fmt.Errorf("invalid trade side: %q", value)
	}
}

// Strategy identifies a trading book. VirtualCapital is the only mutable
// field after creation; strategies are deactivated, never deleted.
type Strategy struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	VirtualCapital       decimal.Decimal `json:"virtual_capital"` // Quote currency
	IsActive             bool            `json:"is_active"`
	NotificationsEnabled bool            `json:"notifications_enabled"`
	CreatedAt            time.Time       `json:"created_at"`
}

// Trade is an immutable fact once created. The ledger is append-only:
// records are never mutated after insertion.
//
// Sign convention for TotalCostLocal differs by side:
//   - BUY:  subtotal + commission (cash out)
//   - SELL: subtotal - commission - tax (net proceeds, cash in)
type Trade struct {
	ID               string          `json:"id"`
	StrategyID       string          `json:"strategy_id"`
	Symbol           string          `json:"symbol"`
	Side             Side            `json:"side"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPriceForeign decimal.Decimal `json:"unit_price_foreign"` // Listing currency
	UnitPriceLocal   decimal.Decimal `json:"unit_price_local"`   // Quote currency
	FXRateAtFill     decimal.Decimal `json:"fx_rate_at_fill"`
	Commission       decimal.Decimal `json:"commission"`
	RealizedGainTax  decimal.Decimal `json:"realized_gain_tax"`
	TotalCostLocal   decimal.Decimal `json:"total_cost_local"`
	Timestamp        time.Time       `json:"timestamp"`
	Notes            string          `json:"notes,omitempty"`
}

// Validate checks trade fields and normalizes the symbol.
func (t *Trade) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if !t.Side.IsValid() {
		return fmt.Errorf("invalid trade side: %q", t.Side)
	}
	if t.Quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("quantity must be positive")
	}
	if t.UnitPriceForeign.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("unit price must be positive")
	}
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
	return nil
}

// Signal is an external recommendation to buy or sell a symbol.
// Consumed once per execution attempt, never persisted by the engine.
type Signal struct {
	StrategyID      string `json:"strategy_id"`
	Symbol          string `json:"symbol"`
	Side            Side   `json:"side"`
	ConfidenceScore int    `json:"confidence_score"` // 0-100
	CompanyName     string `json:"company_name,omitempty"`
}

// RawHolding is a position as reported by the broker, priced in the
// listing (foreign) currency. The broker is authoritative for current
// holdings; it is deliberately not reconciled with the trade ledger.
type RawHolding struct {
	Symbol               string          `json:"symbol"`
	Quantity             decimal.Decimal `json:"quantity"`
	AvgEntryPriceForeign decimal.Decimal `json:"avg_entry_price"`
	CurrentPriceForeign  decimal.Decimal `json:"current_price"`
}

// Position is a derived projection of a RawHolding valued in the quote
// currency. Recomputed on every valuation request, never stored.
type Position struct {
	Symbol                string          `json:"symbol"`
	Quantity              decimal.Decimal `json:"quantity"`
	AvgEntryPriceForeign  decimal.Decimal `json:"avg_entry_price_foreign"`
	CurrentPriceForeign   decimal.Decimal `json:"current_price_foreign"`
	AvgEntryPriceLocal    decimal.Decimal `json:"avg_entry_price_local"`
	CurrentPriceLocal     decimal.Decimal `json:"current_price_local"`
	TotalValueLocal       decimal.Decimal `json:"total_value_local"`
	TotalCostLocal        decimal.Decimal `json:"total_cost_local"`
	UnrealizedGainLocal   decimal.Decimal `json:"unrealized_gain_local"`
	UnrealizedGainPercent decimal.Decimal `json:"unrealized_gain_percent"`
}

// PositionSummary aggregates valuation across all positions. Totals are
// computed by summation, not by re-deriving from per-position percentages.
type PositionSummary struct {
	PositionCount         int             `json:"position_count"`
	TotalValueLocal       decimal.Decimal `json:"total_value_local"`
	TotalCostLocal        decimal.Decimal `json:"total_cost_local"`
	UnrealizedGainLocal   decimal.Decimal `json:"unrealized_gain_local"`
	UnrealizedGainPercent decimal.Decimal `json:"unrealized_gain_percent"`
}

// Account is the broker-reported account state.
type Account struct {
	ID       string          `json:"id"`
	Currency string          `json:"currency"`
	Equity   decimal.Decimal `json:"equity"`
	Cash     decimal.Decimal `json:"cash"`
}
