// Package executor turns external trade signals into recorded trades,
// enforcing the risk policy: position sizing, the daily trade cap, and
// per-strategy serialization of capital updates.
package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"paper_trading/internal/market"
	"paper_trading/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Rejection reasons. A rejected signal is a normal outcome, not an error:
// the caller gets a Result with Executed=false and one of these reasons.
const (
	ReasonUnknownStrategy     = "strategy not found"
	ReasonStrategyInactive    = "strategy is inactive"
	ReasonDailyCapReached     = "daily trade cap reached"
	ReasonInsufficientCapital = "insufficient capital for a single share"
	ReasonNoPositionToSell    = "no open position for symbol"
)

// StrategyStore reads and updates strategy books.
type StrategyStore interface {
	Get(ctx context.Context, id string) (*models.Strategy, error)
	UpdateCapital(ctx context.Context, id string, capital decimal.Decimal) error
}

// TradeCounter counts recorded trades for the daily cap check.
type TradeCounter interface {
	CountSince(ctx context.Context, strategyID string, since time.Time) (int, error)
}

// Ledger prices and persists the trade once the policy admits it.
type Ledger interface {
	RecordTrade(ctx context.Context, strategyID, symbol string, side models.Side, quantity, unitPriceForeign decimal.Decimal) (*models.Trade, error)
}

// PriceSource supplies the current quote used for position sizing.
type PriceSource interface {
	GetQuote(ctx context.Context, symbol string) (*market.Quote, error)
	GetFXRate(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

// PositionSource reports open holdings, used to size SELL orders.
type PositionSource interface {
	GetPositions(ctx context.Context) ([]models.Position, error)
}

// Notifier delivers trade notifications. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Config carries the execution policy constants.
type Config struct {
	MaxPositionFraction decimal.Decimal // Max share of capital committed per BUY
	CommissionRate      decimal.Decimal // Must match the ledger's rate for the sizing guard
	DailyTradeCap       int             // Max trades per strategy per day
	BaseCurrency        string
	LocalCurrency       string
	ReportingZone       *time.Location // Day boundary for the cap
}

// Result is the outcome of one signal execution attempt.
type Result struct {
	Executed bool          `json:"executed"`
	Trade    *models.Trade `json:"trade,omitempty"`
	Reason   string        `json:"reason,omitempty"` // Set when Executed is false
}

// Service is the signal execution controller.
type Service struct {
	strategies StrategyStore
	trades     TradeCounter
	ledger     Ledger
	prices     PriceSource
	positions  PositionSource
	notifier   Notifier
	cfg        Config
	log        zerolog.Logger

	now func() time.Time // Injectable clock for tests

	// Per-strategy locks serialize the capital read-modify-write so two
	// concurrent signals cannot both spend the same capital.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new signal execution controller. notifier may be nil
// when notifications are disabled.
func NewService(
	strategies StrategyStore,
	trades TradeCounter,
	ledger Ledger,
	prices PriceSource,
	positions PositionSource,
	notifier Notifier,
	cfg Config,
	log zerolog.Logger,
) *Service {
	if cfg.ReportingZone == nil {
		cfg.ReportingZone = time.UTC
	}
	return &Service{
		strategies: strategies,
		trades:     trades,
		ledger:     ledger,
		prices:     prices,
		positions:  positions,
		notifier:   notifier,
		cfg:        cfg,
		log:        log.With().Str("service", "executor").Logger(),
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
	}
}

// ExecuteSignal runs one signal through the policy gate and, if admitted,
// records the trade and adjusts the strategy's virtual capital. The whole
// sequence holds the strategy's lock, so capital checks and updates are
// atomic per strategy. Policy rejections return Executed=false with a
// Reason and a nil error; only infrastructure failures return errors.
func (s *Service) ExecuteSignal(ctx context.Context, sig models.Signal) (*Result, error) {
	symbol := strings.ToUpper(strings.TrimSpace(sig.Symbol))
	if sig.StrategyID == "" || symbol == "" {
		return nil, fmt.Errorf("signal requires strategy_id and symbol")
	}
	if !sig.Side.IsValid() {
		return nil, fmt.Errorf("invalid signal side: %q", sig.Side)
	}

	lock := s.strategyLock(sig.StrategyID)
	lock.Lock()
	defer lock.Unlock()

	strategy, err := s.strategies.Get(ctx, sig.StrategyID)
	if err != nil {
		return nil, fmt.Errorf("loading strategy %s: %w", sig.StrategyID, err)
	}
	if strategy == nil {
		return s.reject(sig, ReasonUnknownStrategy), nil
	}
	if !strategy.IsActive {
		return s.reject(sig, ReasonStrategyInactive), nil
	}

	count, err := s.trades.CountSince(ctx, sig.StrategyID, s.startOfDay())
	if err != nil {
		return nil, fmt.Errorf("counting today's trades: %w", err)
	}
	if count >= s.cfg.DailyTradeCap {
		return s.reject(sig, ReasonDailyCapReached), nil
	}

	quote, err := s.prices.GetQuote(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("quoting %s: %w", symbol, err)
	}
	fxRate, err := s.prices.GetFXRate(ctx, s.cfg.BaseCurrency, s.cfg.LocalCurrency)
	if err != nil {
		return nil, fmt.Errorf("fetching fx rate: %w", err)
	}

	var quantity decimal.Decimal
	switch sig.Side {
	case models.SideBuy:
		quantity = s.sizeBuy(strategy.VirtualCapital, quote.Price, fxRate)
		if quantity.LessThanOrEqual(decimal.Zero) {
			return s.reject(sig, ReasonInsufficientCapital), nil
		}
	case models.SideSell:
		quantity, err = s.sizeSell(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if quantity.LessThanOrEqual(decimal.Zero) {
			return s.reject(sig, ReasonNoPositionToSell), nil
		}
	}

	trade, err := s.ledger.RecordTrade(ctx, sig.StrategyID, symbol, sig.Side, quantity, quote.Price)
	if err != nil {
		return nil, fmt.Errorf("recording trade: %w", err)
	}

	capital := strategy.VirtualCapital
	if sig.Side == models.SideBuy {
		capital = capital.Sub(trade.TotalCostLocal)
	} else {
		capital = capital.Add(trade.TotalCostLocal)
	}
	if err := s.strategies.UpdateCapital(ctx, sig.StrategyID, capital); err != nil {
		// The trade is already in the ledger; surface the inconsistency
		// loudly instead of silently carrying a stale capital figure.
		return nil, fmt.Errorf("trade %s recorded but capital update failed: %w", trade.ID, err)
	}

	s.log.Info().
		Str("strategy_id", sig.StrategyID).
		Str("symbol", symbol).
		Str("side", string(sig.Side)).
		Str("quantity", quantity.String()).
		Str("capital_after", capital.String()).
		Int("trades_today", count+1).
		Msg("Signal executed")

	s.notify(ctx, strategy, sig, trade)

	return &Result{Executed: true, Trade: trade}, nil
}

// sizeBuy commits at most MaxPositionFraction of capital, in whole shares.
// Capital is held in the quote currency while quotes arrive in the listing
// currency, so the budget is divided by the converted price.
func (s *Service) sizeBuy(capital, priceForeign, fxRate decimal.Decimal) decimal.Decimal {
	priceLocal := priceForeign.Mul(fxRate)
	if priceLocal.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	budget := capital.Mul(s.cfg.MaxPositionFraction)
	quantity := budget.Div(priceLocal).Floor()

	// The debit is subtotal plus commission, so the guard must include
	// the commission too: at a fraction near 1 the subtotal alone can fit
	// the capital while the commission pushes the balance negative.
	one := decimal.NewFromInt(1)
	totalCost := quantity.Mul(priceLocal).Mul(one.Add(s.cfg.CommissionRate))
	if totalCost.GreaterThan(capital) {
		return decimal.Zero
	}
	return quantity
}

// sizeSell liquidates the full broker-reported holding for the symbol.
func (s *Service) sizeSell(ctx context.Context, symbol string) (decimal.Decimal, error) {
	positions, err := s.positions.GetPositions(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("loading positions: %w", err)
	}
	for _, p := range positions {
		if p.Symbol == symbol {
			return p.Quantity, nil
		}
	}
	return decimal.Zero, nil
}

// startOfDay is midnight today in the reporting zone, the boundary for the
// daily trade cap.
func (s *Service) startOfDay() time.Time {
	now := s.now().In(s.cfg.ReportingZone)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.cfg.ReportingZone)
}

func (s *Service) strategyLock(strategyID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[strategyID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[strategyID] = lock
	}
	return lock
}

func (s *Service) reject(sig models.Signal, reason string) *Result {
	s.log.Info().
		Str("strategy_id", sig.StrategyID).
		Str("symbol", sig.Symbol).
		Str("side", string(sig.Side)).
		Str("reason", reason).
		Msg("Signal rejected")
	return &Result{Executed: false, Reason: reason}
}

func (s *Service) notify(ctx context.Context, strategy *models.Strategy, sig models.Signal, trade *models.Trade) {
	if s.notifier == nil || !strategy.NotificationsEnabled {
		return
	}
	verb := "Bought"
	if trade.Side == models.SideSell {
		verb = "Sold"
	}
	text := fmt.Sprintf("%s %s %s @ %s (%s: %s %s, confidence %d%%)",
		verb, trade.Quantity, trade.Symbol, trade.UnitPriceLocal,
		strategy.Name, trade.TotalCostLocal, s.cfg.LocalCurrency, sig.ConfidenceScore)
	s.notifier.Notify(ctx, text)
}
