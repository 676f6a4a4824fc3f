package market

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnavailable indicates the market-data feed failed or rate-limited the
// request. Callers may retry with backoff; the quote cache degrades FX rate
// lookups to a fallback constant instead of surfacing this error.
var ErrUnavailable = errors.New("market data unavailable")

// Quote is the last traded snapshot for a symbol, priced in the listing
// (foreign) currency.
type Quote struct {
	Symbol    string
	Price     decimal.Decimal
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	PrevClose decimal.Decimal
	Volume    int64
}

// Bar is a daily candlestick.
type Bar struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// IndicatorPoint is one dated value of a technical indicator series.
type IndicatorPoint struct {
	Date  time.Time
	Value decimal.Decimal
}

// Fundamentals carries company overview figures.
type Fundamentals struct {
	Symbol    string
	Name      string
	Sector    string
	PERatio   decimal.Decimal
	EPS       decimal.Decimal
	MarketCap int64
}

// Provider is an Interface.
// Interfaces define *behavior*. Any struct that implements these methods
// satisfies the interface. This allows us to swap the HTTP feed for the
// caching layer, or a mock for testing, without changing the code that
// *uses* the provider. The upstream feed enforces a request-rate ceiling
// (roughly 5 requests per minute), which is why every consumer goes
// through the quote cache rather than hitting an implementation directly.
type Provider interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetFXRate(ctx context.Context, base, quote string) (decimal.Decimal, error)
	GetTimeSeries(ctx context.Context, symbol string, size int) ([]Bar, error)
	GetRSI(ctx context.Context, symbol string) ([]IndicatorPoint, error)
	GetSMA(ctx context.Context, symbol string) ([]IndicatorPoint, error)
	GetMACD(ctx context.Context, symbol string) ([]IndicatorPoint, error)
	GetFundamentals(ctx context.Context, symbol string) (*Fundamentals, error)
}
