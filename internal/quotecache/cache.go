// Package quotecache de-duplicates market-data lookups behind a TTL so the
// engine stays under the upstream request-rate ceiling.
package quotecache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"paper_trading/internal/market"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Ensure the cache can stand in anywhere a provider is expected.
var _ market.Provider = (*Cache)(nil)

type entry struct {
	value     any
	fetchedAt time.Time
}

// Cache wraps a market.Provider with a mutex-guarded in-memory map keyed by
// function name + parameters. Entries expire after the TTL and are evicted
// lazily on the next lookup; there is no background sweep, so memory is
// bounded only by the number of distinct lookups over the process lifetime.
type Cache struct {
	provider   market.Provider
	ttl        time.Duration
	fxFallback decimal.Decimal
	log        zerolog.Logger

	mu      sync.Mutex
	entries map[string]entry

	now func() time.Time // Injectable clock for tests
}

// New constructs the cache. fxFallback is the degraded-mode FX rate returned
// when the feed is down; capital accounting must proceed even without a live
// FX feed.
func New(provider market.Provider, ttl time.Duration, fxFallback decimal.Decimal, log zerolog.Logger) *Cache {
	return &Cache{
		provider:   provider,
		ttl:        ttl,
		fxFallback: fxFallback,
		log:        log.With().Str("service", "quotecache").Logger(),
		entries:    make(map[string]entry),
		now:        time.Now,
	}
}

// lookup returns the cached value for key if it is fresher than the TTL,
// otherwise calls fetch once and stores the result. The fetch runs outside
// the lock; two concurrent first lookups for the same key may both hit the
// upstream, which is acceptable for a single-process paper-trading aid.
func (c *Cache) lookup(key string, fetch func() (any, error)) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if c.now().Sub(e.fetchedAt) < c.ttl {
			c.mu.Unlock()
			return e.value, nil
		}
		delete(c.entries, key) // Lazy eviction
	}
	c.mu.Unlock()

	value, err := fetch()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = entry{value: value, fetchedAt: c.now()}
	c.mu.Unlock()
	return value, nil
}

// GetQuote returns the cached last traded snapshot for a symbol.
func (c *Cache) GetQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	v, err := c.lookup(key("QUOTE", symbol), func() (any, error) {
		return c.provider.GetQuote(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	return v.(*market.Quote), nil
}

// GetFXRate returns the cached exchange rate. Unlike the other lookups,
// feed failures do not propagate: the configured fallback rate is returned
// so capital accounting can proceed in degraded mode. The fallback is not
// written into the cache, so a recovered feed is picked up on the next call
// rather than after a full TTL.
func (c *Cache) GetFXRate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	v, err := c.lookup(key("FX_RATE", base, quote), func() (any, error) {
		return c.provider.GetFXRate(ctx, base, quote)
	})
	if err != nil {
		c.log.Warn().
			Err(err).
			Str("base", base).
			Str("quote", quote).
			Str("fallback", c.fxFallback.String()).
			Msg("FX feed down, using fallback rate")
		return c.fxFallback, nil
	}
	return v.(decimal.Decimal), nil
}

// GetTimeSeries returns cached daily bars.
func (c *Cache) GetTimeSeries(ctx context.Context, symbol string, size int) ([]market.Bar, error) {
	v, err := c.lookup(key("TIME_SERIES", symbol, strconv.Itoa(size)), func() (any, error) {
		return c.provider.GetTimeSeries(ctx, symbol, size)
	})
	if err != nil {
		return nil, err
	}
	return v.([]market.Bar), nil
}

// GetRSI returns the cached RSI series.
func (c *Cache) GetRSI(ctx context.Context, symbol string) ([]market.IndicatorPoint, error) {
	return c.indicator(ctx, "RSI", symbol, c.provider.GetRSI)
}

// GetSMA returns the cached SMA series.
func (c *Cache) GetSMA(ctx context.Context, symbol string) ([]market.IndicatorPoint, error) {
	return c.indicator(ctx, "SMA", symbol, c.provider.GetSMA)
}

// GetMACD returns the cached MACD series.
func (c *Cache) GetMACD(ctx context.Context, symbol string) ([]market.IndicatorPoint, error) {
	return c.indicator(ctx, "MACD", symbol, c.provider.GetMACD)
}

// GetFundamentals returns the cached company overview.
func (c *Cache) GetFundamentals(ctx context.Context, symbol string) (*market.Fundamentals, error) {
	v, err := c.lookup(key("OVERVIEW", symbol), func() (any, error) {
		return c.provider.GetFundamentals(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	return v.(*market.Fundamentals), nil
}

func (c *Cache) indicator(
	ctx context.Context,
	function, symbol string,
	fetch func(context.Context, string) ([]market.IndicatorPoint, error),
) ([]market.IndicatorPoint, error) {
	v, err := c.lookup(key(function, symbol), func() (any, error) {
		return fetch(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	return v.([]market.IndicatorPoint), nil
}

// Len reports the number of live entries, stale ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func key(function string, params ...string) string {
	k := function
	for _, p := range params {
		k = fmt.Sprintf("%s:%s", k, p)
	}
	return k
}
