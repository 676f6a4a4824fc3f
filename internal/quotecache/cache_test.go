package quotecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"paper_trading/internal/market"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider tracks upstream calls per method.
type countingProvider struct {
	quoteCalls int
	fxCalls    int
	rsiCalls   int

	quoteErr error
	fxErr    error

	fxRate decimal.Decimal
}

func (p *countingProvider) GetQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	p.quoteCalls++
	if p.quoteErr != nil {
		return nil, p.quoteErr
	}
	return &market.Quote{Symbol: symbol, Price: decimal.NewFromInt(50)}, nil
}

func (p *countingProvider) GetFXRate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	p.fxCalls++
	if p.fxErr != nil {
		return decimal.Zero, p.fxErr
	}
	return p.fxRate, nil
}

func (p *countingProvider) GetTimeSeries(ctx context.Context, symbol string, size int) ([]market.Bar, error) {
	return nil, nil
}

func (p *countingProvider) GetRSI(ctx context.Context, symbol string) ([]market.IndicatorPoint, error) {
	p.rsiCalls++
	return []market.IndicatorPoint{{Value: decimal.NewFromInt(55)}}, nil
}

func (p *countingProvider) GetSMA(ctx context.Context, symbol string) ([]market.IndicatorPoint, error) {
	return nil, nil
}

func (p *countingProvider) GetMACD(ctx context.Context, symbol string) ([]market.IndicatorPoint, error) {
	return nil, nil
}

func (p *countingProvider) GetFundamentals(ctx context.Context, symbol string) (*market.Fundamentals, error) {
	return nil, nil
}

func newTestCache(p market.Provider) *Cache {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return New(p, 60*time.Second, decimal.NewFromFloat(20.0), log)
}

func TestGetQuote_SecondCallWithinTTLHitsCache(t *testing.T) {
	provider := &countingProvider{}
	cache := newTestCache(provider)
	ctx := context.Background()

	q1, err := cache.GetQuote(ctx, "SYM")
	require.NoError(t, err)
	q2, err := cache.GetQuote(ctx, "SYM")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.quoteCalls, "two calls within TTL must issue exactly one external call")
	assert.True(t, q1.Price.Equal(q2.Price))
}

func TestGetQuote_ExpiredEntryRefetches(t *testing.T) {
	provider := &countingProvider{}
	cache := newTestCache(provider)
	ctx := context.Background()

	current := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	_, err := cache.GetQuote(ctx, "SYM")
	require.NoError(t, err)

	// Still fresh just before the TTL boundary.
	current = current.Add(59 * time.Second)
	_, err = cache.GetQuote(ctx, "SYM")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.quoteCalls)

	// Past the TTL the entry is evicted and refetched.
	current = current.Add(2 * time.Second)
	_, err = cache.GetQuote(ctx, "SYM")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.quoteCalls)
}

func TestGetQuote_DistinctSymbolsAreDistinctEntries(t *testing.T) {
	provider := &countingProvider{}
	cache := newTestCache(provider)
	ctx := context.Background()

	_, err := cache.GetQuote(ctx, "AAA")
	require.NoError(t, err)
	_, err = cache.GetQuote(ctx, "BBB")
	require.NoError(t, err)

	assert.Equal(t, 2, provider.quoteCalls)
	assert.Equal(t, 2, cache.Len())
}

func TestGetQuote_UpstreamErrorPropagates(t *testing.T) {
	provider := &countingProvider{quoteErr: market.ErrUnavailable}
	cache := newTestCache(provider)

	_, err := cache.GetQuote(context.Background(), "SYM")
	require.Error(t, err)
	assert.True(t, errors.Is(err, market.ErrUnavailable))
}

func TestGetFXRate_FeedFailureFallsBack(t *testing.T) {
	provider := &countingProvider{fxErr: market.ErrUnavailable}
	cache := newTestCache(provider)

	rate, err := cache.GetFXRate(context.Background(), "USD", "MXN")
	require.NoError(t, err, "FX lookups degrade instead of failing")
	assert.True(t, rate.Equal(decimal.NewFromFloat(20.0)))
}

func TestGetFXRate_FallbackIsNotCached(t *testing.T) {
	provider := &countingProvider{fxErr: market.ErrUnavailable}
	cache := newTestCache(provider)
	ctx := context.Background()

	_, err := cache.GetFXRate(ctx, "USD", "MXN")
	require.NoError(t, err)

	// Feed recovers; the next call must reach upstream, not serve the fallback.
	provider.fxErr = nil
	provider.fxRate = decimal.NewFromFloat(19.5)

	rate, err := cache.GetFXRate(ctx, "USD", "MXN")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromFloat(19.5)))
	assert.Equal(t, 2, provider.fxCalls)
}

func TestGetFXRate_SuccessIsCached(t *testing.T) {
	provider := &countingProvider{fxRate: decimal.NewFromFloat(19.9)}
	cache := newTestCache(provider)
	ctx := context.Background()

	r1, err := cache.GetFXRate(ctx, "USD", "MXN")
	require.NoError(t, err)
	r2, err := cache.GetFXRate(ctx, "USD", "MXN")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.fxCalls)
	assert.True(t, r1.Equal(r2))
}

func TestIndicatorLookupsShareTheCache(t *testing.T) {
	provider := &countingProvider{}
	cache := newTestCache(provider)
	ctx := context.Background()

	_, err := cache.GetRSI(ctx, "SYM")
	require.NoError(t, err)
	_, err = cache.GetRSI(ctx, "SYM")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.rsiCalls)
}
