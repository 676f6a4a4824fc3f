// Package alphavantage implements the market-data provider against the
// Alpha Vantage REST API. The free tier allows roughly 5 requests per
// minute; callers are expected to sit behind the quote cache.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"paper_trading/internal/market"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Ensure Client implements the interface
var _ market.Provider = (*Client)(nil)

// Client is an Alpha Vantage API client.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient returns a new Alpha Vantage client.
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "alphavantage").Logger(),
	}
}

// GetQuote fetches the latest traded price snapshot for a symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)

	payload, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	raw, ok := payload["Global Quote"].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty quote for %s", market.ErrUnavailable, symbol)
	}

	price, err := getDecimal(raw, "05. price")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrUnavailable, err)
	}

	q := &market.Quote{
		Symbol: symbol,
		Price:  price,
		Volume: getInt64(raw, "06. volume"),
	}
	// Secondary fields are best-effort; a quote without them is still usable.
	q.Open, _ = getDecimal(raw, "02. open")
	q.High, _ = getDecimal(raw, "03. high")
	q.Low, _ = getDecimal(raw, "04. low")
	q.PrevClose, _ = getDecimal(raw, "08. previous close")
	return q, nil
}

// GetFXRate fetches the current exchange rate between two currencies.
func (c *Client) GetFXRate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("function", "CURRENCY_EXCHANGE_RATE")
	params.Set("from_currency", base)
	params.Set("to_currency", quote)

	payload, err := c.get(ctx, params)
	if err != nil {
		return decimal.Zero, err
	}

	raw, ok := payload["Realtime Currency Exchange Rate"].(map[string]any)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: missing exchange rate block", market.ErrUnavailable)
	}

	rate, err := getDecimal(raw, "5. Exchange Rate")
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", market.ErrUnavailable, err)
	}
	return rate, nil
}

// GetTimeSeries fetches up to size daily bars, oldest first.
func (c *Client) GetTimeSeries(ctx context.Context, symbol string, size int) ([]market.Bar, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", symbol)
	outputSize := "compact"
	if size > 100 {
		outputSize = "full"
	}
	params.Set("outputsize", outputSize)

	payload, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	series, ok := payload["Time Series (Daily)"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing daily series for %s", market.ErrUnavailable, symbol)
	}

	bars := make([]market.Bar, 0, len(series))
	for dateStr, v := range series {
		fields, ok := v.(map[string]any)
		if !ok {
			continue
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		open, _ := getDecimal(fields, "1. open")
		high, _ := getDecimal(fields, "2. high")
		low, _ := getDecimal(fields, "3. low")
		closePx, _ := getDecimal(fields, "4. close")
		bars = append(bars, market.Bar{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePx,
			Volume: getInt64(fields, "5. volume"),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	if size > 0 && len(bars) > size {
		bars = bars[len(bars)-size:]
	}
	return bars, nil
}

// GetRSI fetches the daily relative strength index series.
func (c *Client) GetRSI(ctx context.Context, symbol string) ([]market.IndicatorPoint, error) {
	params := url.Values{}
	params.Set("function", "RSI")
	params.Set("symbol", symbol)
	params.Set("interval", "daily")
	params.Set("time_period", "14")
	params.Set("series_type", "close")
	return c.getIndicator(ctx, params, "Technical Analysis: RSI", "RSI")
}

// GetSMA fetches the daily simple moving average series.
func (c *Client) GetSMA(ctx context.Context, symbol string) ([]market.IndicatorPoint, error) {
	params := url.Values{}
	params.Set("function", "SMA")
	params.Set("symbol", symbol)
	params.Set("interval", "daily")
	params.Set("time_period", "20")
	params.Set("series_type", "close")
	return c.getIndicator(ctx, params, "Technical Analysis: SMA", "SMA")
}

// GetMACD fetches the daily MACD series.
func (c *Client) GetMACD(ctx context.Context, symbol string) ([]market.IndicatorPoint, error) {
	params := url.Values{}
	params.Set("function", "MACD")
	params.Set("symbol", symbol)
	params.Set("interval", "daily")
	params.Set("series_type", "close")
	return c.getIndicator(ctx, params, "Technical Analysis: MACD", "MACD")
}

// GetFundamentals fetches the company overview.
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (*market.Fundamentals, error) {
	params := url.Values{}
	params.Set("function", "OVERVIEW")
	params.Set("symbol", symbol)

	payload, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty overview for %s", market.ErrUnavailable, symbol)
	}

	f := &market.Fundamentals{
		Symbol:    symbol,
		Name:      getString(payload, "Name"),
		Sector:    getString(payload, "Sector"),
		MarketCap: getInt64(payload, "MarketCapitalization"),
	}
	f.PERatio, _ = getDecimal(payload, "PERatio")
	f.EPS, _ = getDecimal(payload, "EPS")
	return f, nil
}

func (c *Client) getIndicator(ctx context.Context, params url.Values, seriesKey, valueKey string) ([]market.IndicatorPoint, error) {
	payload, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	series, ok := payload[seriesKey].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q block", market.ErrUnavailable, seriesKey)
	}

	points := make([]market.IndicatorPoint, 0, len(series))
	for dateStr, v := range series {
		fields, ok := v.(map[string]any)
		if !ok {
			continue
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		value, err := getDecimal(fields, valueKey)
		if err != nil {
			continue
		}
		points = append(points, market.IndicatorPoint{Date: date, Value: value})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

// get performs one API request and decodes the JSON body. Upstream failures,
// including the rate-limit "Note" responses, are wrapped in ErrUnavailable.
func (c *Client) get(ctx context.Context, params url.Values) (map[string]any, error) {
	params.Set("apikey", c.apiKey)
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrUnavailable, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %s", market.ErrUnavailable, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrUnavailable, err)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrUnavailable, err)
	}

	// The API reports throttling and bad requests as 200s with a message field.
	if note, ok := payload["Note"].(string); ok {
		c.log.Warn().Str("note", note).Msg("Rate limited by market data API")
		return nil, fmt.Errorf("%w: rate limited", market.ErrUnavailable)
	}
	if msg, ok := payload["Error Message"].(string); ok {
		return nil, fmt.Errorf("%w: %s", market.ErrUnavailable, msg)
	}

	return payload, nil
}

// --- Parsing helpers ---

func getDecimal(m map[string]any, key string) (decimal.Decimal, error) {
	raw, ok := m[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("missing field %q", key)
	}
	switch v := raw.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: %v", key, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Zero, fmt.Errorf("field %q has unexpected type %T", key, raw)
	}
}

func getInt64(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func getString(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
