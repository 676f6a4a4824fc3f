package config

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Ensure tunables are unset so defaults apply.
	optionals := []string{
		"COMMISSION_RATE",
		"CAPITAL_GAINS_TAX_RATE",
		"MAX_POSITION_FRACTION",
		"DAILY_TRADE_CAP",
		"QUOTE_CACHE_TTL_SEC",
		"FX_FALLBACK_RATE",
		"BASE_CURRENCY",
		"LOCAL_CURRENCY",
		"REPORTING_TZ",
	}
	for _, k := range optionals {
		os.Unsetenv(k)
	}

	cfg := Load()

	assert.True(t, cfg.CommissionRate.Equal(decimal.NewFromFloat(0.0025)))
	assert.True(t, cfg.TaxRate.Equal(decimal.NewFromFloat(0.10)))
	assert.True(t, cfg.MaxPositionFraction.Equal(decimal.NewFromFloat(0.20)))
	assert.Equal(t, 5, cfg.DailyTradeCap)
	assert.Equal(t, 60*time.Second, cfg.QuoteTTL)
	assert.True(t, cfg.FXFallbackRate.Equal(decimal.NewFromFloat(20.0)))
	assert.Equal(t, "USD", cfg.BaseCurrency)
	assert.Equal(t, "MXN", cfg.LocalCurrency)
	assert.Equal(t, time.UTC, cfg.ReportingZone)

	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	os.Setenv("COMMISSION_RATE", "0.001")
	os.Setenv("DAILY_TRADE_CAP", "3")
	os.Setenv("QUOTE_CACHE_TTL_SEC", "30")
	defer func() {
		os.Unsetenv("COMMISSION_RATE")
		os.Unsetenv("DAILY_TRADE_CAP")
		os.Unsetenv("QUOTE_CACHE_TTL_SEC")
	}()

	cfg := Load()

	assert.True(t, cfg.CommissionRate.Equal(decimal.NewFromFloat(0.001)))
	assert.Equal(t, 3, cfg.DailyTradeCap)
	assert.Equal(t, 30*time.Second, cfg.QuoteTTL)
}

func TestValidate_RejectsBadRates(t *testing.T) {
	cfg := Load()

	cfg.CommissionRate = decimal.NewFromInt(1)
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.MaxPositionFraction = decimal.Zero
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.DailyTradeCap = 0
	assert.Error(t, cfg.Validate())
}
