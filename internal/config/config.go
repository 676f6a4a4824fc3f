package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration. Money-related constants are kept
// as decimals so downstream fee math never round-trips through floats.
type Config struct {
	Version string

	LogLevel  string
	LogPretty bool
	Port      int
	DBPath    string

	// Accounting constants
	CommissionRate      decimal.Decimal // Charged on every trade (default 0.25%)
	TaxRate             decimal.Decimal // Charged on realized gain on SELL (default 10%)
	MaxPositionFraction decimal.Decimal // Max share of capital per BUY (default 20%)
	DailyTradeCap       int             // Max trades per strategy per day (default 5)

	// Currency model: trades are listed in BaseCurrency, accounted in
	// LocalCurrency. FXFallbackRate is the degraded-mode rate used when the
	// FX feed is down.
	BaseCurrency   string
	LocalCurrency  string
	FXFallbackRate decimal.Decimal

	// Market data
	QuoteTTL          time.Duration
	MarketDataBaseURL string
	MarketDataAPIKey  string

	// Collaborator credentials (features degrade when unset)
	TelegramBotToken string
	TelegramChatID   string

	// Scheduling
	ValuationPollMins int
	DailySummaryCron  string

	// Day boundary used for the daily trade cap.
	ReportingZone *time.Location
}

// Load initializes the configuration.
// It tries to read a .env file and falls back to system environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	zoneName := getEnv("REPORTING_TZ", "UTC")
	zone, err := time.LoadLocation(zoneName)
	if err != nil {
		log.Printf("Warning: Invalid REPORTING_TZ %q, using UTC", zoneName)
		zone = time.UTC
	}

	cfg := &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),
		Port:      getEnvAsInt("PORT", 8080),
		DBPath:    getEnv("DB_PATH", "data/paper_trading.db"),

		CommissionRate:      decimal.NewFromFloat(getEnvAsFloat64("COMMISSION_RATE", 0.0025)),
		TaxRate:             decimal.NewFromFloat(getEnvAsFloat64("CAPITAL_GAINS_TAX_RATE", 0.10)),
		MaxPositionFraction: decimal.NewFromFloat(getEnvAsFloat64("MAX_POSITION_FRACTION", 0.20)),
		DailyTradeCap:       getEnvAsInt("DAILY_TRADE_CAP", 5),

		BaseCurrency:   getEnv("BASE_CURRENCY", "USD"),
		LocalCurrency:  getEnv("LOCAL_CURRENCY", "MXN"),
		FXFallbackRate: decimal.NewFromFloat(getEnvAsFloat64("FX_FALLBACK_RATE", 20.0)),

		QuoteTTL:          time.Duration(getEnvAsInt("QUOTE_CACHE_TTL_SEC", 60)) * time.Second,
		MarketDataBaseURL: getEnv("MARKET_DATA_BASE_URL", "https://www.alphavantage.co/query"),
		MarketDataAPIKey:  getEnv("MARKET_DATA_API_KEY", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		ValuationPollMins: getEnvAsInt("VALUATION_POLL_MINS", 60),
		DailySummaryCron:  getEnv("DAILY_SUMMARY_CRON", "0 18 * * 1-5"),

		ReportingZone: zone,
	}

	if cfg.MarketDataAPIKey == "" {
		log.Println("Warning: MARKET_DATA_API_KEY not set, market data calls will be rejected upstream")
	}
	if cfg.TelegramBotToken == "" || cfg.TelegramChatID == "" {
		log.Println("Warning: Telegram credentials missing, notifications disabled")
	}

	return cfg
}

// Validate checks that tunable constants are within sane bounds.
func (c *Config) Validate() error {
	one := decimal.NewFromInt(1)
	if c.CommissionRate.IsNegative() || c.CommissionRate.GreaterThanOrEqual(one) {
		return fmt.Errorf("COMMISSION_RATE must be in [0, 1), got %s", c.CommissionRate)
	}
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThanOrEqual(one) {
		return fmt.Errorf("CAPITAL_GAINS_TAX_RATE must be in [0, 1), got %s", c.TaxRate)
	}
	if c.MaxPositionFraction.LessThanOrEqual(decimal.Zero) || c.MaxPositionFraction.GreaterThan(one) {
		return fmt.Errorf("MAX_POSITION_FRACTION must be in (0, 1], got %s", c.MaxPositionFraction)
	}
	if c.DailyTradeCap < 1 {
		return fmt.Errorf("DAILY_TRADE_CAP must be at least 1, got %d", c.DailyTradeCap)
	}
	if c.FXFallbackRate.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("FX_FALLBACK_RATE must be positive, got %s", c.FXFallbackRate)
	}
	if c.QuoteTTL <= 0 {
		return fmt.Errorf("QUOTE_CACHE_TTL_SEC must be positive, got %s", c.QuoteTTL)
	}
	return nil
}

// ReadVersion loads the build version from the given file, defaulting to a
// dev placeholder when the file is absent.
func ReadVersion(path string) string {
	version, err := os.ReadFile(path)
	if err != nil {
		return "v0.0.0-dev"
	}
	return strings.TrimSpace(string(version))
}
