package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paper_trading/internal/bot"
	brokeralpaca "paper_trading/internal/broker/alpaca"
	"paper_trading/internal/config"
	"paper_trading/internal/executor"
	"paper_trading/internal/ledger"
	"paper_trading/internal/logger"
	"paper_trading/internal/market/alphavantage"
	"paper_trading/internal/positions"
	"paper_trading/internal/quotecache"
	"paper_trading/internal/server"
	"paper_trading/internal/storage"
	"paper_trading/internal/telegram"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const versionFile = "version.latest"

func main() {
	cfg := config.Load()
	cfg.Version = config.ReadVersion(versionFile)

	log := logger.Setup(cfg.LogLevel, cfg.LogPretty)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open database")
	}
	defer db.Close()

	tradeRepo := storage.NewTradeRepository(db, log)
	strategyRepo := storage.NewStrategyRepository(db, log)

	// Market data, wrapped in the caching layer. Everything downstream
	// talks to the cache, never to the feed directly.
	feed := alphavantage.NewClient(cfg.MarketDataBaseURL, cfg.MarketDataAPIKey, log)
	quotes := quotecache.New(feed, cfg.QuoteTTL, cfg.FXFallbackRate, log)

	// Core services
	ledgerSvc := ledger.NewService(tradeRepo, quotes, ledger.Config{
		CommissionRate: cfg.CommissionRate,
		TaxRate:        cfg.TaxRate,
		BaseCurrency:   cfg.BaseCurrency,
		LocalCurrency:  cfg.LocalCurrency,
	}, log)

	brokerClient := brokeralpaca.NewProvider()
	positionSvc := positions.NewService(brokerClient, quotes, cfg.BaseCurrency, cfg.LocalCurrency, log)

	notifier := telegram.NewClient(cfg.TelegramBotToken, cfg.TelegramChatID, log)

	executorSvc := executor.NewService(
		strategyRepo, tradeRepo, ledgerSvc, quotes, positionSvc, notifier,
		executor.Config{
			MaxPositionFraction: cfg.MaxPositionFraction,
			CommissionRate:      cfg.CommissionRate,
			DailyTradeCap:       cfg.DailyTradeCap,
			BaseCurrency:        cfg.BaseCurrency,
			LocalCurrency:       cfg.LocalCurrency,
			ReportingZone:       cfg.ReportingZone,
		}, log)

	// Telegram command listener
	commands := bot.NewHandler(positionSvc, strategyRepo, cfg.Version, log)
	listener := telegram.NewListener(notifier, commands.Handle)
	go listener.Run(ctx)

	// Scheduled jobs
	scheduler := cron.New()
	pollSpec := fmt.Sprintf("@every %dm", cfg.ValuationPollMins)
	if _, err := scheduler.AddFunc(pollSpec, func() {
		logValuation(ctx, positionSvc, log)
	}); err != nil {
		log.Fatal().Err(err).Str("spec", pollSpec).Msg("Failed to schedule valuation poll")
	}
	if _, err := scheduler.AddFunc(cfg.DailySummaryCron, func() {
		sendDailySummary(ctx, commands, notifier)
	}); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.DailySummaryCron).Msg("Failed to schedule daily summary")
	}
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP API
	api := server.New(positionSvc, tradeRepo, strategyRepo, executorSvc, cfg.Version, log)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Str("version", cfg.Version).Msg("Paper engine started")
		notifier.Notify(ctx, fmt.Sprintf("Paper Engine %s started", cfg.Version))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	notifier.Notify(shutdownCtx, "Paper Engine stopped")
}

// logValuation emits a periodic valuation snapshot to the log.
func logValuation(ctx context.Context, positionSvc *positions.Service, log zerolog.Logger) {
	summary, err := positionSvc.GetSummary(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Valuation poll failed")
		return
	}
	log.Info().
		Int("positions", summary.PositionCount).
		Str("total_value", summary.TotalValueLocal.StringFixed(2)).
		Str("unrealized_gain", summary.UnrealizedGainLocal.StringFixed(2)).
		Str("unrealized_pct", summary.UnrealizedGainPercent.StringFixed(2)).
		Msg("Portfolio valuation")
}

// sendDailySummary pushes the end-of-day portfolio report to Telegram.
func sendDailySummary(ctx context.Context, commands *bot.Handler, notifier *telegram.Client) {
	report := commands.Handle(ctx, "/summary")
	if report != "" {
		notifier.Notify(ctx, report)
	}
}
