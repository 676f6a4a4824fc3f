package storage

import (
	"context"
	"testing"
	"time"

	"paper_trading/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) (*TradeRepository, *StrategyRepository) {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewTradeRepository(db, log), NewStrategyRepository(db, log)
}

func sampleTrade(strategyID, symbol string, side models.Side, ts time.Time) models.Trade {
	return models.Trade{
		StrategyID:       strategyID,
		Symbol:           symbol,
		Side:             side,
		Quantity:         decimal.NewFromInt(10),
		UnitPriceForeign: decimal.NewFromFloat(2.5),
		UnitPriceLocal:   decimal.NewFromInt(50),
		FXRateAtFill:     decimal.NewFromInt(20),
		Commission:       decimal.NewFromFloat(1.25),
		RealizedGainTax:  decimal.Zero,
		TotalCostLocal:   decimal.NewFromFloat(501.25),
		Timestamp:        ts,
	}
}

func TestTradeRepository_CreateAndGet(t *testing.T) {
	trades, _ := openTestDB(t)
	ctx := context.Background()

	ts := time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)
	id, err := trades.Create(ctx, sampleTrade("strat-1", "aapl", models.SideBuy, ts))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := trades.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)

	// Symbol is normalized on insert; decimals round-trip exactly.
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, models.SideBuy, got.Side)
	assert.True(t, got.UnitPriceLocal.Equal(decimal.NewFromInt(50)))
	assert.True(t, got.TotalCostLocal.Equal(decimal.NewFromFloat(501.25)))
	assert.True(t, got.Timestamp.Equal(ts))
}

func TestTradeRepository_GetByID_Missing(t *testing.T) {
	trades, _ := openTestDB(t)

	got, err := trades.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTradeRepository_CreateRejectsInvalid(t *testing.T) {
	trades, _ := openTestDB(t)

	bad := sampleTrade("strat-1", "AAPL", models.SideBuy, time.Now())
	bad.Quantity = decimal.Zero

	_, err := trades.Create(context.Background(), bad)
	assert.Error(t, err)
}

func TestTradeRepository_ListForSymbolBefore(t *testing.T) {
	trades, _ := openTestDB(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	for i, side := range []models.Side{models.SideBuy, models.SideBuy, models.SideSell} {
		_, err := trades.Create(ctx, sampleTrade("strat-1", "AAPL", side, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	// Different symbol and strategy must not leak in.
	_, err := trades.Create(ctx, sampleTrade("strat-1", "MSFT", models.SideBuy, base))
	require.NoError(t, err)
	_, err = trades.Create(ctx, sampleTrade("strat-2", "AAPL", models.SideBuy, base))
	require.NoError(t, err)

	// Cutoff excludes the SELL at base+2h.
	got, err := trades.ListForSymbolBefore(ctx, "strat-1", "AAPL", base.Add(90*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp), "ordered ascending")
	for _, trade := range got {
		assert.Equal(t, models.SideBuy, trade.Side)
	}
}

func TestTradeRepository_SubsecondTimestampsSortChronologically(t *testing.T) {
	trades, _ := openTestDB(t)
	ctx := context.Background()

	// 10:00:00.52 is chronologically after 10:00:00.5, but a format that
	// trims trailing fractional zeros sorts "0.52" before "0.5" as TEXT.
	// The stored format must keep string order chronological.
	earlier := time.Date(2024, 6, 3, 10, 0, 0, 500_000_000, time.UTC)
	later := time.Date(2024, 6, 3, 10, 0, 0, 520_000_000, time.UTC)

	_, err := trades.Create(ctx, sampleTrade("strat-1", "AAPL", models.SideSell, later))
	require.NoError(t, err)
	_, err = trades.Create(ctx, sampleTrade("strat-1", "AAPL", models.SideBuy, earlier))
	require.NoError(t, err)

	got, err := trades.ListForSymbolBefore(ctx, "strat-1", "AAPL", later.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Timestamp.Equal(earlier), "got[0] = %s", got[0].Timestamp)
	assert.True(t, got[1].Timestamp.Equal(later), "got[1] = %s", got[1].Timestamp)
	assert.Equal(t, models.SideBuy, got[0].Side, "the BUY must replay before the SELL")

	// The cutoff comparison must agree with the same ordering: a cutoff
	// between the two fractional instants keeps only the earlier trade.
	got, err = trades.ListForSymbolBefore(ctx, "strat-1", "AAPL", time.Date(2024, 6, 3, 10, 0, 0, 510_000_000, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Timestamp.Equal(earlier))

	count, err := trades.CountSince(ctx, "strat-1", time.Date(2024, 6, 3, 10, 0, 0, 510_000_000, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTradeRepository_CountSince(t *testing.T) {
	trades, _ := openTestDB(t)
	ctx := context.Background()

	midnight := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	_, err := trades.Create(ctx, sampleTrade("strat-1", "AAPL", models.SideBuy, midnight.Add(-time.Hour)))
	require.NoError(t, err)
	_, err = trades.Create(ctx, sampleTrade("strat-1", "AAPL", models.SideBuy, midnight.Add(time.Hour)))
	require.NoError(t, err)
	_, err = trades.Create(ctx, sampleTrade("strat-1", "MSFT", models.SideSell, midnight.Add(2*time.Hour)))
	require.NoError(t, err)

	count, err := trades.CountSince(ctx, "strat-1", midnight)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "yesterday's trade must not count")
}

func TestStrategyRepository_Lifecycle(t *testing.T) {
	_, strategies := openTestDB(t)
	ctx := context.Background()

	id, err := strategies.Create(ctx, models.Strategy{
		Name:                 "momentum",
		VirtualCapital:       decimal.NewFromInt(10000),
		IsActive:             true,
		NotificationsEnabled: true,
	})
	require.NoError(t, err)

	s, err := strategies.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "momentum", s.Name)
	assert.True(t, s.VirtualCapital.Equal(decimal.NewFromInt(10000)))
	assert.True(t, s.IsActive)
	assert.True(t, s.NotificationsEnabled)

	require.NoError(t, strategies.UpdateCapital(ctx, id, decimal.NewFromFloat(7995)))
	require.NoError(t, strategies.SetActive(ctx, id, false))

	s, err = strategies.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, s.VirtualCapital.Equal(decimal.NewFromFloat(7995)))
	assert.False(t, s.IsActive)
}

func TestStrategyRepository_GetMissingIsNil(t *testing.T) {
	_, strategies := openTestDB(t)

	s, err := strategies.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestStrategyRepository_UpdateCapitalMissing(t *testing.T) {
	_, strategies := openTestDB(t)

	err := strategies.UpdateCapital(context.Background(), "nope", decimal.NewFromInt(1))
	assert.Error(t, err)
}
