package bot

import (
	"context"
	"errors"
	"testing"

	"paper_trading/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type stubPositions struct {
	positions []models.Position
	summary   *models.PositionSummary
	err       error
}

func (s *stubPositions) GetPositions(ctx context.Context) ([]models.Position, error) {
	return s.positions, s.err
}

func (s *stubPositions) GetSummary(ctx context.Context) (*models.PositionSummary, error) {
	return s.summary, s.err
}

type stubStrategies struct {
	strategies []models.Strategy
	err        error
}

func (s *stubStrategies) List(ctx context.Context) ([]models.Strategy, error) {
	return s.strategies, s.err
}

func newHandler(p *stubPositions, s *stubStrategies) *Handler {
	return NewHandler(p, s, "v1.0.0-test", zerolog.New(nil).Level(zerolog.Disabled))
}

func TestHandle_Ping(t *testing.T) {
	h := newHandler(&stubPositions{}, &stubStrategies{})
	assert.Equal(t, "Pong", h.Handle(context.Background(), "/ping"))
}

func TestHandle_UnknownCommand(t *testing.T) {
	h := newHandler(&stubPositions{}, &stubStrategies{})
	reply := h.Handle(context.Background(), "/frobnicate")
	assert.Contains(t, reply, "Unknown command")
}

func TestHandle_Status(t *testing.T) {
	h := newHandler(&stubPositions{}, &stubStrategies{strategies: []models.Strategy{
		{Name: "Momentum", VirtualCapital: decimal.NewFromInt(7995), IsActive: true},
		{Name: "Retired", VirtualCapital: decimal.NewFromInt(100), IsActive: false},
	}})

	reply := h.Handle(context.Background(), "/status")
	assert.Contains(t, reply, "v1.0.0-test")
	assert.Contains(t, reply, "Strategies: 2 (1 active)")
	assert.Contains(t, reply, "Momentum: 7995.00")
	assert.Contains(t, reply, "(inactive) Retired")
}

func TestHandle_StatusDegradesOnStoreError(t *testing.T) {
	h := newHandler(&stubPositions{}, &stubStrategies{err: errors.New("db down")})
	reply := h.Handle(context.Background(), "/status")
	assert.Contains(t, reply, "Strategies: unavailable")
}

func TestHandle_PositionsEmpty(t *testing.T) {
	h := newHandler(&stubPositions{}, &stubStrategies{})
	assert.Equal(t, "No open positions.", h.Handle(context.Background(), "/positions"))
}

func TestHandle_Positions(t *testing.T) {
	h := newHandler(&stubPositions{positions: []models.Position{{
		Symbol:                "SYM",
		Quantity:              decimal.NewFromInt(40),
		CurrentPriceLocal:     decimal.NewFromInt(1400),
		UnrealizedGainPercent: decimal.NewFromInt(40),
	}}}, &stubStrategies{})

	reply := h.Handle(context.Background(), "/positions")
	assert.Contains(t, reply, "SYM: 40 @ 1400.00 (40.00%)")
}

func TestHandle_Summary(t *testing.T) {
	h := newHandler(&stubPositions{summary: &models.PositionSummary{
		PositionCount:         2,
		TotalValueLocal:       decimal.NewFromInt(3000),
		TotalCostLocal:        decimal.NewFromInt(2500),
		UnrealizedGainLocal:   decimal.NewFromInt(500),
		UnrealizedGainPercent: decimal.NewFromInt(20),
	}}, &stubStrategies{})

	reply := h.Handle(context.Background(), "/summary")
	assert.Contains(t, reply, "Positions: 2")
	assert.Contains(t, reply, "Unrealized: 500.00 (20.00%)")
}
