// Package bot maps Telegram slash commands onto engine queries. Commands
// are read-only; trades enter only through the signal API.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paper_trading/internal/models"

	"github.com/rs/zerolog"
)

// PositionReader serves the /positions and /summary views.
type PositionReader interface {
	GetPositions(ctx context.Context) ([]models.Position, error)
	GetSummary(ctx context.Context) (*models.PositionSummary, error)
}

// StrategyReader serves the /status view.
type StrategyReader interface {
	List(ctx context.Context) ([]models.Strategy, error)
}

// Handler dispatches slash commands.
type Handler struct {
	positions  PositionReader
	strategies StrategyReader
	version    string
	startedAt  time.Time
	log        zerolog.Logger
}

// NewHandler creates a command handler.
func NewHandler(positions PositionReader, strategies StrategyReader, version string, log zerolog.Logger) *Handler {
	return &Handler{
		positions:  positions,
		strategies: strategies,
		version:    version,
		startedAt:  time.Now(),
		log:        log.With().Str("service", "bot").Logger(),
	}
}

// Handle processes one inbound command and returns the reply text.
func (h *Handler) Handle(ctx context.Context, cmd string) string {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return ""
	}

	switch parts[0] {
	case "/ping":
		return "Pong"
	case "/status":
		return h.status(ctx)
	case "/positions":
		return h.positionsReport(ctx)
	case "/summary":
		return h.summaryReport(ctx)
	case "/help":
		return h.help()
	default:
		return "Unknown command. Try /status, /positions, /summary or /help."
	}
}

func (h *Handler) status(ctx context.Context) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Paper Engine %s*\n", h.version))
	sb.WriteString(fmt.Sprintf("Uptime: %s\n", time.Since(h.startedAt).Round(time.Second)))

	strategies, err := h.strategies.List(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to list strategies for status report")
		sb.WriteString("Strategies: unavailable\n")
		return sb.String()
	}

	active := 0
	for _, s := range strategies {
		if s.IsActive {
			active++
		}
	}
	sb.WriteString(fmt.Sprintf("Strategies: %d (%d active)\n", len(strategies), active))
	for _, s := range strategies {
		marker := "-"
		if !s.IsActive {
			marker = "(inactive)"
		}
		sb.WriteString(fmt.Sprintf("%s %s: %s\n", marker, s.Name, s.VirtualCapital.StringFixed(2)))
	}
	return sb.String()
}

func (h *Handler) positionsReport(ctx context.Context) string {
	positions, err := h.positions.GetPositions(ctx)
	if err != nil {
		return "Failed to load positions."
	}
	if len(positions) == 0 {
		return "No open positions."
	}

	var sb strings.Builder
	sb.WriteString("*Open Positions*\n")
	for _, p := range positions {
		sb.WriteString(fmt.Sprintf("%s: %s @ %s (%s%%)\n",
			p.Symbol, p.Quantity, p.CurrentPriceLocal.StringFixed(2), p.UnrealizedGainPercent.StringFixed(2)))
	}
	return sb.String()
}

func (h *Handler) summaryReport(ctx context.Context) string {
	summary, err := h.positions.GetSummary(ctx)
	if err != nil {
		return "Failed to load summary."
	}
	return fmt.Sprintf("*Portfolio Summary*\nPositions: %d\nValue: %s\nCost: %s\nUnrealized: %s (%s%%)",
		summary.PositionCount,
		summary.TotalValueLocal.StringFixed(2),
		summary.TotalCostLocal.StringFixed(2),
		summary.UnrealizedGainLocal.StringFixed(2),
		summary.UnrealizedGainPercent.StringFixed(2))
}

func (h *Handler) help() string {
	return strings.Join([]string{
		"*Commands*",
		"/ping - liveness check",
		"/status - engine version, uptime and strategy books",
		"/positions - open positions with unrealized P&L",
		"/summary - aggregate portfolio valuation",
	}, "\n")
}
