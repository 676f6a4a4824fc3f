// Package server exposes the engine over HTTP: health, positions, trade
// history, strategy management, and signal submission.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"paper_trading/internal/executor"
	"paper_trading/internal/ledger"
	"paper_trading/internal/market"
	"paper_trading/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PositionReader serves position and summary views.
type PositionReader interface {
	GetPositions(ctx context.Context) ([]models.Position, error)
	GetSummary(ctx context.Context) (*models.PositionSummary, error)
}

// TradeReader serves trade history.
type TradeReader interface {
	History(ctx context.Context, strategyID string, limit int) ([]models.Trade, error)
}

// StrategyStore manages strategy books.
type StrategyStore interface {
	Create(ctx context.Context, s models.Strategy) (string, error)
	Get(ctx context.Context, id string) (*models.Strategy, error)
	List(ctx context.Context) ([]models.Strategy, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// SignalExecutor runs signals through the execution policy.
type SignalExecutor interface {
	ExecuteSignal(ctx context.Context, sig models.Signal) (*executor.Result, error)
}

// Server is the HTTP API.
type Server struct {
	positions  PositionReader
	trades     TradeReader
	strategies StrategyStore
	executor   SignalExecutor
	version    string
	log        zerolog.Logger
}

// New creates the HTTP API server.
func New(
	positions PositionReader,
	trades TradeReader,
	strategies StrategyStore,
	exec SignalExecutor,
	version string,
	log zerolog.Logger,
) *Server {
	return &Server{
		positions:  positions,
		trades:     trades,
		strategies: strategies,
		executor:   exec,
		version:    version,
		log:        log.With().Str("service", "http").Logger(),
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/positions", s.handlePositions)
		r.Get("/positions/summary", s.handlePositionSummary)
		r.Get("/trades", s.handleTrades)

		r.Route("/strategies", func(r chi.Router) {
			r.Get("/", s.handleListStrategies)
			r.Post("/", s.handleCreateStrategy)
			r.Get("/{id}", s.handleGetStrategy)
			r.Patch("/{id}/active", s.handleSetActive)
		})

		r.Post("/signals", s.handleSignal)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.positions.GetPositions(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respond(w, http.StatusOK, positions)
}

func (s *Server) handlePositionSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.positions.GetSummary(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respond(w, http.StatusOK, summary)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	strategyID := r.URL.Query().Get("strategy_id")
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			s.respondError(w, http.StatusBadRequest, errors.New("limit must be an integer in [1, 500]"))
			return
		}
		limit = parsed
	}

	trades, err := s.trades.History(r.Context(), strategyID, limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respond(w, http.StatusOK, trades)
}

type createStrategyRequest struct {
	Name                 string          `json:"name"`
	VirtualCapital       decimal.Decimal `json:"virtual_capital"`
	NotificationsEnabled bool            `json:"notifications_enabled"`
}

func (s *Server) handleCreateStrategy(w http.ResponseWriter, r *http.Request) {
	var req createStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	if req.VirtualCapital.LessThanOrEqual(decimal.Zero) {
		s.respondError(w, http.StatusBadRequest, errors.New("virtual_capital must be positive"))
		return
	}

	strategy := models.Strategy{
		Name:                 req.Name,
		VirtualCapital:       req.VirtualCapital,
		IsActive:             true,
		NotificationsEnabled: req.NotificationsEnabled,
	}
	id, err := s.strategies.Create(r.Context(), strategy)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}

	created, err := s.strategies.Get(r.Context(), id)
	if err != nil || created == nil {
		s.respondError(w, http.StatusInternalServerError, errors.New("strategy created but could not be loaded"))
		return
	}
	s.respond(w, http.StatusCreated, created)
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	strategies, err := s.strategies.List(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respond(w, http.StatusOK, strategies)
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	strategy, err := s.strategies.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	if strategy == nil {
		s.respondError(w, http.StatusNotFound, errors.New("strategy not found"))
		return
	}
	s.respond(w, http.StatusOK, strategy)
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if err := s.strategies.SetActive(r.Context(), id, req.Active); err != nil {
		s.respondError(w, http.StatusNotFound, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]bool{"active": req.Active})
}

// handleSignal submits one signal for execution. A policy rejection is a
// 200 with executed=false and a reason; only infrastructure failures map
// to error statuses.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var sig models.Signal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		s.respondError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	result, err := s.executor.ExecuteSignal(r.Context(), sig)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidTradeInput):
			s.respondError(w, http.StatusBadRequest, err)
		case errors.Is(err, market.ErrUnavailable):
			s.respondError(w, http.StatusBadGateway, err)
		default:
			s.respondError(w, http.StatusInternalServerError, err)
		}
		return
	}
	s.respond(w, http.StatusOK, result)
}

func (s *Server) respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Int("status", status).Msg("Request failed")
	}
	s.respond(w, status, map[string]string{"error": err.Error()})
}
