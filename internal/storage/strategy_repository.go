package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"paper_trading/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const strategiesColumns = `id, name, virtual_capital, is_active, notifications_enabled, created_at`

// StrategyRepository persists trading books. Capital is the only field
// mutated after creation; strategies are deactivated rather than deleted.
type StrategyRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStrategyRepository creates a new strategy repository.
func NewStrategyRepository(db *sql.DB, log zerolog.Logger) *StrategyRepository {
	return &StrategyRepository{
		db:  db,
		log: log.With().Str("repo", "strategy").Logger(),
	}
}

// Create inserts a new strategy and returns its ID.
func (r *StrategyRepository) Create(ctx context.Context, s models.Strategy) (string, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO strategies (id, name, virtual_capital, is_active, notifications_enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.Name,
		s.VirtualCapital.String(),
		boolToInt(s.IsActive),
		boolToInt(s.NotificationsEnabled),
		s.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create strategy: %w", err)
	}

	r.log.Info().
		Str("strategy_id", s.ID).
		Str("name", s.Name).
		Str("virtual_capital", s.VirtualCapital.String()).
		Msg("Strategy created")

	return s.ID, nil
}

// Get retrieves a strategy by ID. Returns nil when absent.
func (r *StrategyRepository) Get(ctx context.Context, id string) (*models.Strategy, error) {
	query := "SELECT " + strategiesColumns + " FROM strategies WHERE id = ?"

	s, err := scanStrategy(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy: %w", err)
	}
	return &s, nil
}

// List retrieves all strategies, oldest first.
func (r *StrategyRepository) List(ctx context.Context) ([]models.Strategy, error) {
	query := "SELECT " + strategiesColumns + " FROM strategies ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	defer rows.Close()

	var strategies []models.Strategy
	for rows.Next() {
		s, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan strategy: %w", err)
		}
		strategies = append(strategies, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strategies: %w", err)
	}
	return strategies, nil
}

// UpdateCapital writes a new virtual capital balance. Callers serialize the
// surrounding read-modify-write; this method only performs the write.
func (r *StrategyRepository) UpdateCapital(ctx context.Context, id string, capital decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE strategies SET virtual_capital = ? WHERE id = ?",
		capital.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update capital: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update capital: strategy %s not found", id)
	}
	return nil
}

// SetActive toggles a strategy. Deactivation is the only supported
// retirement path; rows are never deleted.
func (r *StrategyRepository) SetActive(ctx context.Context, id string, active bool) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE strategies SET is_active = ? WHERE id = ?",
		boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("failed to set strategy active flag: %w", err)
	}
	return nil
}

func scanStrategy(row rowScanner) (models.Strategy, error) {
	var (
		s              models.Strategy
		capital, ts    string
		active, notify int
	)

	if err := row.Scan(&s.ID, &s.Name, &capital, &active, &notify, &ts); err != nil {
		return s, err
	}

	var err error
	if s.VirtualCapital, err = decimal.NewFromString(capital); err != nil {
		return s, fmt.Errorf("bad virtual_capital %q: %w", capital, err)
	}
	if s.CreatedAt, err = time.Parse(timeLayout, ts); err != nil {
		return s, fmt.Errorf("bad created_at %q: %w", ts, err)
	}
	s.IsActive = active != 0
	s.NotificationsEnabled = notify != 0
	return s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
