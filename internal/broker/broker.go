// Package broker defines the collaborator reporting live holdings. The
// broker is authoritative for current positions; the engine's own trade
// ledger is a historical/tax record and the two are deliberately not
// reconciled.
package broker

import (
	"context"

	"paper_trading/internal/models"
)

// Broker reports currently held positions and account state.
type Broker interface {
	Positions(ctx context.Context) ([]models.RawHolding, error)
	Account(ctx context.Context) (*models.Account, error)
}
