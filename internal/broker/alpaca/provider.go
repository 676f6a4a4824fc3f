// Package alpaca adapts the Alpaca trading API to the broker interface.
package alpaca

import (
	"context"

	"paper_trading/internal/broker"
	"paper_trading/internal/models"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
)

// Ensure Provider implements the interface
var _ broker.Broker = (*Provider)(nil)

// Provider implements the broker interface for Alpaca.
type Provider struct {
	client *alpaca.Client
}

// NewProvider returns a new Alpaca provider. The SDK client reads its API
// keys from the APCA_* environment variables.
func NewProvider() *Provider {
	return &Provider{
		client: alpaca.NewClient(alpaca.ClientOpts{}),
	}
}

// Positions maps broker positions into raw holdings priced in the listing
// currency. The SDK does not thread contexts through requests; the ctx
// parameter is accepted for interface compatibility.
func (p *Provider) Positions(ctx context.Context) ([]models.RawHolding, error) {
	alpacaPositions, err := p.client.GetPositions()
	if err != nil {
		return nil, err
	}

	var result []models.RawHolding
	for _, x := range alpacaPositions {
		// Safely dereference decimal pointers from the SDK
		current := decimal.Zero
		if x.CurrentPrice != nil {
			current = *x.CurrentPrice
		}

		result = append(result, models.RawHolding{
			Symbol:               x.Symbol,
			Quantity:             x.Qty,
			AvgEntryPriceForeign: x.AvgEntryPrice,
			CurrentPriceForeign:  current,
		})
	}
	return result, nil
}

// Account reports broker equity and cash.
func (p *Provider) Account(ctx context.Context) (*models.Account, error) {
	a, err := p.client.GetAccount()
	if err != nil {
		return nil, err
	}
	return &models.Account{
		ID:       a.ID,
		Currency: a.Currency,
		Equity:   a.Equity,
		Cash:     a.Cash,
	}, nil
}
