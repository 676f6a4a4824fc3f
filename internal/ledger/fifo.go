package ledger

import (
	"paper_trading/internal/models"

	"github.com/shopspring/decimal"
)

// lot is an open remainder of a BUY, priced in the quote currency.
type lot struct {
	quantity       decimal.Decimal
	unitPriceLocal decimal.Decimal
}

// openLots replays a trade history (ordered by timestamp ascending) into the
// queue of still-open buy lots. BUYs append a lot; SELLs consume oldest
// lots first. Replaying both sides guarantees a lot consumed by an earlier
// SELL is never available twice.
func openLots(history []models.Trade) []lot {
	var lots []lot
	for _, t := range history {
		switch t.Side {
		case models.SideBuy:
			lots = append(lots, lot{quantity: t.Quantity, unitPriceLocal: t.UnitPriceLocal})
		case models.SideSell:
			lots = consumeLots(lots, t.Quantity)
		}
	}
	return lots
}

func consumeLots(lots []lot, quantity decimal.Decimal) []lot {
	remaining := quantity
	for len(lots) > 0 && remaining.IsPositive() {
		head := &lots[0]
		if head.quantity.GreaterThan(remaining) {
			head.quantity = head.quantity.Sub(remaining)
			return lots
		}
		remaining = remaining.Sub(head.quantity)
		lots = lots[1:]
	}
	return lots
}

// costBasis consumes up to quantity units from the open lots, oldest first,
// returning the consumed quantity and its accumulated cost in the quote
// currency. When the lots cannot cover the full quantity the consumption is
// clamped: the shortfall carries no basis and contributes no realized gain.
func costBasis(lots []lot, quantity decimal.Decimal) (consumed, cost decimal.Decimal) {
	remaining := quantity
	for _, l := range lots {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, l.quantity)
		cost = cost.Add(l.unitPriceLocal.Mul(take))
		consumed = consumed.Add(take)
		remaining = remaining.Sub(take)
	}
	return consumed, cost
}
