// Package ledger owns the FIFO lot ledger: buys append lots, sells
// consume them oldest-first, and every mutation leaves an entry in the
// append-only transaction trail.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/ekurt/finassist/internal/domain"
)

// Consumption records how much a sale takes from one lot.
type Consumption struct {
	LotID     int64
	Taken     decimal.Decimal
	Remaining decimal.Decimal
	Exhausted bool
}

// MatchResult is the outcome of matching a sale against the FIFO queue.
// RealizedPnL and AverageCost carry full precision; callers round at the
// presentation boundary.
type MatchResult struct {
	Consumptions []Consumption
	RealizedPnL  decimal.Decimal
	CostBasis    decimal.Decimal
	AverageCost  decimal.Decimal
}

// MatchSale walks lots in the order given (oldest first) and consumes
// quantity at the sale price. It is a pure function: callers apply the
// resulting consumptions inside their own transaction. A symbol with no
// open lots is NotFound; open lots that cannot cover the quantity are an
// insufficient position. Neither produces a partial result.
func MatchSale(lots []domain.Lot, symbol string, quantity, price decimal.Decimal) (MatchResult, error) {
	if len(lots) == 0 {
		return MatchResult{}, domain.NotFoundError{Query: symbol}
	}

	available := decimal.Zero
	for _, lot := range lots {
		available = available.Add(lot.Quantity)
	}
	if available.LessThan(quantity) {
		return MatchResult{}, domain.InsufficientPositionError{
			Symbol:    symbol,
			Requested: quantity,
			Available: available,
		}
	}

	result := MatchResult{
		RealizedPnL: decimal.Zero,
		CostBasis:   decimal.Zero,
	}

	remaining := quantity
	for _, lot := range lots {
		if !remaining.IsPositive() {
			break
		}

		take := decimal.Min(remaining, lot.Quantity)
		result.RealizedPnL = result.RealizedPnL.Add(take.Mul(price.Sub(lot.UnitCost)))
		result.CostBasis = result.CostBasis.Add(take.Mul(lot.UnitCost))
		result.Consumptions = append(result.Consumptions, Consumption{
			LotID:     lot.ID,
			Taken:     take,
			Remaining: lot.Quantity.Sub(take),
			Exhausted: lot.Quantity.Equal(take),
		})

		remaining = remaining.Sub(take)
	}

	if quantity.IsPositive() {
		result.AverageCost = result.CostBasis.Div(quantity)
	}
	return result, nil
}
