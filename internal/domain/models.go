// Package domain contains the core types shared across the application.
// It has no infrastructure dependencies: services, clients and repositories
// all speak in these types.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is the normalized result of a successful price lookup,
// whatever the source. Price is always positive on success.
type PriceQuote struct {
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Source   string          `json:"source"`
	AsOf     time.Time       `json:"as_of"`
}

// TransactionKind classifies ledger transactions.
type TransactionKind string

const (
	TransactionBuy    TransactionKind = "BUY"
	TransactionSell   TransactionKind = "SELL"
	TransactionUpdate TransactionKind = "UPDATE"
	TransactionDelete TransactionKind = "DELETE"
)

// Lot is a single acquisition record in a symbol's FIFO queue.
// Lots are exclusively owned by the ledger and ordered by AcquiredAt ascending.
type Lot struct {
	ID         int64           `json:"id"`
	Symbol     string          `json:"symbol"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	AcquiredAt time.Time       `json:"acquired_at"`
	Notes      string          `json:"notes,omitempty"`
}

// Transaction is one entry in the append-only audit trail. Entries are
// created on every mutating ledger call and never changed afterwards.
// RealizedPnL is only meaningful for SELL entries.
type Transaction struct {
	ID          int64           `json:"id"`
	Symbol      string          `json:"symbol"`
	Kind        TransactionKind `json:"kind"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Timestamp   time.Time       `json:"timestamp"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Detail      string          `json:"detail,omitempty"`
}

// Position is the derived per-symbol aggregate over open lots.
// It is computed on demand and never stored.
type Position struct {
	Symbol              string          `json:"symbol"`
	TotalQuantity       decimal.Decimal `json:"total_quantity"`
	WeightedAvgCost     decimal.Decimal `json:"weighted_avg_cost"`
	TotalCostBasis      decimal.Decimal `json:"total_cost_basis"`
	EarliestAcquisition time.Time       `json:"earliest_acquisition"`
}

// SaleResult is the breakdown returned by a completed sell.
type SaleResult struct {
	Symbol       string          `json:"symbol"`
	QuantitySold decimal.Decimal `json:"quantity_sold"`
	AverageCost  decimal.Decimal `json:"average_cost"`
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`
}

// PortfolioSummary aggregates the whole portfolio.
type PortfolioSummary struct {
	SymbolCount    int             `json:"symbol_count"`
	TotalCostBasis decimal.Decimal `json:"total_cost_basis"`
	Positions      []Position      `json:"positions"`
}
