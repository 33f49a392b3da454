package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ekurt/finassist/internal/domain"
)

// Repository handles lot and transaction persistence. Decimal values are
// stored as TEXT so no precision is lost crossing the database boundary.
// All mutating methods take a *sql.Tx: the service decides transaction
// boundaries, the repository never commits.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a ledger repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// InsertLotTx appends a new lot and returns it with its assigned ID.
func (r *Repository) InsertLotTx(tx *sql.Tx, lot domain.Lot) (domain.Lot, error) {
	res, err := tx.Exec(
		`INSERT INTO lots (symbol, quantity, unit_cost, acquired_at, notes) VALUES (?, ?, ?, ?, ?)`,
		lot.Symbol,
		lot.Quantity.String(),
		lot.UnitCost.String(),
		lot.AcquiredAt.UTC().Format(time.RFC3339Nano),
		lot.Notes,
	)
	if err != nil {
		return domain.Lot{}, fmt.Errorf("failed to insert lot: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.Lot{}, fmt.Errorf("failed to get lot id: %w", err)
	}
	lot.ID = id
	return lot, nil
}

// LotsBySymbolTx returns a symbol's open lots in FIFO order: acquisition
// time ascending, insertion order breaking ties.
func (r *Repository) LotsBySymbolTx(tx *sql.Tx, symbol string) ([]domain.Lot, error) {
	rows, err := tx.Query(
		`SELECT id, symbol, quantity, unit_cost, acquired_at, notes
		 FROM lots WHERE symbol = ? ORDER BY acquired_at ASC, id ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	return scanLots(rows)
}

// LotsBySymbol is the read-only variant of LotsBySymbolTx.
func (r *Repository) LotsBySymbol(symbol string) ([]domain.Lot, error) {
	rows, err := r.db.Query(
		`SELECT id, symbol, quantity, unit_cost, acquired_at, notes
		 FROM lots WHERE symbol = ? ORDER BY acquired_at ASC, id ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	return scanLots(rows)
}

// SetLotQuantityTx shrinks a partially consumed lot.
func (r *Repository) SetLotQuantityTx(tx *sql.Tx, id int64, quantity decimal.Decimal) error {
	if _, err := tx.Exec(`UPDATE lots SET quantity = ? WHERE id = ?`, quantity.String(), id); err != nil {
		return fmt.Errorf("failed to update lot %d quantity: %w", id, err)
	}
	return nil
}

// CorrectLotTx rewrites a lot's quantity and unit cost in place. Used by
// position corrections, which adjust records without realizing P&L.
func (r *Repository) CorrectLotTx(tx *sql.Tx, id int64, quantity, unitCost decimal.Decimal) error {
	if _, err := tx.Exec(
		`UPDATE lots SET quantity = ?, unit_cost = ? WHERE id = ?`,
		quantity.String(), unitCost.String(), id,
	); err != nil {
		return fmt.Errorf("failed to correct lot %d: %w", id, err)
	}
	return nil
}

// DeleteLotTx removes an exhausted lot.
func (r *Repository) DeleteLotTx(tx *sql.Tx, id int64) error {
	if _, err := tx.Exec(`DELETE FROM lots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete lot %d: %w", id, err)
	}
	return nil
}

// DeleteSymbolLotsTx removes every lot for a symbol and reports how many
// rows went away.
func (r *Repository) DeleteSymbolLotsTx(tx *sql.Tx, symbol string) (int64, error) {
	res, err := tx.Exec(`DELETE FROM lots WHERE symbol = ?`, symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to delete lots for %s: %w", symbol, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted lots: %w", err)
	}
	return n, nil
}

// InsertTransactionTx appends an audit trail entry.
func (r *Repository) InsertTransactionTx(tx *sql.Tx, t domain.Transaction) (domain.Transaction, error) {
	res, err := tx.Exec(
		`INSERT INTO transactions (symbol, kind, quantity, price, realized_pnl, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Symbol,
		string(t.Kind),
		t.Quantity.String(),
		t.Price.String(),
		t.RealizedPnL.String(),
		t.Detail,
		t.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to get transaction id: %w", err)
	}
	t.ID = id
	return t, nil
}

// History returns the most recent transactions, newest first. A symbol
// filter is applied when symbol is non-empty.
func (r *Repository) History(symbol string, limit int) ([]domain.Transaction, error) {
	query := `SELECT id, symbol, kind, quantity, price, realized_pnl, detail, created_at
		FROM transactions`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var (
			t                          domain.Transaction
			kind                       string
			qty, price, pnl, createdAt string
		)
		if err := rows.Scan(&t.ID, &t.Symbol, &kind, &qty, &price, &pnl, &t.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Kind = domain.TransactionKind(kind)
		if t.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("corrupt quantity in transaction %d: %w", t.ID, err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("corrupt price in transaction %d: %w", t.ID, err)
		}
		if t.RealizedPnL, err = decimal.NewFromString(pnl); err != nil {
			return nil, fmt.Errorf("corrupt realized pnl in transaction %d: %w", t.ID, err)
		}
		if t.Timestamp, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("corrupt timestamp in transaction %d: %w", t.ID, err)
		}
		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// Positions aggregates open lots per symbol. The weighted average cost is
// derived from the summed cost basis, not averaged per lot.
func (r *Repository) Positions() ([]domain.Position, error) {
	rows, err := r.db.Query(
		`SELECT symbol, quantity, unit_cost, acquired_at
		 FROM lots ORDER BY symbol ASC, acquired_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	var current *domain.Position
	for rows.Next() {
		var (
			symbol, qty, cost, acquired string
		)
		if err := rows.Scan(&symbol, &qty, &cost, &acquired); err != nil {
			return nil, fmt.Errorf("failed to scan lot row: %w", err)
		}

		quantity, err := decimal.NewFromString(qty)
		if err != nil {
			return nil, fmt.Errorf("corrupt quantity for %s: %w", symbol, err)
		}
		unitCost, err := decimal.NewFromString(cost)
		if err != nil {
			return nil, fmt.Errorf("corrupt unit cost for %s: %w", symbol, err)
		}
		acquiredAt, err := time.Parse(time.RFC3339Nano, acquired)
		if err != nil {
			return nil, fmt.Errorf("corrupt acquisition time for %s: %w", symbol, err)
		}

		if current == nil || current.Symbol != symbol {
			positions = append(positions, domain.Position{
				Symbol:              symbol,
				TotalQuantity:       decimal.Zero,
				TotalCostBasis:      decimal.Zero,
				EarliestAcquisition: acquiredAt,
			})
			current = &positions[len(positions)-1]
		}

		current.TotalQuantity = current.TotalQuantity.Add(quantity)
		current.TotalCostBasis = current.TotalCostBasis.Add(quantity.Mul(unitCost))
		if acquiredAt.Before(current.EarliestAcquisition) {
			current.EarliestAcquisition = acquiredAt
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lots: %w", err)
	}

	for i := range positions {
		if positions[i].TotalQuantity.IsPositive() {
			positions[i].WeightedAvgCost = positions[i].TotalCostBasis.Div(positions[i].TotalQuantity)
		}
	}
	return positions, nil
}

func scanLots(rows *sql.Rows) ([]domain.Lot, error) {
	var lots []domain.Lot
	for rows.Next() {
		var (
			lot                 domain.Lot
			qty, cost, acquired string
		)
		if err := rows.Scan(&lot.ID, &lot.Symbol, &qty, &cost, &acquired, &lot.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}

		var err error
		if lot.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("corrupt quantity in lot %d: %w", lot.ID, err)
		}
		if lot.UnitCost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("corrupt unit cost in lot %d: %w", lot.ID, err)
		}
		if lot.AcquiredAt, err = time.Parse(time.RFC3339Nano, acquired); err != nil {
			return nil, fmt.Errorf("corrupt acquisition time in lot %d: %w", lot.ID, err)
		}
		lots = append(lots, lot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lots: %w", err)
	}
	return lots, nil
}
