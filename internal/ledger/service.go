package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ekurt/finassist/internal/database"
	"github.com/ekurt/finassist/internal/domain"
)

// defaultHistoryLimit caps history queries when the caller asks for no
// particular limit.
const defaultHistoryLimit = 20

// Service exposes the ledger operations. Mutations serialize on a single
// mutex so two concurrent sells can never consume the same lot; reads go
// straight to the database.
type Service struct {
	mu   sync.Mutex
	db   *database.DB
	repo *Repository
	log  zerolog.Logger
	now  func() time.Time
}

// NewService creates the ledger service.
func NewService(db *database.DB, repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		db:   db,
		repo: repo,
		log:  log.With().Str("service", "ledger").Logger(),
		now:  time.Now,
	}
}

// Buy appends a lot and records a BUY transaction.
func (s *Service) Buy(ctx context.Context, symbol string, quantity, price decimal.Decimal, notes string) (domain.Lot, error) {
	symbol, err := validateMutation(symbol, quantity, price)
	if err != nil {
		return domain.Lot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var created domain.Lot
	err = database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		now := s.now()
		created, err = s.repo.InsertLotTx(tx, domain.Lot{
			Symbol:     symbol,
			Quantity:   quantity,
			UnitCost:   price,
			AcquiredAt: now,
			Notes:      notes,
		})
		if err != nil {
			return err
		}

		_, err = s.repo.InsertTransactionTx(tx, domain.Transaction{
			Symbol:      symbol,
			Kind:        domain.TransactionBuy,
			Quantity:    quantity,
			Price:       price,
			Timestamp:   now,
			RealizedPnL: decimal.Zero,
			Detail:      notes,
		})
		return err
	})
	if err != nil {
		return domain.Lot{}, err
	}

	s.log.Info().
		Str("symbol", symbol).
		Str("quantity", quantity.String()).
		Str("price", price.String()).
		Msg("Buy recorded")
	return created, nil
}

// Sell consumes lots oldest-first at the given price and records a SELL
// transaction carrying the realized P&L. The whole sale commits or none
// of it does.
func (s *Service) Sell(ctx context.Context, symbol string, quantity, price decimal.Decimal) (domain.SaleResult, error) {
	symbol, err := validateMutation(symbol, quantity, price)
	if err != nil {
		return domain.SaleResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var match MatchResult
	err = database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		lots, err := s.repo.LotsBySymbolTx(tx, symbol)
		if err != nil {
			return err
		}

		match, err = MatchSale(lots, symbol, quantity, price)
		if err != nil {
			return err
		}

		for _, c := range match.Consumptions {
			if c.Exhausted {
				if err := s.repo.DeleteLotTx(tx, c.LotID); err != nil {
					return err
				}
				continue
			}
			if err := s.repo.SetLotQuantityTx(tx, c.LotID, c.Remaining); err != nil {
				return err
			}
		}

		_, err = s.repo.InsertTransactionTx(tx, domain.Transaction{
			Symbol:      symbol,
			Kind:        domain.TransactionSell,
			Quantity:    quantity,
			Price:       price,
			Timestamp:   s.now(),
			RealizedPnL: match.RealizedPnL,
		})
		return err
	})
	if err != nil {
		return domain.SaleResult{}, err
	}

	s.log.Info().
		Str("symbol", symbol).
		Str("quantity", quantity.String()).
		Str("price", price.String()).
		Str("realized_pnl", match.RealizedPnL.String()).
		Msg("Sell recorded")

	return domain.SaleResult{
		Symbol:       symbol,
		QuantitySold: quantity,
		AverageCost:  match.AverageCost,
		RealizedPnL:  match.RealizedPnL,
	}, nil
}

// Update corrects the oldest lot of a symbol. Either field may be nil,
// in which case the lot keeps its prior value. Corrections fix records,
// so no P&L is realized; the change is still audited as an UPDATE
// transaction.
func (s *Service) Update(ctx context.Context, symbol string, quantity, price *decimal.Decimal) (domain.Lot, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return domain.Lot{}, fmt.Errorf("empty symbol: %w", domain.ErrInvalidArgument)
	}
	if quantity == nil && price == nil {
		return domain.Lot{}, fmt.Errorf("nothing to update: %w", domain.ErrInvalidArgument)
	}
	if quantity != nil && !quantity.IsPositive() {
		return domain.Lot{}, fmt.Errorf("quantity must be positive, got %s: %w", quantity, domain.ErrInvalidArgument)
	}
	if price != nil && price.IsNegative() {
		return domain.Lot{}, fmt.Errorf("price must not be negative, got %s: %w", price, domain.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var corrected domain.Lot
	err := database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		lots, err := s.repo.LotsBySymbolTx(tx, symbol)
		if err != nil {
			return err
		}
		if len(lots) == 0 {
			return domain.NotFoundError{Query: symbol}
		}

		oldest := lots[0]
		newQuantity := oldest.Quantity
		if quantity != nil {
			newQuantity = *quantity
		}
		newCost := oldest.UnitCost
		if price != nil {
			newCost = *price
		}

		if err := s.repo.CorrectLotTx(tx, oldest.ID, newQuantity, newCost); err != nil {
			return err
		}
		corrected = oldest
		corrected.Quantity = newQuantity
		corrected.UnitCost = newCost

		_, err = s.repo.InsertTransactionTx(tx, domain.Transaction{
			Symbol:      symbol,
			Kind:        domain.TransactionUpdate,
			Quantity:    newQuantity,
			Price:       newCost,
			Timestamp:   s.now(),
			RealizedPnL: decimal.Zero,
			Detail:      fmt.Sprintf("corrected lot %d", oldest.ID),
		})
		return err
	})
	if err != nil {
		return domain.Lot{}, err
	}

	s.log.Info().
		Str("symbol", symbol).
		Int64("lot", corrected.ID).
		Msg("Position corrected")
	return corrected, nil
}

// Delete removes every lot for a symbol. The audit trail keeps the
// symbol's past transactions and gains a DELETE entry.
func (s *Service) Delete(ctx context.Context, symbol string) error {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return fmt.Errorf("empty symbol: %w", domain.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	err := database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		var err error
		removed, err = s.repo.DeleteSymbolLotsTx(tx, symbol)
		if err != nil {
			return err
		}
		if removed == 0 {
			return domain.NotFoundError{Query: symbol}
		}

		_, err = s.repo.InsertTransactionTx(tx, domain.Transaction{
			Symbol:      symbol,
			Kind:        domain.TransactionDelete,
			Quantity:    decimal.Zero,
			Price:       decimal.Zero,
			Timestamp:   s.now(),
			RealizedPnL: decimal.Zero,
			Detail:      fmt.Sprintf("removed %d lots", removed),
		})
		return err
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("symbol", symbol).Int64("lots", removed).Msg("Position deleted")
	return nil
}

// Lots returns a symbol's open lots in FIFO order.
func (s *Service) Lots(ctx context.Context, symbol string) ([]domain.Lot, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol: %w", domain.ErrInvalidArgument)
	}
	return s.repo.LotsBySymbol(symbol)
}

// Positions returns the per-symbol aggregates over open lots.
func (s *Service) Positions(ctx context.Context) ([]domain.Position, error) {
	return s.repo.Positions()
}

// History returns recent transactions, newest first. limit <= 0 means
// the default of 20; symbol may be empty for all symbols.
func (s *Service) History(ctx context.Context, symbol string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.repo.History(normalizeSymbol(symbol), limit)
}

// Summary aggregates the whole portfolio.
func (s *Service) Summary(ctx context.Context) (domain.PortfolioSummary, error) {
	positions, err := s.repo.Positions()
	if err != nil {
		return domain.PortfolioSummary{}, err
	}

	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.TotalCostBasis)
	}
	return domain.PortfolioSummary{
		SymbolCount:    len(positions),
		TotalCostBasis: total,
		Positions:      positions,
	}, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func validateMutation(symbol string, quantity, price decimal.Decimal) (string, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return "", fmt.Errorf("empty symbol: %w", domain.ErrInvalidArgument)
	}
	if !quantity.IsPositive() {
		return "", fmt.Errorf("quantity must be positive, got %s: %w", quantity, domain.ErrInvalidArgument)
	}
	// Zero is a valid price: free share grants have no cost.
	if price.IsNegative() {
		return "", fmt.Errorf("price must not be negative, got %s: %w", price, domain.ErrInvalidArgument)
	}
	return symbol, nil
}
