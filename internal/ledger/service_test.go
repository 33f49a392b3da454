package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekurt/finassist/internal/database"
	"github.com/ekurt/finassist/internal/domain"
)

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

// setupService creates a ledger service backed by a temporary database
// with the real schema applied.
func setupService(t *testing.T) *Service {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "portfolio.db"),
		Profile: database.ProfileLedger,
		Name:    "portfolio",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	repo := NewRepository(db.Conn(), zerolog.Nop())
	return NewService(db, repo, zerolog.Nop())
}

func TestBuyThenPositions_AggregatesCostBasis(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	_, err := s.Buy(ctx, "THYAO", d("10"), d("15"), "")
	require.NoError(t, err)

	positions, err := s.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)

	assert.Equal(t, "THYAO", positions[0].Symbol)
	assert.True(t, positions[0].TotalQuantity.Equal(d("10")))
	assert.True(t, positions[0].TotalCostBasis.Equal(d("150")), "got %s", positions[0].TotalCostBasis)
	assert.True(t, positions[0].WeightedAvgCost.Equal(d("15")))
}

func TestBuy_ZeroCostLotIsAccepted(t *testing.T) {
	// Free share grants carry a zero unit cost.
	s := setupService(t)
	ctx := context.Background()

	_, err := s.Buy(ctx, "THYAO", d("5"), d("0"), "bonus shares")
	require.NoError(t, err)

	res, err := s.Sell(ctx, "THYAO", d("5"), d("10"))
	require.NoError(t, err)
	assert.True(t, res.RealizedPnL.Equal(d("50")), "got %s", res.RealizedPnL)
}

func TestSell_FIFOAcrossLots(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	_, err := s.Buy(ctx, "THYAO", d("5"), d("10"), "")
	require.NoError(t, err)
	_, err = s.Buy(ctx, "THYAO", d("5"), d("12"), "")
	require.NoError(t, err)

	// 5*(14-10) + 1*(14-12) = 22
	res, err := s.Sell(ctx, "THYAO", d("6"), d("14"))
	require.NoError(t, err)
	assert.True(t, res.RealizedPnL.Equal(d("22")), "got %s", res.RealizedPnL)

	lots, err := s.Lots(ctx, "THYAO")
	require.NoError(t, err)
	require.Len(t, lots, 1, "first lot should be gone, second shrunk")
	assert.True(t, lots[0].Quantity.Equal(d("4")))
	assert.True(t, lots[0].UnitCost.Equal(d("12")))
}

func TestSell_InsufficientPositionLeavesLedgerUntouched(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	_, err := s.Buy(ctx, "THYAO", d("3"), d("10"), "")
	require.NoError(t, err)

	_, err = s.Sell(ctx, "THYAO", d("5"), d("12"))
	assert.True(t, domain.IsInsufficientPosition(err))

	// No lot was consumed and no SELL transaction was recorded.
	lots, err := s.Lots(ctx, "THYAO")
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].Quantity.Equal(d("3")))

	history, err := s.History(ctx, "THYAO", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.TransactionBuy, history[0].Kind)
}

func TestSell_UnknownSymbolIsNotFound(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	_, err := s.Sell(ctx, "GHOST", d("1"), d("10"))
	assert.True(t, domain.IsNotFound(err))
	assert.False(t, domain.IsInsufficientPosition(err))

	history, err := s.History(ctx, "GHOST", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSell_DrainingPositionRemovesIt(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	_, err := s.Buy(ctx, "TTE", d("1000"), d("0.1869"), "")
	require.NoError(t, err)

	_, err = s.Sell(ctx, "TTE", d("1000"), d("0.2001"))
	require.NoError(t, err)

	positions, err := s.Positions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestUpdate_CorrectsOldestLotWithoutPnL(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	_, err := s.Buy(ctx, "THYAO", d("10"), d("15"), "")
	require.NoError(t, err)
	_, err = s.Buy(ctx, "THYAO", d("5"), d("20"), "")
	require.NoError(t, err)

	corrected, err := s.Update(ctx, "THYAO", dp("12"), dp("14"))
	require.NoError(t, err)
	assert.True(t, corrected.Quantity.Equal(d("12")))
	assert.True(t, corrected.UnitCost.Equal(d("14")))

	lots, err := s.Lots(ctx, "THYAO")
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.True(t, lots[0].Quantity.Equal(d("12")), "oldest lot carries the correction")
	assert.True(t, lots[1].UnitCost.Equal(d("20")), "newer lot is untouched")

	history, err := s.History(ctx, "THYAO", 0)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, domain.TransactionUpdate, history[0].Kind)
	assert.True(t, history[0].RealizedPnL.IsZero())
}

func TestUpdate_CostOnlyKeepsQuantity(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	_, err := s.Buy(ctx, "THYAO", d("10"), d("15"), "")
	require.NoError(t, err)

	corrected, err := s.Update(ctx, "THYAO", nil, dp("5"))
	require.NoError(t, err)
	assert.True(t, corrected.Quantity.Equal(d("10")), "omitted quantity keeps prior value")
	assert.True(t, corrected.UnitCost.Equal(d("5")))

	history, err := s.History(ctx, "THYAO", 0)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, domain.TransactionUpdate, history[0].Kind)
	assert.True(t, history[0].RealizedPnL.IsZero())
}

func TestUpdate_QuantityOnlyKeepsCost(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	_, err := s.Buy(ctx, "THYAO", d("10"), d("15"), "")
	require.NoError(t, err)

	corrected, err := s.Update(ctx, "THYAO", dp("8"), nil)
	require.NoError(t, err)
	assert.True(t, corrected.Quantity.Equal(d("8")))
	assert.True(t, corrected.UnitCost.Equal(d("15")), "omitted cost keeps prior value")
}

func TestUpdate_UnknownSymbolIsNotFound(t *testing.T) {
	s := setupService(t)

	_, err := s.Update(context.Background(), "NOPE", dp("1"), dp("1"))
	assert.True(t, domain.IsNotFound(err))
}

func TestDelete_RemovesLotsButKeepsAuditTrail(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	_, err := s.Buy(ctx, "THYAO", d("10"), d("15"), "")
	require.NoError(t, err)
	_, err = s.Buy(ctx, "THYAO", d("5"), d("16"), "")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "THYAO"))

	lots, err := s.Lots(ctx, "THYAO")
	require.NoError(t, err)
	assert.Empty(t, lots)

	history, err := s.History(ctx, "THYAO", 0)
	require.NoError(t, err)
	require.Len(t, history, 3, "two buys plus the delete marker")
	assert.Equal(t, domain.TransactionDelete, history[0].Kind)
}

func TestDelete_UnknownSymbolIsNotFound(t *testing.T) {
	s := setupService(t)
	err := s.Delete(context.Background(), "NOPE")
	assert.True(t, domain.IsNotFound(err))
}

func TestHistory_NewestFirstWithDefaultLimit(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := s.Buy(ctx, "THYAO", d("1"), d("10"), "")
		require.NoError(t, err)
	}

	history, err := s.History(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, history, 20, "default limit")

	require.True(t, len(history) >= 2)
	assert.Greater(t, history[0].ID, history[1].ID, "newest first")
}

func TestHistory_FiltersBySymbol(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	_, err := s.Buy(ctx, "THYAO", d("1"), d("10"), "")
	require.NoError(t, err)
	_, err = s.Buy(ctx, "TTE", d("100"), d("0.18"), "")
	require.NoError(t, err)

	history, err := s.History(ctx, "tte", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "TTE", history[0].Symbol)
}

func TestSummary_AggregatesAcrossSymbols(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	_, err := s.Buy(ctx, "THYAO", d("10"), d("15"), "")
	require.NoError(t, err)
	_, err = s.Buy(ctx, "TTE", d("1000"), d("0.2"), "")
	require.NoError(t, err)

	summary, err := s.Summary(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.SymbolCount)
	assert.True(t, summary.TotalCostBasis.Equal(d("350")), "got %s", summary.TotalCostBasis)
}

func TestValidation_RejectsBadArguments(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	_, err := s.Buy(ctx, "", d("1"), d("1"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = s.Buy(ctx, "THYAO", d("0"), d("1"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = s.Sell(ctx, "THYAO", d("1"), d("-2"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = s.Update(ctx, "THYAO", dp("-1"), dp("2"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = s.Update(ctx, "THYAO", nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSymbolsAreNormalized(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	_, err := s.Buy(ctx, "  thyao ", d("10"), d("15"), "")
	require.NoError(t, err)

	lots, err := s.Lots(ctx, "THYAO")
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, "THYAO", lots[0].Symbol)
}
