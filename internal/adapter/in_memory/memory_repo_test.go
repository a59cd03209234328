package in_memory

import (
	"context"
	"testing"

	"github.com/olyamironova/cryptodesk/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTxCommitAppliesAllOrNothing(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreditBalance(ctx, 1, "BTC", decimal.RequireFromString("0.5")))
	require.NoError(t, tx.SaveReceipt(ctx, &domain.TradeReceipt{ID: "r1", UserID: 1, Symbol: "BTC", Side: domain.Buy}))

	// Nothing visible before commit.
	bal, err := repo.Balance(ctx, 1, "BTC")
	require.NoError(t, err)
	require.True(t, bal.IsZero())
	require.Empty(t, repo.Receipts())

	require.NoError(t, tx.Commit(ctx))
	bal, err = repo.Balance(ctx, 1, "BTC")
	require.NoError(t, err)
	require.True(t, bal.Equal(decimal.RequireFromString("0.5")))
	require.Len(t, repo.Receipts(), 1)
}

func TestTxRollbackDiscardsStage(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreditBalance(ctx, 1, "BTC", decimal.RequireFromString("1")))
	require.NoError(t, tx.Rollback(ctx))

	bal, err := repo.Balance(ctx, 1, "BTC")
	require.NoError(t, err)
	require.True(t, bal.IsZero())
}

func TestDebitChecksSufficiencyAtDebitTime(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreditBalance(ctx, 1, "BTC", decimal.RequireFromString("0.1")))
	require.NoError(t, tx.Commit(ctx))

	tx, err = repo.BeginTx(ctx)
	require.NoError(t, err)
	err = tx.DebitBalance(ctx, 1, "BTC", decimal.RequireFromString("0.2"))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	require.NoError(t, tx.Rollback(ctx))
}

func TestEnsureBalanceRowsIsIdempotent(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	symbols := []domain.Symbol{"BTC", "ETH"}

	require.NoError(t, repo.EnsureBalanceRows(ctx, 1, symbols))

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreditBalance(ctx, 1, "BTC", decimal.RequireFromString("2")))
	require.NoError(t, tx.Commit(ctx))

	// A second ensure keeps the credited balance.
	require.NoError(t, repo.EnsureBalanceRows(ctx, 1, symbols))
	balances, err := repo.Balances(ctx, 1)
	require.NoError(t, err)
	require.True(t, balances["BTC"].Equal(decimal.RequireFromString("2")))
	require.True(t, balances["ETH"].IsZero())
}
