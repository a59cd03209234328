package port

import (
	"context"

	"github.com/olyamironova/cryptodesk/internal/domain"
	"github.com/shopspring/decimal"
)

// Repository owns crypto balances and the trade receipt log.
type Repository interface {
	// Balance returns the quantity held for (user, symbol); zero when no row
	// exists yet.
	Balance(ctx context.Context, userID int64, symbol domain.Symbol) (decimal.Decimal, error)
	// EnsureBalanceRows creates zero-balance rows for any of the given
	// symbols the user does not have yet.
	EnsureBalanceRows(ctx context.Context, userID int64, symbols []domain.Symbol) error
	// Balances returns every balance row the user has, keyed by symbol.
	Balances(ctx context.Context, userID int64) (map[domain.Symbol]decimal.Decimal, error)
	// ReceiptsForUser returns the user's trade receipts, newest first.
	ReceiptsForUser(ctx context.Context, userID int64) ([]*domain.TradeReceipt, error)

	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is one engine transaction over balances and receipts. Implementations
// must make the balance mutation and the receipt insert atomic as a unit:
// either Commit applies all of them or Rollback leaves no trace.
type Tx interface {
	// CreditBalance adds qty to (user, symbol), creating the row at zero
	// first when absent.
	CreditBalance(ctx context.Context, userID int64, symbol domain.Symbol, qty decimal.Decimal) error
	// DebitBalance subtracts qty, locking the row and re-checking
	// sufficiency at debit time. Fails with domain.ErrInsufficientBalance
	// when the held quantity is below qty.
	DebitBalance(ctx context.Context, userID int64, symbol domain.Symbol, qty decimal.Decimal) error
	SaveReceipt(ctx context.Context, r *domain.TradeReceipt) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
