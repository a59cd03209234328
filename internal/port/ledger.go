package port

import (
	"context"

	"github.com/olyamironova/cryptodesk/internal/domain"
	"github.com/shopspring/decimal"
)

// Ledger is the narrow capability the order engine holds on the fiat ledger:
// look a wallet up, move money in, move money out. Withdraw and Deposit are
// atomic and durable once they return nil.
type Ledger interface {
	Wallet(ctx context.Context, accountID int64) (*domain.FiatWallet, error)
	Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal, currency, description string) error
	Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, currency, description string) error
}
