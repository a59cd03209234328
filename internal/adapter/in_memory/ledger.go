package in_memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/olyamironova/cryptodesk/internal/domain"
	"github.com/olyamironova/cryptodesk/internal/port"
	"github.com/shopspring/decimal"
)

var _ port.Ledger = (*Ledger)(nil)

// Ledger is an in-process stand-in for the fiat ledger service. Withdrawals
// and deposits are all-or-nothing, like the real contract.
type Ledger struct {
	mu       sync.Mutex
	wallets  map[int64]domain.FiatWallet
	balances map[int64]decimal.Decimal
}

func NewLedger() *Ledger {
	return &Ledger{
		wallets:  make(map[int64]domain.FiatWallet),
		balances: make(map[int64]decimal.Decimal),
	}
}

// AddWallet registers a wallet with an opening balance.
func (l *Ledger) AddWallet(w domain.FiatWallet, opening decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wallets[w.ID] = w
	l.balances[w.ID] = opening
}

func (l *Ledger) Wallet(ctx context.Context, accountID int64) (*domain.FiatWallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[accountID]
	if !ok {
		return nil, fmt.Errorf("account %d not found", accountID)
	}
	copy := w
	return &copy, nil
}

func (l *Ledger) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal, currency, description string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[accountID]
	if !ok {
		return fmt.Errorf("account %d not found", accountID)
	}
	if w.Currency != currency {
		return fmt.Errorf("account %d is not denominated in %s", accountID, currency)
	}
	if w.Status != domain.WalletActive {
		return fmt.Errorf("account %d is not active", accountID)
	}
	if l.balances[accountID].LessThan(amount) {
		return fmt.Errorf("insufficient funds in account %d", accountID)
	}
	l.balances[accountID] = l.balances[accountID].Sub(amount)
	return nil
}

func (l *Ledger) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, currency, description string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[accountID]
	if !ok {
		return fmt.Errorf("account %d not found", accountID)
	}
	if w.Currency != currency {
		return fmt.Errorf("account %d is not denominated in %s", accountID, currency)
	}
	if w.Status != domain.WalletActive {
		return fmt.Errorf("account %d is not active", accountID)
	}
	l.balances[accountID] = l.balances[accountID].Add(amount)
	return nil
}

// FiatBalance reports the current wallet balance (test helper).
func (l *Ledger) FiatBalance(accountID int64) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[accountID]
}
