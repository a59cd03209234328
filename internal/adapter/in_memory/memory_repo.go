package in_memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/olyamironova/cryptodesk/internal/domain"
	"github.com/olyamironova/cryptodesk/internal/port"
	"github.com/shopspring/decimal"
)

var _ port.Repository = (*MemoryRepo)(nil)

// MemoryRepo is the in-process Repository used by tests and local runs.
type MemoryRepo struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	receipts []*domain.TradeReceipt
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{balances: make(map[string]decimal.Decimal)}
}

func balanceKey(userID int64, symbol domain.Symbol) string {
	return fmt.Sprintf("%d|%s", userID, symbol)
}

func (r *MemoryRepo) Balance(ctx context.Context, userID int64, symbol domain.Symbol) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[balanceKey(userID, symbol)], nil
}

func (r *MemoryRepo) EnsureBalanceRows(ctx context.Context, userID int64, symbols []domain.Symbol) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range symbols {
		k := balanceKey(userID, s)
		if _, ok := r.balances[k]; !ok {
			r.balances[k] = decimal.Zero
		}
	}
	return nil
}

func (r *MemoryRepo) Balances(ctx context.Context, userID int64) (map[domain.Symbol]decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := fmt.Sprintf("%d|", userID)
	res := make(map[domain.Symbol]decimal.Decimal)
	for k, v := range r.balances {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			res[k[len(prefix):]] = v
		}
	}
	return res, nil
}

func (r *MemoryRepo) ReceiptsForUser(ctx context.Context, userID int64) ([]*domain.TradeReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*domain.TradeReceipt
	for _, t := range r.receipts {
		if t.UserID == userID {
			copy := *t
			res = append(res, &copy)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (r *MemoryRepo) BeginTx(ctx context.Context) (port.Tx, error) {
	return &memoryTx{repo: r, staged: make(map[string]decimal.Decimal)}, nil
}

// Receipts returns a copy of the full receipt log (test helper).
func (r *MemoryRepo) Receipts() []*domain.TradeReceipt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.TradeReceipt, len(r.receipts))
	copy(out, r.receipts)
	return out
}

var _ port.Tx = (*memoryTx)(nil)

// memoryTx stages balance mutations and receipts, applying them to the repo
// only on Commit. Rollback simply discards the stage.
type memoryTx struct {
	repo     *MemoryRepo
	staged   map[string]decimal.Decimal
	receipts []*domain.TradeReceipt
	done     bool
}

func (t *memoryTx) view(key string) decimal.Decimal {
	if v, ok := t.staged[key]; ok {
		return v
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	return t.repo.balances[key]
}

func (t *memoryTx) CreditBalance(ctx context.Context, userID int64, symbol domain.Symbol, qty decimal.Decimal) error {
	k := balanceKey(userID, symbol)
	t.staged[k] = t.view(k).Add(qty)
	return nil
}

func (t *memoryTx) DebitBalance(ctx context.Context, userID int64, symbol domain.Symbol, qty decimal.Decimal) error {
	k := balanceKey(userID, symbol)
	cur := t.view(k)
	if cur.LessThan(qty) {
		return domain.ErrInsufficientBalance
	}
	t.staged[k] = cur.Sub(qty)
	return nil
}

func (t *memoryTx) SaveReceipt(ctx context.Context, rec *domain.TradeReceipt) error {
	copy := *rec
	t.receipts = append(t.receipts, &copy)
	return nil
}

func (t *memoryTx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for k, v := range t.staged {
		t.repo.balances[k] = v
	}
	t.repo.receipts = append(t.repo.receipts, t.receipts...)
	return nil
}

func (t *memoryTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}
