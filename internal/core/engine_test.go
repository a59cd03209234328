package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/olyamironova/cryptodesk/internal/adapter/in_memory"
	"github.com/olyamironova/cryptodesk/internal/domain"
	"github.com/olyamironova/cryptodesk/internal/port"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testUser   int64 = 7
	testWallet int64 = 42
)

type testEnv struct {
	engine *Engine
	repo   *in_memory.MemoryRepo
	ledger *in_memory.Ledger
	source *fakeSource
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := in_memory.NewMemoryRepo()
	source := &fakeSource{prices: map[domain.Symbol]decimal.Decimal{
		"BTC":  dec("50000"),
		"ETH":  dec("3000"),
		"USDT": dec("510.50"),
	}}
	prices := NewPriceCache(in_memory.NewQuoteStore(), source, DefaultPriceTTL, zap.NewNop())
	fiat := in_memory.NewLedger()
	fiat.AddWallet(domain.FiatWallet{ID: testWallet, UserID: testUser, Currency: "KZT", Status: domain.WalletActive}, dec("100000"))
	engine := NewEngine(repo, prices, fiat, domain.DefaultSymbols(), "KZT", zap.NewNop())
	return &testEnv{engine: engine, repo: repo, ledger: fiat, source: source}
}

func (env *testEnv) creditCrypto(t *testing.T, symbol domain.Symbol, qty decimal.Decimal) {
	t.Helper()
	ctx := context.Background()
	tx, err := env.repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreditBalance(ctx, testUser, symbol, qty))
	require.NoError(t, tx.Commit(ctx))
}

func TestBuyHappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	receipt, err := env.engine.Buy(ctx, testUser, "BTC", dec("10000"), testWallet)
	require.NoError(t, err)

	require.Equal(t, domain.Buy, receipt.Side)
	require.True(t, receipt.Quantity.Equal(dec("0.2")), "quantity %s", receipt.Quantity)
	require.True(t, receipt.Price.Equal(dec("50000")))
	require.True(t, receipt.Notional.Equal(dec("10000")))

	bal, err := env.repo.Balance(ctx, testUser, "BTC")
	require.NoError(t, err)
	require.True(t, bal.Equal(dec("0.2")))
	require.True(t, env.ledger.FiatBalance(testWallet).Equal(dec("90000")))
	require.Len(t, env.repo.Receipts(), 1)
}

func TestBuyTruncatesQuantity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 10000 / 3000 = 3.3333... — truncated, never rounded up.
	receipt, err := env.engine.Buy(ctx, testUser, "ETH", dec("10000"), testWallet)
	require.NoError(t, err)
	require.True(t, receipt.Quantity.Equal(dec("3.3333333333")), "quantity %s", receipt.Quantity)
	// The crypto credited never overbacks the fiat withdrawn.
	require.True(t, receipt.Quantity.Mul(receipt.Price).LessThanOrEqual(dec("10000")))
}

func TestBuyRejectsUnsupportedSymbolBeforeAnyExternalCall(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Buy(context.Background(), testUser, "DOGE", dec("100"), testWallet)
	require.ErrorIs(t, err, domain.ErrUnsupportedSymbol)
	require.Equal(t, 0, env.source.calls)
	require.True(t, env.ledger.FiatBalance(testWallet).Equal(dec("100000")))
}

func TestBuyRejectsNonPositiveAmount(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Buy(context.Background(), testUser, "BTC", dec("0"), testWallet)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = env.engine.Buy(context.Background(), testUser, "BTC", dec("-5"), testWallet)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestOrderRejectsBadWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.ledger.AddWallet(domain.FiatWallet{ID: 50, UserID: 99, Currency: "KZT", Status: domain.WalletActive}, dec("100"))
	env.ledger.AddWallet(domain.FiatWallet{ID: 51, UserID: testUser, Currency: "USD", Status: domain.WalletActive}, dec("100"))
	env.ledger.AddWallet(domain.FiatWallet{ID: 52, UserID: testUser, Currency: "KZT", Status: "frozen"}, dec("100"))

	for _, accountID := range []int64{50, 51, 52, 999} {
		_, err := env.engine.Buy(ctx, testUser, "BTC", dec("100"), accountID)
		require.ErrorIs(t, err, domain.ErrInvalidWallet, "account %d", accountID)
	}
}

func TestBuyLedgerRejectionLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.Buy(ctx, testUser, "BTC", dec("999999"), testWallet)
	require.ErrorIs(t, err, domain.ErrLedgerRejected)

	bal, err := env.repo.Balance(ctx, testUser, "BTC")
	require.NoError(t, err)
	require.True(t, bal.IsZero())
	require.Empty(t, env.repo.Receipts())
	require.True(t, env.ledger.FiatBalance(testWallet).Equal(dec("100000")))
}

func TestSellHappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.creditCrypto(t, "BTC", dec("0.2"))

	receipt, err := env.engine.Sell(ctx, testUser, "BTC", dec("0.2"), testWallet)
	require.NoError(t, err)

	require.Equal(t, domain.Sell, receipt.Side)
	require.True(t, receipt.Quantity.Equal(dec("0.2")))
	require.True(t, receipt.Notional.Equal(dec("10000.00")), "notional %s", receipt.Notional)

	bal, err := env.repo.Balance(ctx, testUser, "BTC")
	require.NoError(t, err)
	require.True(t, bal.IsZero())
	require.True(t, env.ledger.FiatBalance(testWallet).Equal(dec("110000")))
}

func TestSellRoundsProceeds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.creditCrypto(t, "USDT", dec("1.005"))

	// 1.005 × 510.50 = 513.0525 → 513.05
	receipt, err := env.engine.Sell(ctx, testUser, "USDT", dec("1.005"), testWallet)
	require.NoError(t, err)
	require.True(t, receipt.Notional.Equal(dec("513.05")), "notional %s", receipt.Notional)
}

func TestSellInsufficientBalanceHasNoSideEffects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.creditCrypto(t, "BTC", dec("0.1"))

	_, err := env.engine.Sell(ctx, testUser, "BTC", dec("0.2"), testWallet)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	bal, err := env.repo.Balance(ctx, testUser, "BTC")
	require.NoError(t, err)
	require.True(t, bal.Equal(dec("0.1")))
	require.Empty(t, env.repo.Receipts())
	require.True(t, env.ledger.FiatBalance(testWallet).Equal(dec("100000")))
}

// failingDepositLedger refuses deposits; everything else passes through.
type failingDepositLedger struct {
	port.Ledger
}

func (l *failingDepositLedger) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, currency, description string) error {
	return errors.New("ledger outage")
}

func TestSellDepositFailureRollsBackDebit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.creditCrypto(t, "BTC", dec("0.2"))

	engine := NewEngine(env.repo, env.engine.prices, &failingDepositLedger{Ledger: env.ledger}, domain.DefaultSymbols(), "KZT", zap.NewNop())
	_, err := engine.Sell(ctx, testUser, "BTC", dec("0.2"), testWallet)
	require.ErrorIs(t, err, domain.ErrLedgerRejected)

	// Debit and receipt rolled back together.
	bal, err := env.repo.Balance(ctx, testUser, "BTC")
	require.NoError(t, err)
	require.True(t, bal.Equal(dec("0.2")))
	require.Empty(t, env.repo.Receipts())
	require.True(t, env.ledger.FiatBalance(testWallet).Equal(dec("100000")))
}

// brokenRepo fails every transaction at the receipt step.
type brokenRepo struct {
	*in_memory.MemoryRepo
}

func (r *brokenRepo) BeginTx(ctx context.Context) (port.Tx, error) {
	tx, err := r.MemoryRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &brokenTx{Tx: tx}, nil
}

type brokenTx struct {
	port.Tx
}

func (t *brokenTx) SaveReceipt(ctx context.Context, rec *domain.TradeReceipt) error {
	return errors.New("disk full")
}

func TestBuyCompensatesWithdrawalWhenTxFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	engine := NewEngine(&brokenRepo{MemoryRepo: env.repo}, env.engine.prices, env.ledger, domain.DefaultSymbols(), "KZT", zap.NewNop())
	_, err := engine.Buy(ctx, testUser, "BTC", dec("10000"), testWallet)
	require.Error(t, err)

	// The withdrawal was refunded; no crypto credited, no receipt written.
	require.True(t, env.ledger.FiatBalance(testWallet).Equal(dec("100000")))
	bal, err := env.repo.Balance(ctx, testUser, "BTC")
	require.NoError(t, err)
	require.True(t, bal.IsZero())
	require.Empty(t, env.repo.Receipts())
}

// contextAwareLedger refuses movements once their context is done, like the
// real HTTP client does.
type contextAwareLedger struct {
	port.Ledger
}

func (l *contextAwareLedger) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, currency, description string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.Ledger.Deposit(ctx, accountID, amount, currency, description)
}

// cancellingRepo cancels the order's request context before failing the
// receipt step, the way an aborted request surfaces mid-transaction.
type cancellingRepo struct {
	*in_memory.MemoryRepo
	cancel context.CancelFunc
}

func (r *cancellingRepo) BeginTx(ctx context.Context) (port.Tx, error) {
	tx, err := r.MemoryRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &cancellingTx{Tx: tx, cancel: r.cancel}, nil
}

type cancellingTx struct {
	port.Tx
	cancel context.CancelFunc
}

func (t *cancellingTx) SaveReceipt(ctx context.Context, rec *domain.TradeReceipt) error {
	t.cancel()
	return errors.New("request aborted")
}

func TestBuyCompensationSurvivesCancelledRequestContext(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := &cancellingRepo{MemoryRepo: env.repo, cancel: cancel}
	fiat := &contextAwareLedger{Ledger: env.ledger}
	engine := NewEngine(repo, env.engine.prices, fiat, domain.DefaultSymbols(), "KZT", zap.NewNop())

	_, err := engine.Buy(ctx, testUser, "BTC", dec("10000"), testWallet)
	require.Error(t, err)

	// The refund went out even though the request context was already dead.
	require.True(t, env.ledger.FiatBalance(testWallet).Equal(dec("100000")),
		"wallet %s", env.ledger.FiatBalance(testWallet))
	bal, err := env.repo.Balance(context.Background(), testUser, "BTC")
	require.NoError(t, err)
	require.True(t, bal.IsZero())
	require.Empty(t, env.repo.Receipts())
}

func TestBalancesCreatesZeroRowsAndSumsLineValues(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	positions, total, err := env.engine.Balances(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, positions, 3)
	for _, p := range positions {
		require.True(t, p.Quantity.IsZero())
		require.True(t, p.Value.IsZero())
	}
	require.True(t, total.IsZero())

	// Idempotent while nothing trades in between.
	_, again, err := env.engine.Balances(ctx, testUser)
	require.NoError(t, err)
	require.True(t, total.Equal(again))
}

func TestBalancesValuesPortfolio(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.creditCrypto(t, "BTC", dec("0.2"))
	env.creditCrypto(t, "ETH", dec("1.5"))

	positions, total, err := env.engine.Balances(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, positions, 3)

	bySymbol := make(map[domain.Symbol]domain.Position)
	sum := decimal.Zero
	for _, p := range positions {
		bySymbolValue := p.Quantity.Mul(p.Price).Round(domain.FiatPlaces)
		require.True(t, p.Value.Equal(bySymbolValue))
		bySymbol[p.Symbol] = p
		sum = sum.Add(p.Value)
	}
	require.True(t, bySymbol["BTC"].Value.Equal(dec("10000.00")))
	require.True(t, bySymbol["ETH"].Value.Equal(dec("4500.00")))
	// The total is the sum of the displayed lines, not a re-rounded sum.
	require.True(t, total.Equal(sum))
	require.True(t, total.Equal(dec("14500.00")))
}

func TestHistoryReturnsReceipts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.Buy(ctx, testUser, "BTC", dec("10000"), testWallet)
	require.NoError(t, err)
	_, err = env.engine.Sell(ctx, testUser, "BTC", dec("0.1"), testWallet)
	require.NoError(t, err)

	trades, err := env.engine.History(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, trades, 2)
}

func TestConcurrentSellsNeverDoubleSpend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.creditCrypto(t, "BTC", dec("0.2"))

	// Only one of the two sells fits in the balance.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.engine.Sell(ctx, testUser, "BTC", dec("0.15"), testWallet)
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, insufficient)

	bal, err := env.repo.Balance(ctx, testUser, "BTC")
	require.NoError(t, err)
	require.True(t, bal.Equal(dec("0.05")), "balance %s", bal)
	require.Len(t, env.repo.Receipts(), 1)
	require.True(t, env.ledger.FiatBalance(testWallet).Equal(dec("107500")))
}
