package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/olyamironova/cryptodesk/internal/domain"
	"github.com/olyamironova/cryptodesk/internal/port"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine executes market orders against the fiat ledger and the crypto
// balance store, and values portfolios. It is the sole writer of balances and
// trade receipts.
type Engine struct {
	repo    port.Repository
	prices  *PriceCache
	ledger  port.Ledger
	symbols domain.SymbolSet
	fiat    string
	locks   *orderLocks
	log     *zap.Logger

	now func() time.Time
}

func NewEngine(repo port.Repository, prices *PriceCache, ledger port.Ledger, symbols domain.SymbolSet, fiatCurrency string, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		repo:    repo,
		prices:  prices,
		ledger:  ledger,
		symbols: symbols,
		fiat:    fiatCurrency,
		locks:   newOrderLocks(),
		log:     log,
		now:     time.Now,
	}
}

// Buy executes a market buy: withdraw fiatAmount from the wallet, credit the
// crypto bought at the current price, append a receipt. The crypto credit and
// the receipt commit as one transaction; if that transaction fails after the
// withdrawal succeeded, the withdrawal is compensated with a refund deposit.
func (e *Engine) Buy(ctx context.Context, userID int64, symbol domain.Symbol, fiatAmount decimal.Decimal, walletAccountID int64) (*domain.TradeReceipt, error) {
	if !e.symbols.Contains(symbol) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedSymbol, symbol)
	}
	if !fiatAmount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if err := e.checkWallet(ctx, userID, walletAccountID); err != nil {
		return nil, err
	}

	unlock := e.locks.lock(userID, symbol)
	defer unlock()

	price, err := e.prices.Price(ctx, symbol)
	if err != nil {
		return nil, err
	}
	// Truncation, not rounding: the fiat withdrawn must never be under-backed
	// by the crypto credited.
	qty := fiatAmount.Div(price).Truncate(domain.QuantityPlaces)

	desc := fmt.Sprintf("BUY %s (market)", symbol)
	if err := e.ledger.Withdraw(ctx, walletAccountID, fiatAmount, e.fiat, desc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLedgerRejected, err)
	}

	receipt := e.newReceipt(userID, symbol, domain.Buy, qty, price, fiatAmount)
	err = withTx(ctx, e.repo, func(tx port.Tx) error {
		if err := tx.CreditBalance(ctx, userID, symbol, qty); err != nil {
			return err
		}
		return tx.SaveReceipt(ctx, receipt)
	})
	if err != nil {
		e.compensate(ctx, walletAccountID, fiatAmount, fmt.Sprintf("REFUND %s", desc), e.ledger.Deposit)
		return nil, fmt.Errorf("apply buy: %w", err)
	}

	return receipt, nil
}

// Sell executes a market sell: debit the crypto sold, deposit the proceeds,
// append a receipt. The debit and receipt stay uncommitted until the deposit
// succeeds, so a rejected deposit rolls everything back; only a commit
// failure after a successful deposit needs a compensating withdrawal.
func (e *Engine) Sell(ctx context.Context, userID int64, symbol domain.Symbol, quantity decimal.Decimal, walletAccountID int64) (*domain.TradeReceipt, error) {
	if !e.symbols.Contains(symbol) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedSymbol, symbol)
	}
	if !quantity.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if err := e.checkWallet(ctx, userID, walletAccountID); err != nil {
		return nil, err
	}

	unlock := e.locks.lock(userID, symbol)
	defer unlock()

	held, err := e.repo.Balance(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}
	if held.LessThan(quantity) {
		return nil, fmt.Errorf("%w: have %s, want %s", domain.ErrInsufficientBalance, held, quantity)
	}

	price, err := e.prices.Price(ctx, symbol)
	if err != nil {
		return nil, err
	}
	// Standard rounding on proceeds; cent-level loss favors neither side.
	proceeds := quantity.Mul(price).Round(domain.FiatPlaces)

	desc := fmt.Sprintf("SELL %s (market)", symbol)
	receipt := e.newReceipt(userID, symbol, domain.Sell, quantity, price, proceeds)

	deposited := false
	err = withTx(ctx, e.repo, func(tx port.Tx) error {
		if err := tx.DebitBalance(ctx, userID, symbol, quantity); err != nil {
			return err
		}
		if err := tx.SaveReceipt(ctx, receipt); err != nil {
			return err
		}
		if err := e.ledger.Deposit(ctx, walletAccountID, proceeds, e.fiat, desc); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrLedgerRejected, err)
		}
		deposited = true
		return nil
	})
	if err != nil {
		if deposited {
			e.compensate(ctx, walletAccountID, proceeds, fmt.Sprintf("REVERSAL %s", desc), e.ledger.Withdraw)
		}
		return nil, fmt.Errorf("apply sell: %w", err)
	}

	return receipt, nil
}

// Balances values the user's portfolio against fresh prices. Every
// whitelisted symbol gets a line (zero rows are created when missing); the
// total is the sum of the rounded line values, so it always matches what is
// displayed.
func (e *Engine) Balances(ctx context.Context, userID int64) ([]domain.Position, decimal.Decimal, error) {
	whitelist := e.symbols.All()
	if err := e.repo.EnsureBalanceRows(ctx, userID, whitelist); err != nil {
		return nil, decimal.Decimal{}, err
	}
	held, err := e.repo.Balances(ctx, userID)
	if err != nil {
		return nil, decimal.Decimal{}, err
	}
	prices, err := e.prices.GetPrices(ctx, whitelist)
	if err != nil {
		return nil, decimal.Decimal{}, err
	}

	positions := make([]domain.Position, 0, len(whitelist))
	total := decimal.Zero
	for _, s := range whitelist {
		qty := held[s].Truncate(domain.QuantityPlaces)
		value := qty.Mul(prices[s]).Round(domain.FiatPlaces)
		positions = append(positions, domain.Position{
			Symbol:   s,
			Quantity: qty,
			Price:    prices[s],
			Value:    value,
		})
		total = total.Add(value)
	}
	return positions, total.Round(domain.FiatPlaces), nil
}

// Prices returns fresh quotes for the whole whitelist.
func (e *Engine) Prices(ctx context.Context) (map[domain.Symbol]decimal.Decimal, error) {
	return e.prices.GetPrices(ctx, e.symbols.All())
}

// History returns the user's trade receipts, newest first.
func (e *Engine) History(ctx context.Context, userID int64) ([]*domain.TradeReceipt, error) {
	return e.repo.ReceiptsForUser(ctx, userID)
}

func (e *Engine) checkWallet(ctx context.Context, userID, accountID int64) error {
	w, err := e.ledger.Wallet(ctx, accountID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidWallet, err)
	}
	if !w.UsableBy(userID, e.fiat) {
		return domain.ErrInvalidWallet
	}
	return nil
}

func (e *Engine) newReceipt(userID int64, symbol domain.Symbol, side domain.Side, qty, price, notional decimal.Decimal) *domain.TradeReceipt {
	return &domain.TradeReceipt{
		ID:        uuid.New().String(),
		UserID:    userID,
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Price:     price,
		Notional:  notional,
		CreatedAt: e.now(),
	}
}

type ledgerMove func(ctx context.Context, accountID int64, amount decimal.Decimal, currency, description string) error

// compensateTimeout bounds the reversal call on its own, since the order's
// deadline may already have passed.
const compensateTimeout = 10 * time.Second

// compensate reverses a ledger movement after the crypto-side step failed. A
// compensation that itself fails means fiat moved with no matching crypto
// mutation; that is logged loudly for manual intervention, it cannot be fixed
// from here.
func (e *Engine) compensate(ctx context.Context, accountID int64, amount decimal.Decimal, description string, move ledgerMove) {
	// The crypto-side step often fails precisely because the request context
	// died (client disconnect, timeout). The reversal must still go out, so
	// it runs detached from the request's cancellation.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	if err := move(ctx, accountID, amount, e.fiat, description); err != nil {
		e.log.Error("LEDGER COMPENSATION FAILED, funds inconsistent, manual intervention required",
			zap.Int64("account_id", accountID),
			zap.String("amount", amount.String()),
			zap.String("currency", e.fiat),
			zap.String("description", description),
			zap.Error(err),
		)
		return
	}
	e.log.Warn("ledger movement compensated", zap.Int64("account_id", accountID), zap.String("description", description))
}
