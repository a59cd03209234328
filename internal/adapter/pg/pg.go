package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/olyamironova/cryptodesk/internal/domain"
	"github.com/olyamironova/cryptodesk/internal/port"
	"github.com/shopspring/decimal"
)

var _ port.Repository = (*Repo)(nil)
var _ port.QuoteStore = (*Repo)(nil)

// Repo persists balances, trade receipts and price quotes in Postgres.
// Expected tables:
//
//	crypto_price_cache(symbol TEXT PRIMARY KEY, price NUMERIC(18,2) NOT NULL, fetched_at TIMESTAMPTZ NOT NULL)
//	crypto_balances(user_id BIGINT, symbol TEXT, balance NUMERIC(28,10) NOT NULL DEFAULT 0,
//	                created_at TIMESTAMPTZ DEFAULT NOW(), updated_at TIMESTAMPTZ DEFAULT NOW(),
//	                PRIMARY KEY(user_id, symbol))
//	crypto_trades(id UUID PRIMARY KEY, user_id BIGINT NOT NULL, symbol TEXT NOT NULL, side TEXT NOT NULL,
//	              quantity NUMERIC(28,10) NOT NULL, price NUMERIC(18,2) NOT NULL,
//	              notional NUMERIC(18,2) NOT NULL, created_at TIMESTAMPTZ NOT NULL)
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Connect builds the pool and the repo in one step; call Close when done.
func Connect(ctx context.Context, dsn string) (*Repo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func (r *Repo) Quote(ctx context.Context, symbol domain.Symbol) (*domain.PriceQuote, error) {
	var q domain.PriceQuote
	err := r.pool.QueryRow(ctx, `
SELECT symbol, price, fetched_at FROM crypto_price_cache WHERE symbol = $1
`, symbol).Scan(&q.Symbol, &q.Price, &q.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *Repo) Upsert(ctx context.Context, q *domain.PriceQuote) error {
	if q == nil {
		return errors.New("nil quote")
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO crypto_price_cache(symbol, price, fetched_at)
VALUES($1,$2,$3)
ON CONFLICT (symbol) DO UPDATE SET
  price = EXCLUDED.price,
  fetched_at = EXCLUDED.fetched_at
`, q.Symbol, q.Price, q.FetchedAt)
	return err
}

func (r *Repo) Balance(ctx context.Context, userID int64, symbol domain.Symbol) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := r.pool.QueryRow(ctx, `
SELECT balance FROM crypto_balances WHERE user_id = $1 AND symbol = $2
`, userID, symbol).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Decimal{}, err
	}
	return bal, nil
}

func (r *Repo) EnsureBalanceRows(ctx context.Context, userID int64, symbols []domain.Symbol) error {
	for _, s := range symbols {
		_, err := r.pool.Exec(ctx, `
INSERT INTO crypto_balances(user_id, symbol, balance)
VALUES($1,$2,0)
ON CONFLICT (user_id, symbol) DO NOTHING
`, userID, s)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) Balances(ctx context.Context, userID int64) (map[domain.Symbol]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `
SELECT symbol, balance FROM crypto_balances WHERE user_id = $1
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make(map[domain.Symbol]decimal.Decimal)
	for rows.Next() {
		var s domain.Symbol
		var bal decimal.Decimal
		if err := rows.Scan(&s, &bal); err != nil {
			return nil, err
		}
		res[s] = bal
	}
	return res, rows.Err()
}

func (r *Repo) ReceiptsForUser(ctx context.Context, userID int64) ([]*domain.TradeReceipt, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, symbol, side, quantity, price, notional, created_at
FROM crypto_trades
WHERE user_id = $1
ORDER BY created_at DESC
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.TradeReceipt
	for rows.Next() {
		var t domain.TradeReceipt
		var side string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &side, &t.Quantity, &t.Price, &t.Notional, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Side = domain.Side(side)
		res = append(res, &t)
	}
	return res, rows.Err()
}

func (r *Repo) BeginTx(ctx context.Context) (port.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

var _ port.Tx = (*Tx)(nil)

type Tx struct {
	tx pgx.Tx
}

func (t *Tx) CreditBalance(ctx context.Context, userID int64, symbol domain.Symbol, qty decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO crypto_balances(user_id, symbol, balance)
VALUES($1,$2,$3)
ON CONFLICT (user_id, symbol) DO UPDATE SET
  balance = crypto_balances.balance + EXCLUDED.balance,
  updated_at = NOW()
`, userID, symbol, qty)
	return err
}

// DebitBalance re-checks sufficiency inside the row update itself; the row
// lock taken by UPDATE serializes concurrent debits across processes.
func (t *Tx) DebitBalance(ctx context.Context, userID int64, symbol domain.Symbol, qty decimal.Decimal) error {
	res, err := t.tx.Exec(ctx, `
UPDATE crypto_balances
SET balance = balance - $3, updated_at = NOW()
WHERE user_id = $1 AND symbol = $2 AND balance >= $3
`, userID, symbol, qty)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}

func (t *Tx) SaveReceipt(ctx context.Context, rec *domain.TradeReceipt) error {
	if rec == nil {
		return errors.New("nil receipt")
	}
	_, err := t.tx.Exec(ctx, `
INSERT INTO crypto_trades(id, user_id, symbol, side, quantity, price, notional, created_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8)
`, rec.ID, rec.UserID, rec.Symbol, string(rec.Side), rec.Quantity, rec.Price, rec.Notional, rec.CreatedAt)
	return err
}

func (t *Tx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }
