package port

import (
	"context"

	"github.com/olyamironova/cryptodesk/internal/domain"
	"github.com/shopspring/decimal"
)

// QuoteStore persists the last known quote per symbol. One record per symbol,
// upsert discipline, last write wins.
type QuoteStore interface {
	// Quote returns the stored quote for symbol, or nil when none exists.
	Quote(ctx context.Context, symbol domain.Symbol) (*domain.PriceQuote, error)
	Upsert(ctx context.Context, q *domain.PriceQuote) error
}

// QuoteSource fetches current fiat prices from an external provider. The
// fetch must be bounded by the context deadline or the adapter's own timeout;
// it either prices every requested symbol or fails.
type QuoteSource interface {
	Fetch(ctx context.Context, symbols []domain.Symbol) (map[domain.Symbol]decimal.Decimal, error)
}
