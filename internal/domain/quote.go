package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// FiatPlaces is the fractional precision of fiat amounts (prices,
	// notionals, wallet movements).
	FiatPlaces int32 = 2
	// QuantityPlaces is the fractional precision of crypto quantities.
	QuantityPlaces int32 = 10
)

// PriceQuote is the last known fiat price for one symbol. One row per symbol,
// last write wins.
type PriceQuote struct {
	Symbol    Symbol          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Fresh reports whether the quote is young enough to serve without a refresh.
func (q *PriceQuote) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(q.FetchedAt) <= ttl
}
