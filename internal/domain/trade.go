package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// TradeReceipt is the immutable record of one executed market order. Receipts
// are append-only: written exactly once per successful order, never updated.
type TradeReceipt struct {
	ID        string          `json:"id"`
	UserID    int64           `json:"user_id"`
	Symbol    Symbol          `json:"symbol"`
	Side      Side            `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Notional  decimal.Decimal `json:"notional"`
	CreatedAt time.Time       `json:"created_at"`
}

// Position is one line of a user's portfolio valuation.
type Position struct {
	Symbol   Symbol          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
}
