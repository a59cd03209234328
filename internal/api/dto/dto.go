package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type MarketBuyRequest struct {
	Symbol          string          `json:"symbol" binding:"required"`
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	WalletAccountID int64           `json:"wallet_account_id" binding:"required"`
}

type MarketSellRequest struct {
	Symbol          string          `json:"symbol" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity" binding:"required"`
	WalletAccountID int64           `json:"wallet_account_id" binding:"required"`
}

type TradeResponse struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Notional  decimal.Decimal `json:"notional"`
	CreatedAt time.Time       `json:"created_at"`
}

type PriceResponse struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

type BalanceItem struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
}

type BalancesResponse struct {
	Items      []BalanceItem   `json:"items"`
	TotalValue decimal.Decimal `json:"total_value"`
}

type HistoryResponse struct {
	Trades []TradeResponse `json:"trades"`
}
