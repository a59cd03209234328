package domain

import "errors"

// Business failure kinds surfaced to callers. Wrap with fmt.Errorf("...: %w")
// to add context; match with errors.Is.
var (
	ErrUnsupportedSymbol   = errors.New("unsupported symbol")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidWallet       = errors.New("invalid fiat wallet account")
	ErrQuoteUnavailable    = errors.New("quote unavailable")
	ErrInsufficientBalance = errors.New("insufficient crypto balance")
	ErrLedgerRejected      = errors.New("ledger rejected the movement")
)
