package domain

// WalletActive is the only FiatWallet status trades may run against.
const WalletActive = "active"

// FiatWallet is the ledger-owned fiat account referenced by orders. The
// service never mutates it directly; movements go through the ledger port.
type FiatWallet struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// UsableBy reports whether the wallet may fund trades for the given user in
// the given fiat currency.
func (w *FiatWallet) UsableBy(userID int64, currency string) bool {
	return w != nil && w.UserID == userID && w.Currency == currency && w.Status == WalletActive
}
