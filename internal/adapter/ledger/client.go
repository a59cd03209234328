package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/olyamironova/cryptodesk/internal/domain"
	"github.com/olyamironova/cryptodesk/internal/port"
	"github.com/shopspring/decimal"
)

var _ port.Ledger = (*Client)(nil)

// Client talks to the fiat ledger service over HTTP. The ledger guarantees
// each movement is atomic and durable once it answers 2xx; this client only
// carries the request and maps refusals to errors.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type movementRequest struct {
	AccountID   int64           `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
}

func (c *Client) Wallet(ctx context.Context, accountID int64) (*domain.FiatWallet, error) {
	u := fmt.Sprintf("%s/accounts/%d", c.baseURL, accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ledger request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ledger responded %s: %s", resp.Status, readBody(resp.Body))
	}
	var w domain.FiatWallet
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return nil, fmt.Errorf("ledger decode: %w", err)
	}
	return &w, nil
}

func (c *Client) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal, currency, description string) error {
	return c.move(ctx, "/transactions/withdrawal", accountID, amount, currency, description)
}

func (c *Client) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, currency, description string) error {
	return c.move(ctx, "/transactions/deposit", accountID, amount, currency, description)
}

func (c *Client) move(ctx context.Context, path string, accountID int64, amount decimal.Decimal, currency, description string) error {
	body, err := json.Marshal(movementRequest{
		AccountID:   accountID,
		Amount:      amount,
		Currency:    currency,
		Description: description,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("ledger responded %s: %s", resp.Status, readBody(resp.Body))
	}
	return nil
}

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
