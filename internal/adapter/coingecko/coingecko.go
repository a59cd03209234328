package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/olyamironova/cryptodesk/internal/domain"
	"github.com/olyamironova/cryptodesk/internal/port"
	"github.com/shopspring/decimal"
)

const DefaultBaseURL = "https://api.coingecko.com/api/v3"

var _ port.QuoteSource = (*Client)(nil)

// Client fetches spot prices from the CoinGecko simple/price endpoint. Every
// request is bounded by the HTTP client timeout, so a slow provider fails the
// order instead of hanging it.
type Client struct {
	baseURL    string
	vsCurrency string
	ids        map[domain.Symbol]string
	http       *http.Client
}

// DefaultSymbolIDs maps the stock whitelist to CoinGecko coin ids.
func DefaultSymbolIDs() map[domain.Symbol]string {
	return map[domain.Symbol]string{
		"BTC":  "bitcoin",
		"ETH":  "ethereum",
		"USDT": "tether",
	}
}

// NewClient builds a source for the given symbol→coin-id mapping; a nil or
// empty mapping falls back to DefaultSymbolIDs. Every configured whitelist
// symbol needs an id here, or its fetches fail.
func NewClient(baseURL, vsCurrency string, ids map[domain.Symbol]string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if len(ids) == 0 {
		ids = DefaultSymbolIDs()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		vsCurrency: strings.ToLower(vsCurrency),
		ids:        ids,
		http:       &http.Client{Timeout: timeout},
	}
}

// Covers reports whether the client can price the symbol.
func (c *Client) Covers(symbol domain.Symbol) bool {
	_, ok := c.ids[symbol]
	return ok
}

func (c *Client) Fetch(ctx context.Context, symbols []domain.Symbol) (map[domain.Symbol]decimal.Decimal, error) {
	ids := make([]string, 0, len(symbols))
	for _, s := range symbols {
		id, ok := c.ids[s]
		if !ok {
			return nil, fmt.Errorf("no provider id for symbol %s", s)
		}
		ids = append(ids, id)
	}

	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s",
		c.baseURL, url.QueryEscape(strings.Join(ids, ",")), url.QueryEscape(c.vsCurrency))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coingecko request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko responded %s", resp.Status)
	}

	var data map[string]map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("coingecko decode: %w", err)
	}

	out := make(map[domain.Symbol]decimal.Decimal, len(symbols))
	for _, s := range symbols {
		raw, ok := data[c.ids[s]][c.vsCurrency]
		if !ok {
			return nil, fmt.Errorf("price for %s not in response", s)
		}
		price, err := decimal.NewFromString(raw.String())
		if err != nil {
			return nil, fmt.Errorf("price for %s: %w", s, err)
		}
		out[s] = price
	}
	return out, nil
}
