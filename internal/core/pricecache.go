package core

import (
	"context"
	"fmt"
	"time"

	"github.com/olyamironova/cryptodesk/internal/domain"
	"github.com/olyamironova/cryptodesk/internal/port"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultPriceTTL bounds how old a stored quote may be before a refresh.
const DefaultPriceTTL = 30 * time.Second

// PriceCache serves fiat prices from the quote store and refreshes stale
// symbols from the external source in one batch. PriceCache is the sole
// writer of stored quotes; concurrent refreshes of the same symbol may
// overwrite each other, the most recent fetch wins.
type PriceCache struct {
	store  port.QuoteStore
	source port.QuoteSource
	ttl    time.Duration
	log    *zap.Logger

	now func() time.Time // injectable for tests
}

func NewPriceCache(store port.QuoteStore, source port.QuoteSource, ttl time.Duration, log *zap.Logger) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PriceCache{
		store:  store,
		source: source,
		ttl:    ttl,
		log:    log,
		now:    time.Now,
	}
}

// GetPrices returns a fiat price for every requested symbol. Stored quotes
// younger than the TTL are served as-is; everything else is fetched from the
// source in a single batch and upserted before returning. An incomplete
// provider response fails the whole call: the engine cannot act on a partial
// price set, so there is no partial credit.
func (c *PriceCache) GetPrices(ctx context.Context, symbols []domain.Symbol) (map[domain.Symbol]decimal.Decimal, error) {
	now := c.now()
	fresh := make(map[domain.Symbol]decimal.Decimal, len(symbols))
	var missing []domain.Symbol

	for _, s := range symbols {
		q, err := c.store.Quote(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("read quote for %s: %w", s, err)
		}
		if q != nil && q.Fresh(now, c.ttl) {
			fresh[s] = q.Price.Round(domain.FiatPlaces)
			continue
		}
		missing = append(missing, s)
	}

	if len(missing) == 0 {
		return fresh, nil
	}

	fetched, err := c.source.Fetch(ctx, missing)
	if err != nil {
		c.log.Warn("quote fetch failed", zap.Strings("symbols", missing), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrQuoteUnavailable, err)
	}
	// Validate the whole batch before touching the store: an incomplete or
	// malformed response must leave no partial writes behind.
	for _, s := range missing {
		price, ok := fetched[s]
		if !ok {
			return nil, fmt.Errorf("%w: no price for %s in provider response", domain.ErrQuoteUnavailable, s)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("%w: negative price for %s", domain.ErrQuoteUnavailable, s)
		}
	}
	for _, s := range missing {
		quantized := fetched[s].Round(domain.FiatPlaces)
		if err := c.store.Upsert(ctx, &domain.PriceQuote{Symbol: s, Price: quantized, FetchedAt: now}); err != nil {
			return nil, fmt.Errorf("store quote for %s: %w", s, err)
		}
		fresh[s] = quantized
	}

	return fresh, nil
}

// Price is the single-symbol convenience used by the order paths.
func (c *PriceCache) Price(ctx context.Context, symbol domain.Symbol) (decimal.Decimal, error) {
	prices, err := c.GetPrices(ctx, []domain.Symbol{symbol})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return prices[symbol], nil
}
