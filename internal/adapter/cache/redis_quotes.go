package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/olyamironova/cryptodesk/internal/domain"
	"github.com/olyamironova/cryptodesk/internal/port"
	"github.com/redis/go-redis/v9"
)

var _ port.QuoteStore = (*RedisQuotes)(nil)

// RedisQuotes keeps the per-symbol quote records in Redis. Freshness is
// decided by the price cache from FetchedAt, not by key expiry; retention
// only bounds how long a dead symbol lingers (0 keeps records forever).
type RedisQuotes struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisQuotes(addr, password string, db int, retention time.Duration) *RedisQuotes {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisQuotes{
		client:    rdb,
		retention: retention,
	}
}

func key(symbol domain.Symbol) string { return "quote:" + symbol }

func (c *RedisQuotes) Quote(ctx context.Context, symbol domain.Symbol) (*domain.PriceQuote, error) {
	b, err := c.client.Get(ctx, key(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var q domain.PriceQuote
	if err := json.Unmarshal(b, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (c *RedisQuotes) Upsert(ctx context.Context, q *domain.PriceQuote) error {
	b, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(q.Symbol), b, c.retention).Err()
}

func (c *RedisQuotes) Close() error { return c.client.Close() }
