package in_memory

import (
	"context"
	"sync"

	"github.com/olyamironova/cryptodesk/internal/domain"
	"github.com/olyamironova/cryptodesk/internal/port"
)

var _ port.QuoteStore = (*QuoteStore)(nil)

type QuoteStore struct {
	mu     sync.Mutex
	quotes map[domain.Symbol]domain.PriceQuote
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[domain.Symbol]domain.PriceQuote)}
}

func (s *QuoteStore) Quote(ctx context.Context, symbol domain.Symbol) (*domain.PriceQuote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[symbol]
	if !ok {
		return nil, nil
	}
	copy := q
	return &copy, nil
}

func (s *QuoteStore) Upsert(ctx context.Context, q *domain.PriceQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.Symbol] = *q
	return nil
}
