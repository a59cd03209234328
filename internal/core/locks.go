package core

import (
	"fmt"
	"sync"

	"github.com/olyamironova/cryptodesk/internal/domain"
)

// orderLocks serializes orders per (user, symbol). Two concurrent sells for
// the same balance row must not both observe a sufficient balance before
// either debits; orders touching different rows proceed in parallel. Lock
// entries are never evicted: the key space is users × whitelist, small by
// construction.
type orderLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *orderLocks) lock(userID int64, symbol domain.Symbol) func() {
	key := fmt.Sprintf("%d|%s", userID, symbol)
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
