package domain

import "sort"

type Symbol = string

// SymbolSet is the enumerated whitelist of tradable assets. It is built once
// at construction and never mutated afterwards; extending it means a new
// deployment, not runtime state.
type SymbolSet struct {
	members map[Symbol]struct{}
	ordered []Symbol
}

func NewSymbolSet(symbols ...Symbol) SymbolSet {
	members := make(map[Symbol]struct{}, len(symbols))
	ordered := make([]Symbol, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := members[s]; ok {
			continue
		}
		members[s] = struct{}{}
		ordered = append(ordered, s)
	}
	sort.Strings(ordered)
	return SymbolSet{members: members, ordered: ordered}
}

// DefaultSymbols returns the stock whitelist.
func DefaultSymbols() SymbolSet {
	return NewSymbolSet("BTC", "ETH", "USDT")
}

func (s SymbolSet) Contains(sym Symbol) bool {
	_, ok := s.members[sym]
	return ok
}

// All returns the whitelist in stable (lexicographic) order.
func (s SymbolSet) All() []Symbol {
	out := make([]Symbol, len(s.ordered))
	copy(out, s.ordered)
	return out
}

func (s SymbolSet) Len() int { return len(s.ordered) }
