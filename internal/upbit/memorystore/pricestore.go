package memorystore

import (
	"sync"

	"upbitwatch/internal/upbit/model"
)

// PriceStore keeps the last-known price per symbol. Symbols never observed are absent, not zero.
// Only the poller's cycle writes to it; the lock lets tests and diagnostics read while it runs.
type PriceStore struct {
	mu     sync.RWMutex
	prices map[model.Symbol]model.Price
}

func NewPriceStore() *PriceStore {
	return &PriceStore{
		prices: make(map[model.Symbol]model.Price),
	}
}

// Get returns the previous price of symbol, or false if it was never seen.
func (s *PriceStore) Get(symbol model.Symbol) (model.Price, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[symbol]
	return p, ok
}

func (s *PriceStore) Set(symbol model.Symbol, price model.Price) {
	s.mu.Lock()
	s.prices[symbol] = price
	s.mu.Unlock()
}

// SetAll records every quote of a snapshot under one lock. Symbols missing from
// the snapshot keep their last value.
func (s *PriceStore) SetAll(quotes []model.PriceQuote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range quotes {
		s.prices[q.Symbol] = q.Price
	}
}

func (s *PriceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prices)
}

// All returns a copy of the stored prices.
func (s *PriceStore) All() map[model.Symbol]model.Price {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[model.Symbol]model.Price, len(s.prices))
	for sym, p := range s.prices {
		out[sym] = p
	}
	return out
}
