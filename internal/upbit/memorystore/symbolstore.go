package memorystore

import (
	"sync"

	"upbitwatch/internal/upbit/model"
)

// SymbolStore holds the set of markets the poller asks prices for.
type SymbolStore struct {
	mu      sync.RWMutex
	symbols []model.Symbol
}

func NewSymbolStore() *SymbolStore {
	return &SymbolStore{
		symbols: make([]model.Symbol, 0),
	}
}

// Replace swaps the tracked set for symbols, dropping duplicates while keeping order.
func (s *SymbolStore) Replace(symbols []model.Symbol) {
	seen := make(map[model.Symbol]struct{}, len(symbols))
	next := make([]model.Symbol, 0, len(symbols))
	for _, sym := range symbols {
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		next = append(next, sym)
	}

	s.mu.Lock()
	s.symbols = next
	s.mu.Unlock()
}

// Load drains ch and then replaces the tracked set in one step, so readers never
// observe a half-loaded list. An empty stream (e.g. a failed reload) leaves the set
// unchanged. It returns the number of symbols received.
func (s *SymbolStore) Load(ch <-chan model.Symbol) int {
	var batch []model.Symbol
	for sym := range ch {
		batch = append(batch, sym)
	}
	if len(batch) > 0 {
		s.Replace(batch)
	}
	return len(batch)
}

// StartWorker runs Load in the background and reports the loaded count on the returned channel.
func (s *SymbolStore) StartWorker(ch <-chan model.Symbol) <-chan int {
	done := make(chan int, 1)
	go func() {
		done <- s.Load(ch)
	}()
	return done
}

func (s *SymbolStore) GetAll() []model.Symbol {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Symbol, len(s.symbols))
	copy(out, s.symbols)
	return out
}

func (s *SymbolStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.symbols)
}
