package model

import (
	"encoding/json"
	"time"
)

// PriceSnapshot is the set of prices observed in one fetch, in the order they were reported.
// The zero value is an empty snapshot. A snapshot is never modified after construction.
type PriceSnapshot struct {
	taken  time.Time
	quotes []PriceQuote
	index  map[Symbol]int
}

// NewPriceSnapshot copies quotes into a new snapshot. A symbol listed twice keeps its first
// position and its last price.
func NewPriceSnapshot(taken time.Time, quotes []PriceQuote) PriceSnapshot {
	s := PriceSnapshot{
		taken:  taken,
		quotes: make([]PriceQuote, 0, len(quotes)),
		index:  make(map[Symbol]int, len(quotes)),
	}
	for _, q := range quotes {
		if i, ok := s.index[q.Symbol]; ok {
			s.quotes[i].Price = q.Price
			continue
		}
		s.index[q.Symbol] = len(s.quotes)
		s.quotes = append(s.quotes, q)
	}
	return s
}

// Taken returns the time the prices were fetched.
func (s PriceSnapshot) Taken() time.Time { return s.taken }

// Len returns the number of symbols in the snapshot.
func (s PriceSnapshot) Len() int { return len(s.quotes) }

// Get returns the price of symbol, if present.
func (s PriceSnapshot) Get(symbol Symbol) (Price, bool) {
	i, ok := s.index[symbol]
	if !ok {
		return Price{}, false
	}
	return s.quotes[i].Price, true
}

// Quotes returns a copy of the quotes in snapshot order.
func (s PriceSnapshot) Quotes() []PriceQuote {
	out := make([]PriceQuote, len(s.quotes))
	copy(out, s.quotes)
	return out
}

// Symbols returns the snapshot's symbols in order.
func (s PriceSnapshot) Symbols() []Symbol {
	out := make([]Symbol, len(s.quotes))
	for i, q := range s.quotes {
		out[i] = q.Symbol
	}
	return out
}

func (s PriceSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Taken  time.Time    `json:"taken"`
		Quotes []PriceQuote `json:"quotes"`
	}{s.taken, s.Quotes()})
}
