package snapshot

import (
	"context"
	"errors"
	"testing"

	"upbitwatch/internal/upbit/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	symbols []model.Symbol
	err     error
	calls   int
}

func (f *fakeLister) ListSymbols(_ context.Context, quote string) ([]model.Symbol, error) {
	f.calls++
	return f.symbols, f.err
}

func collect(ch <-chan model.Symbol) []model.Symbol {
	var out []model.Symbol
	for s := range ch {
		out = append(out, s)
	}
	return out
}

// go test -v --run TestLoadSymbolsFromExchange
func TestLoadSymbolsFromExchange(t *testing.T) {
	lister := &fakeLister{symbols: []model.Symbol{"KRW-BTC", "KRW-ETH"}}
	l := &SymbolLoader{Lister: lister, Quote: "KRW"}

	ch := make(chan model.Symbol, 10)
	require.NoError(t, l.LoadSymbols(context.Background(), ch))
	assert.Equal(t, []model.Symbol{"KRW-BTC", "KRW-ETH"}, collect(ch))
}

// go test -v --run TestLoadSymbolsWatchList
func TestLoadSymbolsWatchList(t *testing.T) {
	lister := &fakeLister{}
	l := &SymbolLoader{Lister: lister, Quote: "KRW", Watch: []string{"KRW-XRP"}}

	ch := make(chan model.Symbol, 10)
	require.NoError(t, l.LoadSymbols(context.Background(), ch))
	assert.Equal(t, []model.Symbol{"KRW-XRP"}, collect(ch))
	assert.Zero(t, lister.calls)
}

// go test -v --run TestLoadSymbolsError
func TestLoadSymbolsError(t *testing.T) {
	boom := errors.New("boom")
	l := &SymbolLoader{Lister: &fakeLister{err: boom}, Quote: "KRW"}

	ch := make(chan model.Symbol, 1)
	assert.ErrorIs(t, l.LoadSymbols(context.Background(), ch), boom)
	assert.Empty(t, collect(ch), "channel must be closed")
}

// go test -v --run TestLoadSymbolsCancelled
func TestLoadSymbolsCancelled(t *testing.T) {
	l := &SymbolLoader{Lister: &fakeLister{symbols: []model.Symbol{"KRW-BTC", "KRW-ETH"}}, Quote: "KRW"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch := make(chan model.Symbol) // unbuffered, nobody reading
	err := l.LoadSymbols(ctx, ch)
	assert.ErrorIs(t, err, context.Canceled)
}
