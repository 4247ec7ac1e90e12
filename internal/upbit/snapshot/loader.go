package snapshot

import (
	"context"
	"time"

	"upbitwatch/internal/upbit/model"

	"go.uber.org/zap"
)

// Lister returns the tradable markets for a quote currency.
type Lister interface {
	ListSymbols(ctx context.Context, quote string) ([]model.Symbol, error)
}

type SymbolLoader struct {
	Lister  Lister
	Quote   string
	Watch   []string // fixed allow-list; when set, the exchange is not asked
	Timeout time.Duration
	Logger  *zap.Logger
}

// LoadSymbols fetches the markets traded against the quote currency
// and streams them into the provided channel.
// The channel is always closed so consumers can exit cleanly.
func (l *SymbolLoader) LoadSymbols(ctx context.Context, ch chan<- model.Symbol) error {
	defer close(ch)

	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	symbols, err := l.symbols(ctx)
	if err != nil {
		logger.Error("failed to load symbols", zap.String("quote", l.Quote), zap.Error(err))
		return err
	}
	logger.Info("loaded symbols", zap.Int("count", len(symbols)))

	for _, sym := range symbols {
		select {
		case ch <- sym:
		case <-ctx.Done():
			logger.Warn("symbol streaming interrupted", zap.Error(ctx.Err()))
			return ctx.Err()
		}
	}
	return nil
}

func (l *SymbolLoader) symbols(ctx context.Context) ([]model.Symbol, error) {
	if len(l.Watch) > 0 {
		out := make([]model.Symbol, len(l.Watch))
		for i, s := range l.Watch {
			out[i] = model.Symbol(s)
		}
		return out, nil
	}

	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}
	return l.Lister.ListSymbols(ctx, l.Quote)
}
