package symbolmeta

import (
	"context"
	"sync"
	"time"

	"upbitwatch/internal/upbit/model"
	"upbitwatch/internal/upbit/snapshot"

	"go.uber.org/zap"
)

// DailyRefresher reloads the tracked market list at every UTC midnight.
type DailyRefresher struct {
	Load   func(ctx context.Context) <-chan model.Symbol
	Logger *zap.Logger

	// after is time.After; replaced in tests.
	after func(d time.Duration) <-chan time.Time
	now   func() time.Time

	wg sync.WaitGroup
}

func DefaultLoadFn(loader *snapshot.SymbolLoader) func(ctx context.Context) <-chan model.Symbol {
	return func(ctx context.Context) <-chan model.Symbol {
		symbolCh := make(chan model.Symbol, 100)

		go func() {
			if err := loader.LoadSymbols(ctx, symbolCh); err != nil && loader.Logger != nil {
				loader.Logger.Warn("symbol refresh failed, keeping previous set", zap.Error(err))
			}
		}()

		return symbolCh
	}
}

// RunOnce loads the symbols and hands the stream to proc, blocking until proc returns.
func (r *DailyRefresher) RunOnce(ctx context.Context, proc func(<-chan model.Symbol)) {
	proc(r.Load(ctx))
}

// Start schedules proc to run at the next UTC midnight and then every 24 hours
// until ctx is done. Call Wait to block until the scheduling goroutine exits.
func (r *DailyRefresher) Start(ctx context.Context, proc func(<-chan model.Symbol)) {
	after := r.after
	if after == nil {
		after = time.After
	}
	now := r.now
	if now == nil {
		now = time.Now
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			wait := untilNextMidnight(now())
			logger.Debug("next symbol refresh scheduled", zap.Duration("in", wait))

			select {
			case <-ctx.Done():
				return
			case <-after(wait):
			}
			r.RunOnce(ctx, proc)
		}
	}()
}

func (r *DailyRefresher) Wait() {
	r.wg.Wait()
}

func untilNextMidnight(t time.Time) time.Duration {
	t = t.UTC()
	next := t.Truncate(24 * time.Hour).Add(24 * time.Hour)
	return next.Sub(t)
}
