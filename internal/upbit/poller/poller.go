package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"upbitwatch/internal/upbit/delta"
	"upbitwatch/internal/upbit/memorystore"
	"upbitwatch/internal/upbit/model"

	"go.uber.org/zap"
)

var (
	ErrAlreadyStarted = errors.New("poller already started")
	ErrStopped        = errors.New("poller stopped")
)

// Exchange is the exchange boundary the poller consumes.
type Exchange interface {
	FetchBalances(ctx context.Context) ([]model.BalanceEntry, error)
	FetchPrices(ctx context.Context, symbols []model.Symbol) (model.PriceSnapshot, error)
	ListSymbols(ctx context.Context, quote string) ([]model.Symbol, error)
}

// SymbolSource provides the symbols to price on each cycle.
type SymbolSource interface {
	GetAll() []model.Symbol
}

// Publisher receives one event per successful cycle.
type Publisher interface {
	Publish(ev model.UpdateEvent)
}

// Config holds poller configuration.
type Config struct {
	Interval      time.Duration // tick interval (default: 1s)
	FetchTimeout  time.Duration // bound on one cycle's exchange calls (default: 5s)
	MaxBackoff    time.Duration // longest wait between attempts after repeated failures; <= Interval disables backoff
	ErrorBuffer   int           // capacity of the Errors channel (default: 16)
	QuoteCurrency string        // base fiat excluded from holdings (default: KRW)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:      time.Second,
		FetchTimeout:  5 * time.Second,
		MaxBackoff:    30 * time.Second,
		ErrorBuffer:   16,
		QuoteCurrency: "KRW",
	}
}

// Poller runs the fetch -> compute -> publish cycle on a fixed interval.
// It owns the PriceStore: nothing else writes to it.
type Poller struct {
	cfg      Config
	exchange Exchange
	symbols  SymbolSource
	store    *memorystore.PriceStore
	calc     *delta.Calculator
	pub      Publisher
	logger   *zap.Logger

	state   atomic.Int32
	cycles  atomic.Uint64
	skipped atomic.Uint64
	errCh   chan error

	// touched only by the run goroutine
	failures  int
	skipTicks int

	mu      sync.Mutex
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, exchange Exchange, symbols SymbolSource, store *memorystore.PriceStore, pub Publisher, logger *zap.Logger) *Poller {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.ErrorBuffer <= 0 {
		cfg.ErrorBuffer = def.ErrorBuffer
	}
	if cfg.QuoteCurrency == "" {
		cfg.QuoteCurrency = def.QuoteCurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Poller{
		cfg:      cfg,
		exchange: exchange,
		symbols:  symbols,
		store:    store,
		calc:     delta.NewCalculator(store),
		pub:      pub,
		logger:   logger,
		errCh:    make(chan error, cfg.ErrorBuffer),
		ctx:      context.Background(),
	}
}

// Start begins the polling loop. The first cycle runs immediately.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || p.State() == Stopped {
		return ErrStopped
	}
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("poller started",
		zap.Duration("interval", p.cfg.Interval),
		zap.Duration("fetch_timeout", p.cfg.FetchTimeout),
	)
	return nil
}

// Stop cancels the loop and waits for it to exit. A cycle in flight is abandoned
// without publishing or touching the store. The poller cannot be restarted.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	p.setState(Stopped)
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("poller stopped", zap.Uint64("cycles", p.cycles.Load()), zap.Uint64("skipped_ticks", p.skipped.Load()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Errors delivers every aborted cycle's error. Errors are dropped when nobody drains the channel.
func (p *Poller) Errors() <-chan error {
	return p.errCh
}

func (p *Poller) State() State {
	return State(p.state.Load())
}

// Cycles returns the number of published cycles.
func (p *Poller) Cycles() uint64 {
	return p.cycles.Load()
}

// Skipped returns the number of ticks skipped because a cycle was still running or backing off.
func (p *Poller) Skipped() uint64 {
	return p.skipped.Load()
}

// run exits when the context is done, whether Stop or the owner cancelled it.
func (p *Poller) run() {
	defer p.wg.Done()
	defer p.setState(Stopped)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.tick()
	p.drain(ticker.C)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.tick()
			p.drain(ticker.C)
		}
	}
}

// drain drops a tick that fired while the cycle was running, so slow fetches never queue up.
func (p *Poller) drain(c <-chan time.Time) {
	select {
	case <-c:
		p.skipped.Add(1)
		p.logger.Debug("tick skipped, previous cycle overran interval")
	default:
	}
}

func (p *Poller) tick() {
	if p.skipTicks > 0 {
		p.skipTicks--
		p.skipped.Add(1)
		return
	}

	err := p.runCycle(p.ctx)
	switch {
	case err == nil:
		p.failures = 0
	case p.ctx.Err() != nil:
		// stopping; the abandoned cycle is not an error
	default:
		p.failures++
		p.skipTicks = backoffTicks(p.failures, p.cfg.Interval, p.cfg.MaxBackoff)
		p.report(err)
	}
}

// runCycle performs one full cycle. On any error nothing is published and the store is untouched.
func (p *Poller) runCycle(ctx context.Context) error {
	defer p.setState(Idle)
	start := time.Now()

	p.setState(Fetching)
	fctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	balances, err := p.exchange.FetchBalances(fctx)
	if err != nil {
		cancel()
		return err
	}
	prices, err := p.exchange.FetchPrices(fctx, p.symbols.GetAll())
	cancel()
	if err != nil {
		return err
	}

	p.setState(Computing)
	records := p.calc.Compute(prices)
	holdings := delta.Holdings(balances, p.cfg.QuoteCurrency, records)

	if err := ctx.Err(); err != nil {
		return err
	}

	p.setState(Publishing)
	ev := model.UpdateEvent{
		Cycle:    p.cycles.Load() + 1,
		At:       time.Now(),
		Prices:   prices,
		Balances: balances,
		Deltas:   records,
		Holdings: holdings,
	}
	p.pub.Publish(ev)
	p.calc.Commit(prices)
	p.cycles.Store(ev.Cycle)

	p.logger.Debug("cycle complete",
		zap.Uint64("cycle", ev.Cycle),
		zap.Int("prices", prices.Len()),
		zap.Int("balances", len(balances)),
		zap.Int("holdings", len(holdings)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (p *Poller) report(err error) {
	p.logger.Warn("cycle aborted",
		zap.Int("consecutive_failures", p.failures),
		zap.Int("backoff_ticks", p.skipTicks),
		zap.Error(err),
	)
	select {
	case p.errCh <- err:
	default:
		p.logger.Debug("error channel full, dropping error")
	}
}

func (p *Poller) setState(s State) {
	// Stopped is terminal.
	for {
		cur := p.state.Load()
		if State(cur) == Stopped {
			return
		}
		if p.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// backoffTicks returns how many ticks to skip after the n-th consecutive failure:
// 0, 1, 3, 7, ... bounded so the wait between attempts stays within maxBackoff.
func backoffTicks(n int, interval, maxBackoff time.Duration) int {
	if n <= 1 || maxBackoff <= interval {
		return 0
	}
	limit := int(maxBackoff/interval) - 1
	skip := 1
	for i := 2; i < n && skip < limit; i++ {
		skip = skip*2 + 1
	}
	return min(skip, limit)
}
