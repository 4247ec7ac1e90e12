package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"upbitwatch/config"
	"upbitwatch/internal/upbit/eventbus"
	"upbitwatch/internal/upbit/exchange"
	"upbitwatch/internal/upbit/memorystore"
	"upbitwatch/internal/upbit/model"
	"upbitwatch/internal/upbit/poller"
	"upbitwatch/internal/upbit/sink"
	"upbitwatch/internal/upbit/snapshot"
	"upbitwatch/internal/upbit/stream"
	"upbitwatch/internal/upbit/symbolmeta"
	"upbitwatch/pkg/storage/postgres"
	"upbitwatch/pkg/upbit"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	sinkBuffer      = 8
	shutdownTimeout = 5 * time.Second
)

// ErrNoSymbols is returned by Run when the initial market load yields nothing to poll.
var ErrNoSymbols = errors.New("no symbols to track")

// Watcher wires the poller, the event bus and every enabled consumer.
type Watcher struct {
	cfg    *config.Config
	logger *zap.Logger

	adapter   *exchange.Adapter
	symbols   *memorystore.SymbolStore
	prices    *memorystore.PriceStore
	bus       *eventbus.Bus
	poller    *poller.Poller
	refresher *symbolmeta.DailyRefresher

	consoleOut io.Writer
	feed       *stream.Broadcaster
	server     *http.Server
	listener   net.Listener

	// closed in reverse order on shutdown
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

type Option func(*Watcher)

// WithConsoleOutput sends the console tables to w instead of stdout.
func WithConsoleOutput(w io.Writer) Option {
	return func(wt *Watcher) { wt.consoleOut = w }
}

// New builds the pipeline. Sinks that need a connection (Redis, Postgres) are
// connected here, so a misconfigured sink fails before polling starts.
func New(cfg *config.Config, creds config.Credentials, logger *zap.Logger, opts ...Option) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		cfg:        cfg,
		logger:     logger,
		consoleOut: os.Stdout,
		symbols:    memorystore.NewSymbolStore(),
		prices:     memorystore.NewPriceStore(),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.adapter = newAdapter(cfg, creds)

	w.bus = eventbus.New(eventbus.WithLogger(logger.Named("bus")))

	loader := &snapshot.SymbolLoader{
		Lister:  w.adapter,
		Quote:   cfg.Upbit.QuoteCurrency,
		Watch:   cfg.Symbols.Watch,
		Timeout: cfg.Upbit.REST.Timeout,
		Logger:  logger.Named("symbols"),
	}
	w.refresher = &symbolmeta.DailyRefresher{
		Load:   symbolmeta.DefaultLoadFn(loader),
		Logger: logger.Named("symbols"),
	}

	w.poller = poller.New(poller.Config{
		Interval:      cfg.Poller.Interval,
		FetchTimeout:  cfg.Poller.FetchTimeout,
		MaxBackoff:    cfg.Poller.MaxBackoff,
		ErrorBuffer:   cfg.Poller.ErrorBuffer,
		QuoteCurrency: cfg.Upbit.QuoteCurrency,
	}, w.adapter, w.symbols, w.prices, w.bus, logger.Named("poller"))

	if err := w.attachConsumers(); err != nil {
		w.closeAll()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) attachConsumers() error {
	cfg := w.cfg

	if cfg.Console.Enabled {
		console := sink.NewConsole(w.consoleOut, cfg.Upbit.QuoteCurrency, cfg.Console.Limit)
		w.bus.Subscribe("console", console.OnUpdate)
	}

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		w.closers = append(w.closers, namedCloser{"redis", rdb.Close})

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Upbit.REST.Timeout)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		w.bus.SubscribeAsync("redis", sink.NewRedis(rdb, cfg.Redis.TTL, w.logger.Named("redis")).OnUpdate, sinkBuffer)
	}

	if cfg.Kafka.Enabled {
		k := sink.NewKafka(sink.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), w.logger.Named("kafka"))
		w.closers = append(w.closers, namedCloser{"kafka", k.Close})
		w.bus.SubscribeAsync("kafka", k.OnUpdate, sinkBuffer)
	}

	if cfg.Postgres.Enabled {
		db, err := postgres.InitializeAndMigrate(cfg.Postgres, cfg.Log.Environment, true)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		w.closers = append(w.closers, namedCloser{"postgres", db.Close})
		w.bus.SubscribeAsync("postgres", sink.NewPostgres(db, w.logger.Named("postgres")).OnUpdate, sinkBuffer)
	}

	if cfg.Feed.Enabled {
		w.feed = stream.NewBroadcaster(cfg.Feed.Buffer, w.bus.Last, w.logger.Named("feed"))
		w.bus.Subscribe("feed", w.feed.OnUpdate)

		ln, err := net.Listen("tcp", cfg.Feed.Addr)
		if err != nil {
			return fmt.Errorf("listen feed %s: %w", cfg.Feed.Addr, err)
		}
		mux := http.NewServeMux()
		mux.Handle(cfg.Feed.Path, w.feed)
		w.listener = ln
		w.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		w.closers = append(w.closers, namedCloser{"feed listener", func() error {
			if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				return err
			}
			return nil
		}})
	}
	return nil
}

// FeedAddr returns the address the viewer feed listens on, or "" when disabled.
func (w *Watcher) FeedAddr() string {
	if w.listener == nil {
		return ""
	}
	return w.listener.Addr().String()
}

func (w *Watcher) Bus() *eventbus.Bus { return w.bus }

func (w *Watcher) Poller() *poller.Poller { return w.poller }

// Run loads the markets, starts polling and blocks until ctx is done or a fatal
// error occurs. Everything is shut down in reverse start order before it returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.closeAll()

	w.refresher.RunOnce(ctx, w.loadSymbols)
	if w.symbols.Len() == 0 {
		return ErrNoSymbols
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if w.cfg.Symbols.DailyRefresh && len(w.cfg.Symbols.Watch) == 0 {
		w.refresher.Start(runCtx, w.loadSymbols)
	}

	serverErr := make(chan error, 1)
	if w.server != nil {
		go func() {
			if err := w.server.Serve(w.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
		w.logger.Info("viewer feed listening", zap.String("addr", w.FeedAddr()), zap.String("path", w.cfg.Feed.Path))
	}

	if err := w.poller.Start(runCtx); err != nil {
		w.shutdown()
		return err
	}

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-w.poller.Errors():
			if isFatal(err) {
				runErr = fmt.Errorf("stopping on unrecoverable exchange error: %w", err)
				break loop
			}
		case err := <-serverErr:
			runErr = fmt.Errorf("viewer feed: %w", err)
			break loop
		}
	}

	cancel()
	w.shutdown()
	return runErr
}

func (w *Watcher) loadSymbols(ch <-chan model.Symbol) {
	n := w.symbols.Load(ch)
	w.logger.Info("tracked symbols updated", zap.Int("received", n), zap.Int("tracked", w.symbols.Len()))
}

// shutdown stops the producers before the consumers: poller, refresher, bus
// (draining async sinks), then the viewer feed.
func (w *Watcher) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := w.poller.Stop(ctx); err != nil {
		w.logger.Warn("poller did not stop in time", zap.Error(err))
	}
	w.refresher.Wait()
	w.bus.Close()

	if w.feed != nil {
		w.feed.Close()
	}
	if w.server != nil {
		if err := w.server.Shutdown(ctx); err != nil {
			w.logger.Warn("viewer feed shutdown", zap.Error(err))
		}
	}
}

func (w *Watcher) closeAll() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		c := w.closers[i]
		if err := c.close(); err != nil {
			w.logger.Warn("close failed", zap.String("component", c.name), zap.Error(err))
		}
	}
	w.closers = nil
}

// isFatal reports errors that retrying cannot fix, such as rejected API keys.
func isFatal(err error) bool {
	var apiErr *upbit.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized
}
