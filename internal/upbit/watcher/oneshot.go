package watcher

import (
	"context"
	"fmt"

	"upbitwatch/config"
	"upbitwatch/internal/upbit/delta"
	"upbitwatch/internal/upbit/exchange"
	"upbitwatch/internal/upbit/memorystore"
	"upbitwatch/internal/upbit/model"
	"upbitwatch/pkg/upbit"
)

func newAdapter(cfg *config.Config, creds config.Credentials) *exchange.Adapter {
	client := upbit.NewRESTClient(cfg.Upbit.REST.BaseURL, cfg.Upbit.REST.Timeout,
		upbit.WithCredentials(upbit.Credentials{AccessKey: creds.AccessKey, SecretKey: creds.SecretKey}))
	return exchange.NewAdapter(client)
}

// ListSymbols returns the tradable markets of the configured quote currency. No credentials are needed.
func ListSymbols(ctx context.Context, cfg *config.Config) ([]model.Symbol, error) {
	return newAdapter(cfg, config.Credentials{}).ListSymbols(ctx, cfg.Upbit.QuoteCurrency)
}

// FetchHoldings fetches the balances once and prices every held currency that has a
// market in the quote currency. Deltas are zero since there is no previous cycle.
func FetchHoldings(ctx context.Context, cfg *config.Config, creds config.Credentials) ([]model.Holding, error) {
	a := newAdapter(cfg, creds)
	quote := cfg.Upbit.QuoteCurrency

	balances, err := a.FetchBalances(ctx)
	if err != nil {
		return nil, err
	}

	listed, err := a.ListSymbols(ctx, quote)
	if err != nil {
		return nil, err
	}
	tradable := make(map[model.Symbol]struct{}, len(listed))
	for _, s := range listed {
		tradable[s] = struct{}{}
	}

	var symbols []model.Symbol
	for _, b := range balances {
		if !delta.Holdable(b, quote) {
			continue
		}
		sym := model.SymbolFor(quote, b.Currency)
		if _, ok := tradable[sym]; ok {
			symbols = append(symbols, sym)
		}
	}

	prices, err := a.FetchPrices(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("price holdings: %w", err)
	}
	records := delta.NewCalculator(memorystore.NewPriceStore()).Compute(prices)
	return delta.Holdings(balances, quote, records), nil
}
