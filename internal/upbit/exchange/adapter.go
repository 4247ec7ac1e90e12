package exchange

import (
	"context"
	"fmt"
	"time"

	"upbitwatch/internal/upbit/model"
	"upbitwatch/pkg/upbit"

	"github.com/shopspring/decimal"
)

// Client is the subset of the Upbit REST client the adapter uses.
type Client interface {
	GetAccounts(ctx context.Context) ([]upbit.Account, error)
	GetTickers(ctx context.Context, markets []string) ([]upbit.Ticker, error)
	GetMarketsByQuote(ctx context.Context, quote string) ([]string, error)
}

var _ Client = (*upbit.RESTClient)(nil)

// Adapter converts Upbit responses to model types. Every failure is returned as *model.AdapterError.
type Adapter struct {
	client Client
	now    func() time.Time
}

func NewAdapter(client Client) *Adapter {
	return &Adapter{client: client, now: time.Now}
}

// FetchBalances returns the account balances in the order Upbit lists them.
func (a *Adapter) FetchBalances(ctx context.Context) ([]model.BalanceEntry, error) {
	accounts, err := a.client.GetAccounts(ctx)
	if err != nil {
		return nil, &model.AdapterError{Op: "fetch_balances", Err: err}
	}

	out := make([]model.BalanceEntry, 0, len(accounts))
	for _, acc := range accounts {
		entry, err := toBalanceEntry(acc)
		if err != nil {
			return nil, &model.AdapterError{Op: "fetch_balances", Err: err}
		}
		out = append(out, entry)
	}
	return out, nil
}

// FetchPrices returns the current price of each requested symbol, ordered as requested.
// Symbols Upbit does not report are absent from the snapshot.
func (a *Adapter) FetchPrices(ctx context.Context, symbols []model.Symbol) (model.PriceSnapshot, error) {
	if len(symbols) == 0 {
		return model.NewPriceSnapshot(a.now(), nil), nil
	}

	markets := make([]string, len(symbols))
	for i, s := range symbols {
		markets[i] = string(s)
	}

	tickers, err := a.client.GetTickers(ctx, markets)
	if err != nil {
		return model.PriceSnapshot{}, &model.AdapterError{Op: "fetch_prices", Err: err}
	}

	byMarket := make(map[string]decimal.Decimal, len(tickers))
	for _, t := range tickers {
		byMarket[t.Market] = t.TradePrice
	}

	quotes := make([]model.PriceQuote, 0, len(symbols))
	for _, s := range symbols {
		if p, ok := byMarket[string(s)]; ok {
			quotes = append(quotes, model.PriceQuote{Symbol: s, Price: p})
		}
	}
	return model.NewPriceSnapshot(a.now(), quotes), nil
}

// ListSymbols returns every market quoted in quote.
func (a *Adapter) ListSymbols(ctx context.Context, quote string) ([]model.Symbol, error) {
	codes, err := a.client.GetMarketsByQuote(ctx, quote)
	if err != nil {
		return nil, &model.AdapterError{Op: "list_symbols", Err: err}
	}

	out := make([]model.Symbol, len(codes))
	for i, c := range codes {
		out[i] = model.Symbol(c)
	}
	return out, nil
}

func toBalanceEntry(acc upbit.Account) (model.BalanceEntry, error) {
	amount, err := parseDecimal(acc.Balance)
	if err != nil {
		return model.BalanceEntry{}, fmt.Errorf("balance of %s: %w", acc.Currency, err)
	}
	if amount.IsNegative() {
		return model.BalanceEntry{}, fmt.Errorf("negative balance for %s: %s", acc.Currency, acc.Balance)
	}
	locked, err := parseDecimal(acc.Locked)
	if err != nil {
		return model.BalanceEntry{}, fmt.Errorf("locked of %s: %w", acc.Currency, err)
	}
	avg, err := parseDecimal(acc.AvgBuyPrice)
	if err != nil {
		return model.BalanceEntry{}, fmt.Errorf("avg_buy_price of %s: %w", acc.Currency, err)
	}

	return model.BalanceEntry{
		Currency:    acc.Currency,
		Amount:      amount,
		Locked:      locked,
		AvgBuyPrice: avg,
		Unit:        acc.UnitCurrency,
	}, nil
}

// parseDecimal treats an empty field as zero.
func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
