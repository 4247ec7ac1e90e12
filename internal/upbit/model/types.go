package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Symbol identifies one tradable market, e.g. "KRW-BTC".
type Symbol string

// SymbolFor builds the market symbol for a currency quoted in quote, e.g. ("KRW", "BTC") -> "KRW-BTC".
func SymbolFor(quote, currency string) Symbol {
	return Symbol(quote + "-" + currency)
}

// Price is an exact decimal price in the quote currency.
type Price = decimal.Decimal

// PriceQuote is a single symbol/price pair inside a snapshot.
type PriceQuote struct {
	Symbol Symbol `json:"symbol"`
	Price  Price  `json:"price"`
}

// BalanceEntry is one currency held by the account as reported by a single fetch.
type BalanceEntry struct {
	Currency    string          `json:"currency"`      // e.g. "BTC", "KRW"
	Amount      decimal.Decimal `json:"amount"`        // available balance, never negative
	Locked      decimal.Decimal `json:"locked"`        // amount locked in open orders
	AvgBuyPrice decimal.Decimal `json:"avg_buy_price"` // average buy price in UnitCurrency
	Unit        string          `json:"unit_currency"` // currency the average buy price is quoted in
}

// Direction classifies a delta.
type Direction int

const (
	Flat Direction = iota
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "flat"
	}
}

// MarshalText lets directions render as "up"/"down"/"flat" in JSON payloads.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "up":
		*d = Up
	case "down":
		*d = Down
	case "flat":
		*d = Flat
	default:
		return fmt.Errorf("unknown direction %q", b)
	}
	return nil
}

// DeltaRecord is the change of one symbol's price against the previous cycle.
type DeltaRecord struct {
	Symbol    Symbol          `json:"symbol"`
	Current   Price           `json:"current"`
	Previous  Price           `json:"previous"`
	Delta     decimal.Decimal `json:"delta"`
	Direction Direction       `json:"direction"`
	FirstSeen bool            `json:"first_seen"` // no previous observation existed
}

// Holding is a balance paired with the market price of its currency.
type Holding struct {
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	Symbol    Symbol          `json:"symbol"`
	Priced    bool            `json:"priced"` // false when the market was absent from this cycle
	Price     Price           `json:"price"`
	Delta     decimal.Decimal `json:"delta"`
	Value     decimal.Decimal `json:"value"` // Amount * Price
	Direction Direction       `json:"direction"`
}

// UpdateEvent is everything one successful cycle produced. It is built once and never mutated.
type UpdateEvent struct {
	Cycle    uint64         `json:"cycle"`
	At       time.Time      `json:"at"`
	Prices   PriceSnapshot  `json:"prices"`
	Balances []BalanceEntry `json:"balances"`
	Deltas   []DeltaRecord  `json:"deltas"`
	Holdings []Holding      `json:"holdings"`
}
