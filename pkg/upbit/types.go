package upbit

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Account is one row of GET /v1/accounts.
type Account struct {
	Currency            string `json:"currency"`               // e.g. "KRW", "BTC"
	Balance             string `json:"balance"`                // available amount, decimal string
	Locked              string `json:"locked"`                 // amount tied up in open orders
	AvgBuyPrice         string `json:"avg_buy_price"`          // average buy price in UnitCurrency
	AvgBuyPriceModified bool   `json:"avg_buy_price_modified"` // whether the average was edited by the user
	UnitCurrency        string `json:"unit_currency"`          // e.g. "KRW"
}

// Ticker is one row of GET /v1/ticker. Only the fields this module reads are kept.
type Ticker struct {
	Market           string          `json:"market"`             // e.g. "KRW-BTC"
	TradePrice       decimal.Decimal `json:"trade_price"`        // last traded price
	PrevClosingPrice decimal.Decimal `json:"prev_closing_price"` // previous day close (UTC 0h)
	Change           string          `json:"change"`             // "RISE", "EVEN", "FALL" against the previous close
	Timestamp        int64           `json:"timestamp"`          // milliseconds since epoch
}

// Market is one row of GET /v1/market/all.
type Market struct {
	Market      string `json:"market"`       // e.g. "KRW-BTC"
	KoreanName  string `json:"korean_name"`  // e.g. "비트코인"
	EnglishName string `json:"english_name"` // e.g. "Bitcoin"
}

// errorResponse is the body Upbit returns with non-2xx statuses.
type errorResponse struct {
	Error struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is a non-2xx reply from the Upbit REST API.
type APIError struct {
	StatusCode int
	Name       string // e.g. "invalid_access_key", "too_many_requests"
	Message    string
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("upbit error: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upbit error: status %d: %s: %s", e.StatusCode, e.Name, e.Message)
}
