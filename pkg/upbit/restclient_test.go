package upbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

// go test -v --run TestGetAccountsSignsRequest
func TestGetAccountsSignsRequest(t *testing.T) {
	const access, secret = "access-key", "secret-key"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != accountsPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		tok, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) { return []byte(secret), nil })
		if err != nil || !tok.Valid {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"name":"invalid_access_key","message":"bad token"}}`))
			return
		}
		claims := tok.Claims.(jwt.MapClaims)
		if claims["access_key"] != access || claims["nonce"] == "" {
			t.Errorf("unexpected claims: %v", claims)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"currency":"KRW","balance":"1000000.0","locked":"0.0","avg_buy_price":"0","avg_buy_price_modified":false,"unit_currency":"KRW"},
			{"currency":"BTC","balance":"0.0015","locked":"0.0","avg_buy_price":"90000000","avg_buy_price_modified":false,"unit_currency":"KRW"}
		]`))
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, 5*time.Second, WithCredentials(Credentials{AccessKey: access, SecretKey: secret}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	accounts, err := client.GetAccounts(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(accounts) != 2 || accounts[1].Currency != "BTC" || accounts[1].Balance != "0.0015" {
		t.Errorf("unexpected accounts: %+v", accounts)
	}
}

// go test -v --run TestGetAccountsWithoutCredentials
func TestGetAccountsWithoutCredentials(t *testing.T) {
	client := NewRESTClient("http://127.0.0.1:0", time.Second)
	if _, err := client.GetAccounts(context.Background()); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

// go test -v --run TestGetTickersBatches
func TestGetTickersBatches(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		markets := strings.Split(r.URL.Query().Get("markets"), ",")
		if len(markets) > maxTickerMarkets {
			t.Errorf("batch too large: %d", len(markets))
		}
		out := make([]map[string]any, 0, len(markets))
		for i, m := range markets {
			out = append(out, map[string]any{"market": m, "trade_price": 1000.5 + float64(i)})
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer server.Close()

	markets := make([]string, 150)
	for i := range markets {
		markets[i] = fmt.Sprintf("KRW-C%d", i)
	}

	client := NewRESTClient(server.URL, 5*time.Second)
	tickers, err := client.GetTickers(context.Background(), markets)
	if err != nil {
		t.Fatalf("GetTickers returned error: %v", err)
	}
	if len(tickers) != 150 {
		t.Errorf("expected 150 tickers, got %d", len(tickers))
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("expected 2 requests, got %d", got)
	}
	if !tickers[0].TradePrice.Equal(decimal.RequireFromString("1000.5")) {
		t.Errorf("unexpected price %s", tickers[0].TradePrice)
	}
}

// go test -v --run TestGetTickersEmpty
func TestGetTickersEmpty(t *testing.T) {
	client := NewRESTClient("http://127.0.0.1:0", time.Second)
	tickers, err := client.GetTickers(context.Background(), nil)
	if err != nil || tickers != nil {
		t.Fatalf("expected no request for empty markets, got %v %v", tickers, err)
	}
}

// go test -v --run TestGetMarketsByQuote
func TestGetMarketsByQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("isDetails") != "false" {
			t.Errorf("expected isDetails=false, got %q", r.URL.RawQuery)
		}
		w.Write([]byte(`[
			{"market":"KRW-BTC","korean_name":"비트코인","english_name":"Bitcoin"},
			{"market":"BTC-ETH","korean_name":"이더리움","english_name":"Ethereum"},
			{"market":"KRW-ETH","korean_name":"이더리움","english_name":"Ethereum"}
		]`))
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, 5*time.Second)
	codes, err := client.GetMarketsByQuote(context.Background(), "KRW")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(codes) != 2 || codes[0] != "KRW-BTC" || codes[1] != "KRW-ETH" {
		t.Errorf("unexpected markets: %v", codes)
	}
}

// go test -v --run TestAPIError
func TestAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"name":"too_many_requests","message":"slow down"}}`))
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, 5*time.Second)
	_, err := client.GetMarkets(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Name != "too_many_requests" {
		t.Errorf("unexpected error fields: %+v", apiErr)
	}
}

// go test -v --run TestTokenQueryHash
func TestTokenQueryHash(t *testing.T) {
	creds := Credentials{AccessKey: "a", SecretKey: "s"}
	raw, err := creds.Token("market=KRW-BTC")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	tok, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) { return []byte("s"), nil })
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	claims := tok.Claims.(jwt.MapClaims)
	if claims["query_hash_alg"] != "SHA512" || claims["query_hash"] == nil {
		t.Errorf("missing query hash claims: %v", claims)
	}
}
