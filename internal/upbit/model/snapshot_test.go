package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// go test -v --run TestPriceSnapshotOrder
func TestPriceSnapshotOrder(t *testing.T) {
	quotes := []PriceQuote{
		{Symbol: "KRW-ETH", Price: decimal.NewFromInt(3000)},
		{Symbol: "KRW-BTC", Price: decimal.NewFromInt(100)},
		{Symbol: "KRW-ETH", Price: decimal.NewFromInt(3100)},
	}
	snap := NewPriceSnapshot(time.Now(), quotes)

	if snap.Len() != 2 {
		t.Fatalf("expected 2 symbols, got %d", snap.Len())
	}
	syms := snap.Symbols()
	if syms[0] != "KRW-ETH" || syms[1] != "KRW-BTC" {
		t.Errorf("unexpected order: %v", syms)
	}
	p, ok := snap.Get("KRW-ETH")
	if !ok || !p.Equal(decimal.NewFromInt(3100)) {
		t.Errorf("expected last price 3100 for duplicate symbol, got %s (ok=%v)", p, ok)
	}
	if _, ok := snap.Get("KRW-XRP"); ok {
		t.Error("unexpected price for absent symbol")
	}

	// caller's slice must not alias the snapshot
	quotes[1].Price = decimal.NewFromInt(1)
	if p, _ := snap.Get("KRW-BTC"); !p.Equal(decimal.NewFromInt(100)) {
		t.Errorf("snapshot changed after input mutation: %s", p)
	}
}

// go test -v --run TestEmptySnapshot
func TestEmptySnapshot(t *testing.T) {
	var snap PriceSnapshot
	if snap.Len() != 0 {
		t.Fatalf("zero snapshot should be empty")
	}
	if _, ok := snap.Get("KRW-BTC"); ok {
		t.Error("zero snapshot returned a price")
	}
	b, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"quotes":[]`) {
		t.Errorf("unexpected json: %s", b)
	}
}

// go test -v --run TestDirectionText
func TestDirectionText(t *testing.T) {
	for d, want := range map[Direction]string{Up: "up", Down: "down", Flat: "flat"} {
		b, _ := d.MarshalText()
		if string(b) != want {
			t.Errorf("direction %d: got %q want %q", d, b, want)
		}
	}
	if SymbolFor("KRW", "BTC") != "KRW-BTC" {
		t.Error("unexpected symbol")
	}
}
