package postgres_test

import (
	"context"
	"testing"
	"time"

	"upbitwatch/pkg/storage/postgres"

	"github.com/shopspring/decimal"
)

// go test -v --run TestUpsertLatestPrice
func TestUpsertLatestPrice(t *testing.T) {
	client, err := postgres.NewClient(testDSN(t))
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.AutoMigrateLatestPrice(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	first := []postgres.LatestPriceRecord{
		{Symbol: "KRW-TEST", Price: decimal.NewFromInt(100), Delta: decimal.Zero, Direction: "flat", Cycle: 1, ObservedAt: now},
	}
	if err := client.UpsertLatestPrices(ctx, first); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	second := []postgres.LatestPriceRecord{
		{Symbol: "KRW-TEST", Price: decimal.RequireFromString("99.5"), Delta: decimal.RequireFromString("-0.5"), Direction: "down", Cycle: 2, ObservedAt: now.Add(time.Second)},
	}
	if err := client.UpsertLatestPrices(ctx, second); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := client.GetLatestPrice(ctx, "KRW-TEST")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Cycle != 2 || !got.Price.Equal(decimal.RequireFromString("99.5")) || got.Direction != "down" {
		t.Errorf("row not replaced: %+v", got)
	}

	var count int64
	client.DB.WithContext(ctx).Model(&postgres.LatestPriceRecord{}).Where("symbol = ?", "KRW-TEST").Count(&count)
	if count != 1 {
		t.Errorf("expected one row per symbol, got %d", count)
	}
	client.DB.WithContext(ctx).Where("symbol = ?", "KRW-TEST").Delete(&postgres.LatestPriceRecord{})
}
