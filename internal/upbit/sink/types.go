package sink

import (
	"upbitwatch/internal/upbit/model"

	"github.com/shopspring/decimal"
)

// PriceUpdate is the per-market payload exported to Redis and Kafka.
type PriceUpdate struct {
	Symbol    model.Symbol    `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Previous  decimal.Decimal `json:"previous"`
	Delta     decimal.Decimal `json:"delta"`
	Direction model.Direction `json:"direction"`
	Cycle     uint64          `json:"cycle"`
	Ts        int64           `json:"ts"` // cycle completion time in milliseconds
}

func priceUpdates(ev model.UpdateEvent) []PriceUpdate {
	out := make([]PriceUpdate, 0, len(ev.Deltas))
	for _, d := range ev.Deltas {
		out = append(out, PriceUpdate{
			Symbol:    d.Symbol,
			Price:     d.Current,
			Previous:  d.Previous,
			Delta:     d.Delta,
			Direction: d.Direction,
			Cycle:     ev.Cycle,
			Ts:        ev.At.UnixMilli(),
		})
	}
	return out
}
