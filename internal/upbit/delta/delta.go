// Package delta turns consecutive price snapshots into signed changes.
package delta

import (
	"upbitwatch/internal/upbit/memorystore"
	"upbitwatch/internal/upbit/model"

	"github.com/shopspring/decimal"
)

// Calculator diffs snapshots against the previous cycle's prices held in a PriceStore.
type Calculator struct {
	store *memorystore.PriceStore
}

func NewCalculator(store *memorystore.PriceStore) *Calculator {
	return &Calculator{store: store}
}

// Compute returns one record per symbol of snap, in snapshot order. It only reads the store.
// A symbol seen for the first time gets previous = current and a zero delta.
func (c *Calculator) Compute(snap model.PriceSnapshot) []model.DeltaRecord {
	quotes := snap.Quotes()
	records := make([]model.DeltaRecord, 0, len(quotes))

	for _, q := range quotes {
		prev, ok := c.store.Get(q.Symbol)
		if !ok {
			records = append(records, model.DeltaRecord{
				Symbol:    q.Symbol,
				Current:   q.Price,
				Previous:  q.Price,
				Delta:     decimal.Zero,
				Direction: model.Flat,
				FirstSeen: true,
			})
			continue
		}

		d := q.Price.Sub(prev)
		records = append(records, model.DeltaRecord{
			Symbol:    q.Symbol,
			Current:   q.Price,
			Previous:  prev,
			Delta:     d,
			Direction: Classify(d),
		})
	}

	return records
}

// Commit makes snap's prices the previous values for the next cycle.
func (c *Calculator) Commit(snap model.PriceSnapshot) {
	c.store.SetAll(snap.Quotes())
}

// Apply computes every record against the prior cycle first and commits afterwards,
// so no symbol is compared with a value written earlier in the same cycle.
func (c *Calculator) Apply(snap model.PriceSnapshot) []model.DeltaRecord {
	records := c.Compute(snap)
	c.Commit(snap)
	return records
}

// Classify maps a delta to a direction by its exact sign.
func Classify(d decimal.Decimal) model.Direction {
	switch d.Sign() {
	case 1:
		return model.Up
	case -1:
		return model.Down
	default:
		return model.Flat
	}
}
