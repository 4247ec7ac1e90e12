package delta

import (
	"upbitwatch/internal/upbit/model"
)

// Holdings builds the holdings view: balances without the base fiat currency and
// without non-positive amounts, each paired with its market's delta record from this cycle.
// Balances are kept in fetch order.
func Holdings(balances []model.BalanceEntry, fiat string, records []model.DeltaRecord) []model.Holding {
	bySymbol := make(map[model.Symbol]model.DeltaRecord, len(records))
	for _, r := range records {
		bySymbol[r.Symbol] = r
	}

	var out []model.Holding
	for _, b := range balances {
		if !Holdable(b, fiat) {
			continue
		}

		h := model.Holding{
			Currency: b.Currency,
			Amount:   b.Amount,
			Symbol:   model.SymbolFor(fiat, b.Currency),
		}
		if r, ok := bySymbol[h.Symbol]; ok {
			h.Priced = true
			h.Price = r.Current
			h.Delta = r.Delta
			h.Direction = r.Direction
			h.Value = b.Amount.Mul(r.Current)
		}
		out = append(out, h)
	}
	return out
}

// Holdable reports whether a balance belongs in the holdings view.
func Holdable(b model.BalanceEntry, fiat string) bool {
	return b.Currency != fiat && b.Amount.IsPositive()
}
