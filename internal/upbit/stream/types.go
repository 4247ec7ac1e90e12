package stream

import (
	"upbitwatch/internal/upbit/model"
)

// UpdateMessage is the JSON frame pushed to viewers after each successful cycle.
type UpdateMessage struct {
	Type     string              `json:"type"`     // always "update"
	Cycle    uint64              `json:"cycle"`    // poll cycle number, strictly increasing
	Ts       int64               `json:"ts"`       // cycle completion time in milliseconds
	Deltas   []model.DeltaRecord `json:"deltas"`   // one entry per market, in fetch order
	Holdings []model.Holding     `json:"holdings"` // account currencies with their market prices
}

func NewUpdateMessage(ev model.UpdateEvent) UpdateMessage {
	return UpdateMessage{
		Type:     "update",
		Cycle:    ev.Cycle,
		Ts:       ev.At.UnixMilli(),
		Deltas:   ev.Deltas,
		Holdings: ev.Holdings,
	}
}
