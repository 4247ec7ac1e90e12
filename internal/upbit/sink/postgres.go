package sink

import (
	"context"
	"fmt"
	"time"

	"upbitwatch/internal/upbit/model"
	"upbitwatch/pkg/storage/postgres"

	"go.uber.org/zap"
)

const postgresTimeout = 5 * time.Second

// LatestPriceWriter persists the most recent price per market.
type LatestPriceWriter interface {
	UpsertLatestPrices(ctx context.Context, records []postgres.LatestPriceRecord) error
}

// Postgres overwrites the latest_price row of every market in the cycle.
type Postgres struct {
	db     LatestPriceWriter
	logger *zap.Logger
}

func NewPostgres(db LatestPriceWriter, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{db: db, logger: logger}
}

// OnUpdate is an eventbus handler.
func (p *Postgres) OnUpdate(ev model.UpdateEvent) error {
	records := latestPriceRecords(ev)
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), postgresTimeout)
	defer cancel()
	if err := p.db.UpsertLatestPrices(ctx, records); err != nil {
		return fmt.Errorf("upsert latest prices at cycle %d: %w", ev.Cycle, err)
	}
	p.logger.Debug("latest prices stored", zap.Uint64("cycle", ev.Cycle), zap.Int("rows", len(records)))
	return nil
}

// latestPriceRecords converts the deltas of one cycle into latest_price rows.
func latestPriceRecords(ev model.UpdateEvent) []postgres.LatestPriceRecord {
	out := make([]postgres.LatestPriceRecord, 0, len(ev.Deltas))
	for _, d := range ev.Deltas {
		out = append(out, postgres.LatestPriceRecord{
			Symbol:     string(d.Symbol),
			Price:      d.Current,
			Delta:      d.Delta,
			Direction:  d.Direction.String(),
			Cycle:      ev.Cycle,
			ObservedAt: ev.At.UTC(),
		})
	}
	return out
}
