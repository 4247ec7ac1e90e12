package postgres

import (
	"context"

	"gorm.io/gorm/clause"
)

// UpsertLatestPrices writes one row per record, replacing the stored row of the same symbol.
func (p *PostgresClient) UpsertLatestPrices(ctx context.Context, records []LatestPriceRecord) error {
	if len(records) == 0 {
		return nil
	}
	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "delta", "direction", "cycle", "observed_at", "updated_at"}),
	}).Create(&records).Error
}

func (p *PostgresClient) GetLatestPrice(ctx context.Context, symbol string) (*LatestPriceRecord, error) {
	var rec LatestPriceRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ?", symbol).
		First(&rec).Error

	if err != nil {
		return nil, err
	}
	return &rec, nil
}
