package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

// LatestPriceRecord holds the most recent observed price of one market. There is
// exactly one row per symbol; older values are overwritten, never kept.
type LatestPriceRecord struct {
	Symbol string `gorm:"type:text;primaryKey"`

	Price     decimal.Decimal `gorm:"type:numeric;not null"`
	Delta     decimal.Decimal `gorm:"type:numeric;not null"`
	Direction string          `gorm:"type:varchar(8);not null"`

	Cycle      uint64    `gorm:"not null"`
	ObservedAt time.Time `gorm:"not null;index:idx_latest_price_observed_at"`

	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the default table name for GORM.
func (LatestPriceRecord) TableName() string {
	return "latest_price"
}
