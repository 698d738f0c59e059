package postgres

import "time"

// DailyPriceRecord is one averaged daily price.
type DailyPriceRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	Symbol string `gorm:"type:varchar(10);not null;index:idx_daily_symbol_date,unique"`
	Date   string `gorm:"type:varchar(10);not null;index:idx_daily_symbol_date,unique"` // YYYY-MM-DD

	Price float64 `gorm:"column:price_jpy;type:numeric;not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (DailyPriceRecord) TableName() string {
	return "daily_prices"
}

// InstantPriceRecord is one sampled price.
type InstantPriceRecord struct {
	ID uint `gorm:"primaryKey"`

	Symbol    string    `gorm:"type:varchar(10);not null;index:idx_instant_symbol_ts,priority:1"`
	Price     float64   `gorm:"column:price_jpy;type:numeric;not null"`
	Timestamp time.Time `gorm:"not null;index:idx_instant_symbol_ts,priority:2"`
}

func (InstantPriceRecord) TableName() string {
	return "instant_prices"
}
