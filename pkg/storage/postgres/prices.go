package postgres

import (
	"context"
	"fmt"
	"time"

	"pricecollector/pkg/price"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (p *Client) UpsertDailyPrice(ctx context.Context, dp price.DailyPrice) error {
	record := ToDailyPriceRecord(dp)

	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"},
			{Name: "date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"price_jpy", "created_at"}),
	}).Create(record)

	if tx.Error != nil {
		return fmt.Errorf("upsert daily price %s %s: %w", dp.Asset, dp.Date, tx.Error)
	}
	return nil
}

func (p *Client) DailyPriceExists(ctx context.Context, asset price.Asset, date price.Date) (bool, error) {
	var count int64
	err := p.DB.WithContext(ctx).
		Model(&DailyPriceRecord{}).
		Where("symbol = ? AND date = ?", asset.Meta().DBValue, date.String()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check daily price %s %s: %w", asset, date, err)
	}
	return count > 0, nil
}

func (p *Client) QueryDailyPrices(ctx context.Context, asset price.Asset, from, to price.Date) ([]price.DailyPrice, error) {
	var records []DailyPriceRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ? AND date BETWEEN ? AND ?", asset.Meta().DBValue, from.String(), to.String()).
		Order("date ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query daily prices %s: %w", asset, err)
	}

	out := make([]price.DailyPrice, 0, len(records))
	for _, r := range records {
		d, err := price.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("corrupt date %q for %s: %w", r.Date, asset, err)
		}
		out = append(out, price.DailyPrice{
			Asset:     asset,
			Date:      d,
			Price:     r.Price,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return out, nil
}

func (p *Client) AppendInstantPrices(ctx context.Context, obs []price.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	records := make([]InstantPriceRecord, 0, len(obs))
	for _, o := range obs {
		records = append(records, InstantPriceRecord{
			Symbol:    o.Asset.Meta().DBValue,
			Price:     o.Price,
			Timestamp: o.Timestamp.UTC(),
		})
	}

	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	})
	if err != nil {
		return fmt.Errorf("append instant prices: %w", err)
	}
	return nil
}

func (p *Client) LatestInstantPrice(ctx context.Context, asset price.Asset) (price.Observation, bool, error) {
	var records []InstantPriceRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ?", asset.Meta().DBValue).
		Order("timestamp DESC").
		Order("id DESC").
		Limit(1).
		Find(&records).Error
	if err != nil {
		return price.Observation{}, false, fmt.Errorf("latest instant price %s: %w", asset, err)
	}
	if len(records) == 0 {
		return price.Observation{}, false, nil
	}

	r := records[0]
	return price.Observation{Asset: asset, Price: r.Price, Timestamp: r.Timestamp.UTC()}, true, nil
}

func (p *Client) PruneInstantPrices(ctx context.Context, before time.Time) (int64, error) {
	tx := p.DB.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&InstantPriceRecord{})
	if tx.Error != nil {
		return 0, fmt.Errorf("prune instant prices: %w", tx.Error)
	}
	if tx.RowsAffected > 0 {
		p.logger.Info("pruned instant prices", zap.Int64("rows", tx.RowsAffected), zap.Time("before", before))
	}
	return tx.RowsAffected, nil
}

// ToDailyPriceRecord converts a DailyPrice into a record for DB insertion.
func ToDailyPriceRecord(dp price.DailyPrice) *DailyPriceRecord {
	createdAt := dp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &DailyPriceRecord{
		Symbol:    dp.Asset.Meta().DBValue,
		Date:      dp.Date.String(),
		Price:     dp.Price,
		CreatedAt: createdAt,
	}
}
