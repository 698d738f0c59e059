package storage

import (
	"context"
	"time"

	"pricecollector/pkg/price"
)

// Store persists daily averages and instant samples.
type Store interface {
	// UpsertDailyPrice inserts or replaces the price for (asset, date).
	UpsertDailyPrice(ctx context.Context, p price.DailyPrice) error
	DailyPriceExists(ctx context.Context, asset price.Asset, date price.Date) (bool, error)
	// QueryDailyPrices returns prices with from <= date <= to, ascending by date.
	QueryDailyPrices(ctx context.Context, asset price.Asset, from, to price.Date) ([]price.DailyPrice, error)

	// AppendInstantPrices writes every observation or none of them.
	AppendInstantPrices(ctx context.Context, obs []price.Observation) error
	LatestInstantPrice(ctx context.Context, asset price.Asset) (price.Observation, bool, error)
	// PruneInstantPrices deletes observations captured before the cutoff.
	PruneInstantPrices(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
