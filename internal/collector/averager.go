package collector

import (
	"context"
	"time"

	"pricecollector/pkg/price"

	"go.uber.org/zap"
)

// PriceSource is the upstream used to compute daily averages.
type PriceSource interface {
	PriceSeries(ctx context.Context, asset price.Asset, from, to time.Time) (price.Series, error)
	HistoricalSnapshot(ctx context.Context, asset price.Asset, date price.Date) (float64, error)
}

// Averager computes the mean price of one asset over one reference-timezone day.
type Averager struct {
	source PriceSource
	loc    *time.Location
	logger *zap.Logger
}

func NewAverager(source PriceSource, loc *time.Location, logger *zap.Logger) *Averager {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Averager{source: source, loc: loc, logger: logger}
}

// AverageFor returns the arithmetic mean of the day's samples.
//
// An empty series is "no data": it is logged and reported as 0 with a nil error.
// If the ranged query itself fails, the single-day snapshot is used instead; when the
// snapshot also fails, the ranged query's error is returned.
func (a *Averager) AverageFor(ctx context.Context, asset price.Asset, date price.Date) (float64, error) {
	from, to := date.Bounds(a.loc)

	series, err := a.source.PriceSeries(ctx, asset, from, to)
	if err != nil {
		a.logger.Warn("price series failed, falling back to snapshot",
			zap.String("asset", asset.String()),
			zap.Stringer("date", date),
			zap.Error(err),
		)

		snapshot, fallbackErr := a.source.HistoricalSnapshot(ctx, asset, date)
		if fallbackErr != nil {
			a.logger.Error("snapshot fallback failed",
				zap.String("asset", asset.String()),
				zap.Stringer("date", date),
				zap.Error(fallbackErr),
			)
			return 0, err
		}
		return snapshot, nil
	}

	if len(series) == 0 {
		a.logger.Warn("no price data for day",
			zap.String("asset", asset.String()),
			zap.Stringer("date", date),
		)
		return 0, nil
	}

	return series.Mean(), nil
}
