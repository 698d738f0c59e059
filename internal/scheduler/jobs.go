package scheduler

import (
	"context"
	"fmt"
	"time"

	"pricecollector/internal/collector"
	"pricecollector/pkg/price"

	"go.uber.org/zap"
)

// Job names.
const (
	JobSample   = "sample"
	JobDaily    = "daily"
	JobRecovery = "recovery"
)

type Sampler interface {
	Sample(ctx context.Context) (price.Snapshot, error)
}

// Pruner drops instant prices older than a cutoff.
type Pruner interface {
	PruneInstantPrices(ctx context.Context, before time.Time) (int64, error)
}

// BackfillFunc is collector.Backfiller.Daily or collector.Backfiller.Recover.
type BackfillFunc func(ctx context.Context) (*collector.Report, error)

// SampleJob takes one sample and, when retention is positive, prunes instant prices
// older than retention relative to the sample timestamp.
func SampleJob(s Sampler, p Pruner, retention time.Duration, logger *zap.Logger) Job {
	return func(ctx context.Context) error {
		snap, err := s.Sample(ctx)
		if err != nil {
			return err
		}
		if p == nil || retention <= 0 {
			return nil
		}

		cutoff := snap.Timestamp.Add(-retention)
		n, err := p.PruneInstantPrices(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("prune instant prices: %w", err)
		}
		if n > 0 {
			logger.Info("pruned instant prices", zap.Int64("deleted", n), zap.Time("before", cutoff))
		}
		return nil
	}
}

// BackfillJob runs fn and writes its report under reportDir (skipped when empty).
// A report with failed pairs makes the job fail.
func BackfillJob(fn BackfillFunc, reportDir string, loc *time.Location, logger *zap.Logger) Job {
	return func(ctx context.Context) error {
		report, err := fn(ctx)
		if report != nil && reportDir != "" {
			path, werr := collector.WriteReport(reportDir, report, loc)
			if werr != nil {
				logger.Warn("failed to write backfill report", zap.Error(werr))
			} else {
				logger.Info("backfill report written", zap.String("path", path))
			}
		}
		if err != nil {
			return err
		}
		if report.HasFailures() {
			return fmt.Errorf("backfill %s: %d of %d pairs failed", report.Mode, report.Failed, len(report.Results))
		}
		return nil
	}
}
