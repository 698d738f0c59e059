package collector

import (
	"context"
	"fmt"
	"time"

	"pricecollector/internal/metrics"
	"pricecollector/pkg/price"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultRequestInterval is the pause between consecutive upstream attempts of a backfill run.
const DefaultRequestInterval = 3 * time.Second

// DefaultRecoveryDays is the trailing window checked by Recover.
const DefaultRecoveryDays = 3

type Mode string

const (
	ModeDaily    Mode = "daily"
	ModeRecovery Mode = "recovery"
	ModeRange    Mode = "range"
)

type Outcome string

const (
	OutcomeSaved          Outcome = "saved"
	OutcomeAlreadyPresent Outcome = "already_present"
	OutcomeFailed         Outcome = "failed"
)

const reasonInvalidPrice = "invalid price received (0 or negative)"

// DailyStore is the part of the store a backfill run needs.
type DailyStore interface {
	DailyPriceExists(ctx context.Context, asset price.Asset, date price.Date) (bool, error)
	UpsertDailyPrice(ctx context.Context, p price.DailyPrice) error
}

// DailyAverager computes one day's price.
type DailyAverager interface {
	AverageFor(ctx context.Context, asset price.Asset, date price.Date) (float64, error)
}

// Result is the outcome of one (date, asset) pair.
type Result struct {
	Date    price.Date  `json:"date"`
	Asset   price.Asset `json:"symbol"`
	Outcome Outcome     `json:"outcome"`
	Price   float64     `json:"price_jpy,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// Report summarises one backfill run.
type Report struct {
	RunID          string       `json:"run_id"`
	Mode           Mode         `json:"mode"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at"`
	Dates          []price.Date `json:"dates"`
	Results        []Result     `json:"results"`
	Saved          int          `json:"saved_count"`
	AlreadyPresent int          `json:"already_present_count"`
	Failed         int          `json:"failed_count"`
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	switch res.Outcome {
	case OutcomeSaved:
		r.Saved++
	case OutcomeAlreadyPresent:
		r.AlreadyPresent++
	case OutcomeFailed:
		r.Failed++
	}
}

// HasFailures reports whether any pair failed.
func (r *Report) HasFailures() bool {
	return r.Failed > 0
}

// Backfiller fills missing daily prices, one (date, asset) pair at a time.
type Backfiller struct {
	store        DailyStore
	averager     DailyAverager
	loc          *time.Location
	logger       *zap.Logger
	interval     time.Duration
	recoveryDays int
	assets       []price.Asset

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type BackfillOption func(*Backfiller)

// WithRequestInterval sets the pause between consecutive upstream attempts.
func WithRequestInterval(d time.Duration) BackfillOption {
	return func(b *Backfiller) {
		b.interval = d
	}
}

func WithRecoveryDays(n int) BackfillOption {
	return func(b *Backfiller) {
		if n > 0 {
			b.recoveryDays = n
		}
	}
}

// WithAssets restricts a run to the given assets.
func WithAssets(assets ...price.Asset) BackfillOption {
	return func(b *Backfiller) {
		b.assets = assets
	}
}

// WithClock replaces time.Now when computing target dates.
func WithClock(now func() time.Time) BackfillOption {
	return func(b *Backfiller) {
		b.now = now
	}
}

func NewBackfiller(store DailyStore, averager DailyAverager, loc *time.Location, logger *zap.Logger, opts ...BackfillOption) *Backfiller {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Backfiller{
		store:        store,
		averager:     averager,
		loc:          loc,
		logger:       logger,
		interval:     DefaultRequestInterval,
		recoveryDays: DefaultRecoveryDays,
		assets:       price.Assets(),
		now:          time.Now,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Daily backfills the reference-timezone yesterday.
func (b *Backfiller) Daily(ctx context.Context) (*Report, error) {
	return b.Run(ctx, ModeDaily, []price.Date{price.Yesterday(b.now(), b.loc)})
}

// Recover backfills the trailing recovery window, walking backward from yesterday.
func (b *Backfiller) Recover(ctx context.Context) (*Report, error) {
	return b.Run(ctx, ModeRecovery, b.RecoveryDates())
}

// RecoveryDates lists the recovery window, yesterday first.
func (b *Backfiller) RecoveryDates() []price.Date {
	yesterday := price.Yesterday(b.now(), b.loc)
	dates := make([]price.Date, 0, b.recoveryDays)
	for i := 0; i < b.recoveryDays; i++ {
		dates = append(dates, yesterday.AddDays(-i))
	}
	return dates
}

// Run attempts every (date, asset) pair exactly once, strictly sequentially, finishing
// all assets of a date before moving on. Per-pair failures are collected in the report.
// The returned error is non-nil only when ctx ends the run early.
func (b *Backfiller) Run(ctx context.Context, mode Mode, dates []price.Date) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: b.now().UTC(),
		Dates:     dates,
		Results:   make([]Result, 0, len(dates)*len(b.assets)),
	}

	log := b.logger.With(zap.String("run_id", report.RunID), zap.String("mode", string(mode)))
	log.Info("backfill started", zap.Int("dates", len(dates)), zap.Int("assets", len(b.assets)))

	attempted := false
	for _, date := range dates {
		for _, asset := range b.assets {
			present, err := b.store.DailyPriceExists(ctx, asset, date)
			if err != nil {
				b.record(report, log, Result{Date: date, Asset: asset, Outcome: OutcomeFailed,
					Reason: fmt.Sprintf("check existing price: %v", err)})
				if ctx.Err() != nil {
					return b.finish(report, log), ctx.Err()
				}
				continue
			}
			if present {
				b.record(report, log, Result{Date: date, Asset: asset, Outcome: OutcomeAlreadyPresent})
				continue
			}

			if attempted && b.interval > 0 {
				if err := b.sleep(ctx, b.interval); err != nil {
					return b.finish(report, log), err
				}
			}
			attempted = true

			b.record(report, log, b.fill(ctx, asset, date))
			if ctx.Err() != nil {
				return b.finish(report, log), ctx.Err()
			}
		}
	}

	return b.finish(report, log), nil
}

func (b *Backfiller) fill(ctx context.Context, asset price.Asset, date price.Date) Result {
	res := Result{Date: date, Asset: asset, Outcome: OutcomeFailed}

	avg, err := b.averager.AverageFor(ctx, asset, date)
	if err != nil {
		res.Reason = err.Error()
		return res
	}
	if avg <= 0 {
		res.Reason = reasonInvalidPrice
		return res
	}

	err = b.store.UpsertDailyPrice(ctx, price.DailyPrice{
		Asset:     asset,
		Date:      date,
		Price:     avg,
		CreatedAt: b.now().UTC(),
	})
	if err != nil {
		res.Reason = fmt.Sprintf("store daily price: %v", err)
		return res
	}

	res.Outcome = OutcomeSaved
	res.Price = avg
	return res
}

func (b *Backfiller) record(report *Report, log *zap.Logger, res Result) {
	report.add(res)
	metrics.RecordBackfill(string(report.Mode), string(res.Outcome))

	fields := []zap.Field{
		zap.String("asset", res.Asset.String()),
		zap.Stringer("date", res.Date),
	}
	switch res.Outcome {
	case OutcomeSaved:
		log.Info("saved daily price", append(fields, zap.Float64("price_jpy", res.Price))...)
	case OutcomeAlreadyPresent:
		log.Info("daily price already present, skipping", fields...)
	default:
		log.Warn("daily price failed", append(fields, zap.String("reason", res.Reason))...)
	}
}

func (b *Backfiller) finish(report *Report, log *zap.Logger) *Report {
	report.FinishedAt = b.now().UTC()
	log.Info("backfill finished",
		zap.Int("saved", report.Saved),
		zap.Int("already_present", report.AlreadyPresent),
		zap.Int("failed", report.Failed),
	)
	return report
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
