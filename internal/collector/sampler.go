package collector

import (
	"context"
	"fmt"
	"time"

	"pricecollector/internal/metrics"
	"pricecollector/pkg/price"

	"go.uber.org/zap"
)

// Sample statuses.
const (
	SampleOK      = "ok"
	SampleFailed  = "failed"
	SampleInvalid = "invalid"
)

// CurrentPriceSource returns the current price of every tracked asset.
type CurrentPriceSource interface {
	CurrentPrices(ctx context.Context) (map[price.Asset]float64, error)
}

// InstantStore appends a batch of observations atomically.
type InstantStore interface {
	AppendInstantPrices(ctx context.Context, obs []price.Observation) error
}

// CacheWriter persists the latest snapshot outside the store.
type CacheWriter interface {
	Write(s price.Snapshot) error
}

// Publisher receives every committed snapshot.
type Publisher interface {
	Publish(s price.Snapshot)
}

// Sampler captures the current price of every asset at one shared instant.
type Sampler struct {
	source    CurrentPriceSource
	store     InstantStore
	cache     CacheWriter
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

type SamplerOption func(*Sampler)

func WithCache(c CacheWriter) SamplerOption {
	return func(s *Sampler) {
		s.cache = c
	}
}

func WithPublisher(p Publisher) SamplerOption {
	return func(s *Sampler) {
		s.publisher = p
	}
}

func WithSamplerClock(now func() time.Time) SamplerOption {
	return func(s *Sampler) {
		s.now = now
	}
}

func NewSampler(source CurrentPriceSource, store InstantStore, logger *zap.Logger, opts ...SamplerOption) *Sampler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sampler{
		source: source,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sample fetches, stores, caches and publishes one snapshot. Any failure aborts the
// sample; a zero or negative price aborts it before anything is written.
func (s *Sampler) Sample(ctx context.Context) (price.Snapshot, error) {
	prices, err := s.source.CurrentPrices(ctx)
	if err != nil {
		metrics.RecordSample(SampleFailed)
		return price.Snapshot{}, fmt.Errorf("fetch current prices: %w", err)
	}

	snap := price.Snapshot{
		Timestamp: s.now().UTC(),
		Prices:    make(map[price.Asset]float64, len(prices)),
	}
	obs := make([]price.Observation, 0, len(prices))

	for _, asset := range price.Assets() {
		p := prices[asset]
		if p <= 0 {
			metrics.RecordSample(SampleInvalid)
			return price.Snapshot{}, fmt.Errorf("no usable current price for %s: %v", asset, p)
		}
		snap.Prices[asset] = p
		obs = append(obs, price.Observation{Asset: asset, Price: p, Timestamp: snap.Timestamp})
	}

	if err := s.store.AppendInstantPrices(ctx, obs); err != nil {
		metrics.RecordSample(SampleFailed)
		return price.Snapshot{}, fmt.Errorf("store current prices: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Write(snap); err != nil {
			metrics.RecordSample(SampleFailed)
			return price.Snapshot{}, fmt.Errorf("write price cache: %w", err)
		}
	}

	if s.publisher != nil {
		s.publisher.Publish(snap)
	}

	metrics.RecordSample(SampleOK)

	fields := []zap.Field{zap.Time("timestamp", snap.Timestamp)}
	for _, asset := range price.Assets() {
		fields = append(fields, zap.Float64(asset.String(), snap.Prices[asset]))
	}
	s.logger.Info("saved current prices", fields...)

	return snap, nil
}
