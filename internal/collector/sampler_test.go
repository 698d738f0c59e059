package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"pricecollector/pkg/price"
	"pricecollector/pkg/storage/memory"
)

type fakeCurrent struct {
	prices map[price.Asset]float64
	err    error
}

func (f *fakeCurrent) CurrentPrices(ctx context.Context) (map[price.Asset]float64, error) {
	return f.prices, f.err
}

type recordingCache struct {
	written []price.Snapshot
}

func (c *recordingCache) Write(s price.Snapshot) error {
	c.written = append(c.written, s)
	return nil
}

type recordingPublisher struct {
	published []price.Snapshot
}

func (p *recordingPublisher) Publish(s price.Snapshot) {
	p.published = append(p.published, s)
}

type failingAppendStore struct{}

func (failingAppendStore) AppendInstantPrices(ctx context.Context, obs []price.Observation) error {
	return errors.New("disk full")
}

// go test -v --run TestSampleStoresSharedTimestamp
func TestSampleStoresSharedTimestamp(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, time.May, 1, 3, 4, 5, 0, time.UTC)

	store := memory.New()
	cache := &recordingCache{}
	pub := &recordingPublisher{}
	s := NewSampler(
		&fakeCurrent{prices: map[price.Asset]float64{price.XEM: 3.1, price.XYM: 2.7}},
		store, nil,
		WithCache(cache),
		WithPublisher(pub),
		WithSamplerClock(func() time.Time { return at }),
	)

	snap, err := s.Sample(ctx)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if !snap.Timestamp.Equal(at) || snap.Prices[price.XEM] != 3.1 || snap.Prices[price.XYM] != 2.7 {
		t.Errorf("snapshot=%+v", snap)
	}

	for _, asset := range price.Assets() {
		obs, ok, err := store.LatestInstantPrice(ctx, asset)
		if err != nil || !ok {
			t.Fatalf("%s: ok=%v err=%v", asset, ok, err)
		}
		if !obs.Timestamp.Equal(at) {
			t.Errorf("%s timestamp=%v want shared %v", asset, obs.Timestamp, at)
		}
	}

	if len(cache.written) != 1 || !cache.written[0].Timestamp.Equal(at) {
		t.Errorf("cache writes=%+v", cache.written)
	}
	if len(pub.published) != 1 {
		t.Errorf("published=%d want 1", len(pub.published))
	}
}

// go test -v --run TestSampleRejectsZeroPrice
func TestSampleRejectsZeroPrice(t *testing.T) {
	store := memory.New()
	cache := &recordingCache{}
	s := NewSampler(
		&fakeCurrent{prices: map[price.Asset]float64{price.XEM: 3.1, price.XYM: 0}},
		store, nil, WithCache(cache),
	)

	if _, err := s.Sample(context.Background()); err == nil {
		t.Fatal("expected error for zero price")
	}
	if store.CountInstant(price.XEM) != 0 || store.CountInstant(price.XYM) != 0 {
		t.Error("no asset may be stored when one price is unusable")
	}
	if len(cache.written) != 0 {
		t.Error("cache must not be written")
	}
}

// go test -v --run TestSampleUpstreamError
func TestSampleUpstreamError(t *testing.T) {
	upstream := errors.New("retries exhausted")
	s := NewSampler(&fakeCurrent{err: upstream}, memory.New(), nil)

	if _, err := s.Sample(context.Background()); !errors.Is(err, upstream) {
		t.Fatalf("err=%v want wrapped upstream error", err)
	}
}

// go test -v --run TestSampleStoreErrorSkipsCache
func TestSampleStoreErrorSkipsCache(t *testing.T) {
	cache := &recordingCache{}
	pub := &recordingPublisher{}
	s := NewSampler(
		&fakeCurrent{prices: map[price.Asset]float64{price.XEM: 1, price.XYM: 1}},
		failingAppendStore{}, nil, WithCache(cache), WithPublisher(pub),
	)

	if _, err := s.Sample(context.Background()); err == nil {
		t.Fatal("expected store error")
	}
	if len(cache.written) != 0 || len(pub.published) != 0 {
		t.Error("nothing downstream of a failed store write may run")
	}
}
