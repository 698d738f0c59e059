package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"pricecollector/pkg/price"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSource struct {
	series      price.Series
	seriesErr   error
	snapshot    float64
	snapshotErr error

	seriesCalls   int
	snapshotCalls int
	from, to      time.Time
}

func (f *fakeSource) PriceSeries(ctx context.Context, asset price.Asset, from, to time.Time) (price.Series, error) {
	f.seriesCalls++
	f.from, f.to = from, to
	return f.series, f.seriesErr
}

func (f *fakeSource) HistoricalSnapshot(ctx context.Context, asset price.Asset, date price.Date) (float64, error) {
	f.snapshotCalls++
	return f.snapshot, f.snapshotErr
}

func tokyo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	return loc
}

// go test -v --run TestAverageForMean
func TestAverageForMean(t *testing.T) {
	loc := tokyo(t)
	src := &fakeSource{series: price.Series{{Price: 1}, {Price: 2}, {Price: 3}, {Price: 6}}}
	a := NewAverager(src, loc, zap.NewNop())

	got, err := a.AverageFor(context.Background(), price.XEM, price.NewDate(2024, time.January, 2))
	if err != nil {
		t.Fatalf("AverageFor: %v", err)
	}
	if got != 3 {
		t.Errorf("avg=%v want 3", got)
	}

	// 2024-01-02 00:00:00 JST is 2024-01-01 15:00:00 UTC
	if want := time.Date(2024, time.January, 1, 15, 0, 0, 0, time.UTC); !src.from.Equal(want) {
		t.Errorf("from=%v want %v", src.from.UTC(), want)
	}
	if want := time.Date(2024, time.January, 2, 14, 59, 59, 0, time.UTC); !src.to.Equal(want) {
		t.Errorf("to=%v want %v", src.to.UTC(), want)
	}
	if src.snapshotCalls != 0 {
		t.Errorf("snapshot called %d times", src.snapshotCalls)
	}
}

// go test -v --run TestAverageForEmptySeries
func TestAverageForEmptySeries(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	src := &fakeSource{series: price.Series{}}
	a := NewAverager(src, tokyo(t), zap.New(core))

	got, err := a.AverageFor(context.Background(), price.XYM, price.NewDate(2024, time.January, 2))
	if err != nil {
		t.Fatalf("empty series must not be an error: %v", err)
	}
	if got != 0 {
		t.Errorf("avg=%v want 0", got)
	}
	if src.snapshotCalls != 0 {
		t.Error("empty series must not trigger the fallback")
	}
	if logs.FilterMessage("no price data for day").Len() != 1 {
		t.Error("expected a no-data warning")
	}
}

// go test -v --run TestAverageForFallback
func TestAverageForFallback(t *testing.T) {
	src := &fakeSource{seriesErr: errors.New("range endpoint down"), snapshot: 7.5}
	a := NewAverager(src, tokyo(t), nil)

	got, err := a.AverageFor(context.Background(), price.XEM, price.NewDate(2024, time.January, 2))
	if err != nil {
		t.Fatalf("AverageFor: %v", err)
	}
	if got != 7.5 {
		t.Errorf("avg=%v want fallback value 7.5", got)
	}
	if src.snapshotCalls != 1 {
		t.Errorf("snapshot calls=%d want 1", src.snapshotCalls)
	}
}

// go test -v --run TestAverageForFallbackFails
func TestAverageForFallbackFails(t *testing.T) {
	primary := errors.New("range endpoint down")
	fallback := errors.New("history endpoint down")

	core, logs := observer.New(zapcore.ErrorLevel)
	src := &fakeSource{seriesErr: primary, snapshotErr: fallback}
	a := NewAverager(src, tokyo(t), zap.New(core))

	_, err := a.AverageFor(context.Background(), price.XEM, price.NewDate(2024, time.January, 2))
	if !errors.Is(err, primary) {
		t.Fatalf("err=%v want the primary error", err)
	}
	if errors.Is(err, fallback) {
		t.Error("fallback error must not be surfaced")
	}
	if logs.FilterMessage("snapshot fallback failed").Len() != 1 {
		t.Error("expected the fallback failure to be logged")
	}
}
