// Package storagetest holds behaviour checks shared by every storage.Store backend.
package storagetest

import (
	"context"
	"testing"
	"time"

	"pricecollector/pkg/price"
	"pricecollector/pkg/storage"
)

// Run exercises s against the Store contract. s must start empty.
func Run(t *testing.T, s storage.Store) {
	t.Helper()
	t.Run("DailyUpsert", func(t *testing.T) { testDailyUpsert(t, s) })
	t.Run("DailyQuery", func(t *testing.T) { testDailyQuery(t, s) })
	t.Run("InstantPrices", func(t *testing.T) { testInstantPrices(t, s) })
}

func testDailyUpsert(t *testing.T, s storage.Store) {
	ctx := context.Background()
	date := price.NewDate(2024, time.January, 15)

	exists, err := s.DailyPriceExists(ctx, price.XEM, date)
	if err != nil {
		t.Fatalf("DailyPriceExists: %v", err)
	}
	if exists {
		t.Fatal("expected no row before insert")
	}

	if err := s.UpsertDailyPrice(ctx, price.DailyPrice{Asset: price.XEM, Date: date, Price: 3.5}); err != nil {
		t.Fatalf("UpsertDailyPrice: %v", err)
	}
	if err := s.UpsertDailyPrice(ctx, price.DailyPrice{Asset: price.XEM, Date: date, Price: 4.25}); err != nil {
		t.Fatalf("UpsertDailyPrice (replace): %v", err)
	}

	exists, err = s.DailyPriceExists(ctx, price.XEM, date)
	if err != nil || !exists {
		t.Fatalf("exists=%v err=%v, want true", exists, err)
	}

	// other asset on the same date is independent
	exists, err = s.DailyPriceExists(ctx, price.XYM, date)
	if err != nil || exists {
		t.Fatalf("XYM exists=%v err=%v, want false", exists, err)
	}

	got, err := s.QueryDailyPrices(ctx, price.XEM, date, date)
	if err != nil {
		t.Fatalf("QueryDailyPrices: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("rows=%d want 1 (upsert must replace)", len(got))
	}
	if got[0].Price != 4.25 || got[0].Date != date || got[0].Asset != price.XEM {
		t.Errorf("unexpected row: %+v", got[0])
	}
}

func testDailyQuery(t *testing.T, s storage.Store) {
	ctx := context.Background()
	start := price.NewDate(2024, time.March, 1)

	// insert out of order
	for _, offset := range []int{3, 0, 2, 1, 5} {
		p := price.DailyPrice{Asset: price.XYM, Date: start.AddDays(offset), Price: float64(offset + 1)}
		if err := s.UpsertDailyPrice(ctx, p); err != nil {
			t.Fatalf("UpsertDailyPrice: %v", err)
		}
	}

	got, err := s.QueryDailyPrices(ctx, price.XYM, start.AddDays(1), start.AddDays(3))
	if err != nil {
		t.Fatalf("QueryDailyPrices: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("rows=%d want 3: %+v", len(got), got)
	}
	for i, p := range got {
		if want := start.AddDays(i + 1); p.Date != want {
			t.Errorf("row %d date=%s want %s", i, p.Date, want)
		}
	}

	got, err = s.QueryDailyPrices(ctx, price.XYM, start.AddDays(10), start.AddDays(20))
	if err != nil {
		t.Fatalf("QueryDailyPrices (empty): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("rows=%d want 0", len(got))
	}
}

func testInstantPrices(t *testing.T, s storage.Store) {
	ctx := context.Background()
	base := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)

	if _, ok, err := s.LatestInstantPrice(ctx, price.XEM); err != nil || ok {
		t.Fatalf("ok=%v err=%v, want no observation", ok, err)
	}

	batches := [][]price.Observation{
		{
			{Asset: price.XEM, Price: 3.0, Timestamp: base},
			{Asset: price.XYM, Price: 2.0, Timestamp: base},
		},
		{
			{Asset: price.XEM, Price: 3.3, Timestamp: base.Add(10 * time.Minute)},
			{Asset: price.XYM, Price: 2.2, Timestamp: base.Add(10 * time.Minute)},
		},
	}
	for _, b := range batches {
		if err := s.AppendInstantPrices(ctx, b); err != nil {
			t.Fatalf("AppendInstantPrices: %v", err)
		}
	}

	latest, ok, err := s.LatestInstantPrice(ctx, price.XEM)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if latest.Price != 3.3 || !latest.Timestamp.Equal(base.Add(10*time.Minute)) {
		t.Errorf("latest=%+v", latest)
	}

	removed, err := s.PruneInstantPrices(ctx, base.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("PruneInstantPrices: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed=%d want 2", removed)
	}

	latest, ok, err = s.LatestInstantPrice(ctx, price.XYM)
	if err != nil || !ok || latest.Price != 2.2 {
		t.Errorf("after prune latest=%+v ok=%v err=%v", latest, ok, err)
	}
}
