package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pricecollector/pkg/price"
)

// go test -v --run TestCoinIDCoversEveryAsset
func TestCoinIDCoversEveryAsset(t *testing.T) {
	for _, asset := range price.Assets() {
		if _, err := CoinID(asset); err != nil {
			t.Errorf("asset %s: %v", asset, err)
		}
	}
	if _, err := CoinID("BTC"); err == nil {
		t.Error("expected error for untracked asset")
	}
}

// go test -v --run TestCurrentPrices
func TestCurrentPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("path=%s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("ids") != "nem,symbol" || q.Get("vs_currencies") != "jpy" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"nem":{"jpy":3.21},"symbol":{"jpy":2.5}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	prices, err := c.CurrentPrices(context.Background())
	if err != nil {
		t.Fatalf("CurrentPrices: %v", err)
	}
	if prices[price.XEM] != 3.21 || prices[price.XYM] != 2.5 {
		t.Errorf("unexpected prices: %v", prices)
	}
}

// go test -v --run TestCurrentPricesMissingAssetIsZero
func TestCurrentPricesMissingAssetIsZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"nem":{"jpy":"oops"}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	prices, err := c.CurrentPrices(context.Background())
	if err != nil {
		t.Fatalf("CurrentPrices: %v", err)
	}
	if prices[price.XEM] != 0 || prices[price.XYM] != 0 {
		t.Errorf("expected zero sentinels, got %v", prices)
	}
	if len(prices) != 2 {
		t.Errorf("expected every asset present, got %v", prices)
	}
}

// go test -v --run TestCurrentPricesInvalidJSON
func TestCurrentPricesInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	if _, err := c.CurrentPrices(context.Background()); err == nil {
		t.Fatal("expected error for non-json body")
	}
}

// go test -v --run TestPriceSeries
func TestPriceSeries(t *testing.T) {
	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24*time.Hour - time.Second)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/symbol/market_chart/range" {
			t.Errorf("path=%s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("vs_currency") != "jpy" || q.Get("from") != "1704067200" || q.Get("to") != "1704153599" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"prices":[[1704067200000,2.0],[1704070800000,"bad"],[1704074400000],[1704078000000,4.0]],"market_caps":[]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	series, err := c.PriceSeries(context.Background(), price.XYM, from, to)
	if err != nil {
		t.Fatalf("PriceSeries: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("len=%d want 2 (malformed rows skipped): %v", len(series), series)
	}
	if !series[0].Time.Equal(from) || series[0].Price != 2.0 || series[1].Price != 4.0 {
		t.Errorf("unexpected series: %v", series)
	}
}

// go test -v --run TestPriceSeriesEmpty
func TestPriceSeriesEmpty(t *testing.T) {
	for _, payload := range []string{`{"prices":[]}`, `{}`} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(payload))
		}))

		c := NewClient(server.URL)
		series, err := c.PriceSeries(context.Background(), price.XEM, time.Now().Add(-time.Hour), time.Now())
		server.Close()

		if err != nil {
			t.Errorf("payload %s: unexpected error %v", payload, err)
			continue
		}
		if series == nil || len(series) != 0 {
			t.Errorf("payload %s: want empty non-nil series, got %#v", payload, series)
		}
	}
}

// go test -v --run TestHistoricalSnapshot
func TestHistoricalSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/nem/history" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if got := r.URL.Query().Get("date"); got != "05-03-2024" {
			t.Errorf("date=%q want 05-03-2024", got)
		}
		w.Write([]byte(`{"id":"nem","market_data":{"current_price":{"jpy":4.56,"usd":0.03}}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	p, err := c.HistoricalSnapshot(context.Background(), price.XEM, price.NewDate(2024, time.March, 5))
	if err != nil {
		t.Fatalf("HistoricalSnapshot: %v", err)
	}
	if p != 4.56 {
		t.Errorf("price=%v want 4.56", p)
	}
}

// go test -v --run TestHistoricalSnapshotMissingField
func TestHistoricalSnapshotMissingField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"nem","name":"NEM"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	p, err := c.HistoricalSnapshot(context.Background(), price.XEM, price.NewDate(2024, time.March, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != 0 {
		t.Errorf("price=%v want 0", p)
	}
}

// go test -v --run TestFormatHistoryDate
func TestFormatHistoryDate(t *testing.T) {
	if got := formatHistoryDate(price.NewDate(2023, time.December, 9)); got != "09-12-2023" {
		t.Errorf("got %s want 09-12-2023", got)
	}
}
