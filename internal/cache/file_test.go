package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pricecollector/pkg/price"
)

// go test -v --run TestFileCacheRoundTrip
func TestFileCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "current-prices.json")
	c := NewFileCache(path)

	at := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	snap := price.Snapshot{Timestamp: at, Prices: map[price.Asset]float64{price.XEM: 3.5, price.XYM: 2.25}}
	if err := c.Write(snap); err != nil {
		t.Fatalf("Write: %v", err)
	}

	b, err := c.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	var doc struct {
		Timestamp time.Time          `json:"timestamp"`
		Prices    map[string]float64 `json:"prices"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !doc.Timestamp.Equal(at) || doc.Prices["XEM"] != 3.5 || doc.Prices["XYM"] != 2.25 {
		t.Errorf("doc=%+v", doc)
	}

	// no temp files left behind
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("entries=%d want 1", len(entries))
	}
}

// go test -v --run TestFileCacheMissing
func TestFileCacheMissing(t *testing.T) {
	c := NewFileCache(filepath.Join(t.TempDir(), "absent.json"))
	if _, err := c.Read(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v want os.ErrNotExist", err)
	}
}
