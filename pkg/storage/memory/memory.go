package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pricecollector/pkg/price"
)

// Store keeps prices in process memory. It backs tests and dry runs.
type Store struct {
	globalMu sync.RWMutex
	data     map[price.Asset]*assetStore
}

type assetStore struct {
	mu      sync.Mutex
	daily   map[price.Date]price.DailyPrice
	instant []price.Observation
}

func New() *Store {
	return &Store{
		data: make(map[price.Asset]*assetStore),
	}
}

func (s *Store) asset(a price.Asset) *assetStore {
	// Fast path: lock per-asset store only
	s.globalMu.RLock()
	store, ok := s.data[a]
	s.globalMu.RUnlock()
	if ok {
		return store
	}

	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	if store, ok = s.data[a]; !ok {
		store = &assetStore{daily: make(map[price.Date]price.DailyPrice)}
		s.data[a] = store
	}
	return store
}

func (s *Store) UpsertDailyPrice(ctx context.Context, p price.DailyPrice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	store := s.asset(p.Asset)
	store.mu.Lock()
	store.daily[p.Date] = p
	store.mu.Unlock()
	return nil
}

func (s *Store) DailyPriceExists(ctx context.Context, asset price.Asset, date price.Date) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	store := s.asset(asset)
	store.mu.Lock()
	defer store.mu.Unlock()
	_, ok := store.daily[date]
	return ok, nil
}

func (s *Store) QueryDailyPrices(ctx context.Context, asset price.Asset, from, to price.Date) ([]price.DailyPrice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store := s.asset(asset)
	store.mu.Lock()
	out := make([]price.DailyPrice, 0, len(store.daily))
	for d, p := range store.daily {
		if d.Before(from) || to.Before(d) {
			continue
		}
		out = append(out, p)
	}
	store.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) AppendInstantPrices(ctx context.Context, obs []price.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Hold every affected asset lock, in a fixed order, so the batch lands at once.
	stores := make(map[price.Asset]*assetStore)
	keys := make([]string, 0, len(obs))
	for _, o := range obs {
		if _, ok := stores[o.Asset]; !ok {
			stores[o.Asset] = s.asset(o.Asset)
			keys = append(keys, string(o.Asset))
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		st := stores[price.Asset(k)]
		st.mu.Lock()
		defer st.mu.Unlock()
	}

	for _, o := range obs {
		stores[o.Asset].instant = append(stores[o.Asset].instant, o)
	}
	return nil
}

func (s *Store) LatestInstantPrice(ctx context.Context, asset price.Asset) (price.Observation, bool, error) {
	if err := ctx.Err(); err != nil {
		return price.Observation{}, false, err
	}

	store := s.asset(asset)
	store.mu.Lock()
	defer store.mu.Unlock()

	var latest price.Observation
	found := false
	for _, o := range store.instant {
		if !found || !o.Timestamp.Before(latest.Timestamp) {
			latest = o
			found = true
		}
	}
	return latest, found, nil
}

func (s *Store) PruneInstantPrices(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	var removed int64
	for _, store := range s.data {
		store.mu.Lock()
		kept := store.instant[:0]
		for _, o := range store.instant {
			if o.Timestamp.Before(before) {
				removed++
				continue
			}
			kept = append(kept, o)
		}
		store.instant = kept
		store.mu.Unlock()
	}
	return removed, nil
}

// CountInstant returns the number of stored observations for asset.
func (s *Store) CountInstant(asset price.Asset) int {
	store := s.asset(asset)
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.instant)
}

func (s *Store) Close() error {
	return nil
}
