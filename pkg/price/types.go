package price

import "time"

// Observation is an instantaneous price captured by the sampler.
type Observation struct {
	Asset     Asset     `json:"symbol"`
	Price     float64   `json:"price_jpy"`
	Timestamp time.Time `json:"timestamp"`
}

// DailyPrice is the averaged price of one asset over one reference-timezone day.
// At most one exists per (Asset, Date).
type DailyPrice struct {
	Asset     Asset     `json:"symbol"`
	Date      Date      `json:"date"`
	Price     float64   `json:"price_jpy"`
	CreatedAt time.Time `json:"created_at"`
}

// Point is one sample of a ranged price query.
type Point struct {
	Time  time.Time
	Price float64
}

// Series is an upstream-ordered sequence of samples. It may be empty.
type Series []Point

// Mean returns the arithmetic mean of the sample prices, or 0 for an empty series.
// Samples are not weighted by the gaps between them.
func (s Series) Mean() float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, p := range s {
		sum += p.Price
	}
	return sum / float64(len(s))
}

// Snapshot is one sampler capture: every asset's price at a shared instant.
type Snapshot struct {
	Timestamp time.Time         `json:"timestamp"`
	Prices    map[Asset]float64 `json:"prices"`
}
