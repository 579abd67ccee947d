package climo

import (
	"math"
	"sort"
)

// NumDeciles is the number of cut points stored per element: the 10th
// through 90th percentiles.
const NumDeciles = 9

// Deciles holds the 9 decile cut points of a sample distribution in
// percentile order, or nothing at all for a bucket with no samples.
// A zero-length Deciles is the documented outcome for an all-null bucket;
// it is distinct from nine zero values.
type Deciles []float64

// IsEmpty reports whether the distribution had no samples.
func (d Deciles) IsEmpty() bool { return len(d) == 0 }

// Distribution is the empirical CDF of a sample set. Construction strips
// NaN values and sorts ascending, so percentile lookups are pure index
// arithmetic afterwards.
type Distribution struct {
	sorted []float64
}

// NewDistribution builds a Distribution from raw samples. NaN values are
// dropped; the input slice is not retained.
func NewDistribution(samples []float64) *Distribution {
	sorted := make([]float64, 0, len(samples))
	for _, v := range samples {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	sort.Float64s(sorted)
	return &Distribution{sorted: sorted}
}

// Len returns the number of retained samples.
func (d *Distribution) Len() int { return len(d.sorted) }

// ValueAtPercentile returns the sample value at the given percentile
// (0..100) using the nearest-rank-floor order statistic at p*(n-1)/100.
// This policy is fixed: changing it requires a new blob format version.
// Returns NaN for an empty distribution.
func (d *Distribution) ValueAtPercentile(pct int) float64 {
	if len(d.sorted) == 0 {
		return math.NaN()
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	idx := pct * (len(d.sorted) - 1) / 100
	return d.sorted[idx]
}

// PercentileOfValue returns the percentile rank (0..100) of a value within
// the distribution. Returns 0 for distributions of fewer than two samples.
func (d *Distribution) PercentileOfValue(value float64) int {
	if len(d.sorted) < 2 || math.IsNaN(value) {
		return 0
	}
	idx := sort.SearchFloat64s(d.sorted, value)
	return idx * 100 / (len(d.sorted) - 1)
}

// Deciles returns the 9 decile cut points (10th..90th percentile), or an
// empty vector when the distribution has no samples. The result is
// non-decreasing by construction.
func (d *Distribution) Deciles() Deciles {
	if len(d.sorted) == 0 {
		return Deciles{}
	}
	out := make(Deciles, NumDeciles)
	for i := 0; i < NumDeciles; i++ {
		out[i] = d.ValueAtPercentile((i + 1) * 10)
	}
	return out
}
