package loadgen

import "math"

// Percentile returns the nearest-rank percentile of ascending-sorted
// samples: index ceil(p*n)-1, clamped to [0, n-1] so small sample sets
// (n < 20) still index safely. p is a fraction in (0, 1].
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}
