package bloom

import "math"

// size computes Bloom filter parameters using the standard formulas:
//
//	m = - (n * ln p) / (ln 2)^2
//	k = (m / n) * ln 2
//
// n == 0 is treated as 1 and an out-of-range p defaults to 1%.
// Results are clamped to at least 1.
func size(n uint64, p float64) (m uint64, k uint8) {
	if n == 0 {
		n = 1
	}
	if !(p > 0 && p < 1) {
		p = 0.01
	}
	ln2 := math.Ln2
	m = uint64(math.Ceil(-float64(n) * math.Log(p) / (ln2 * ln2)))
	if m == 0 {
		m = 1
	}
	k = uint8(math.Max(1, math.Round((float64(m)/float64(n))*ln2)))
	return m, k
}
