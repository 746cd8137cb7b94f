package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/linkguard/internal/links/repos/ruleset"
)

// factory implements ruleset.PrefilterFactory using internal sizing formulas.
type factory struct{}

// NewFactory returns a PrefilterFactory that sizes filters from capacity and FP rate.
func NewFactory() ruleset.PrefilterFactory { return factory{} }

// New constructs a Bloom filter sized for capacity keys at fpRate.
func (factory) New(capacity uint64, fpRate float64) ruleset.Prefilter {
	m, k := size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}
