package ruleset

import "github.com/haukened/linkguard/internal/links/common/utils"

// suffixIndex is a hashed suffix set: a lookup walks the host's parent
// domains from most specific to apex and probes each one, so a rule for
// "b.com" matches "a.b.com" but a rule for "a.b.com" never matches "b.com".
// An optional Bloom prefilter skips the map probe for definite misses.
type suffixIndex struct {
	names  map[string]struct{}
	filter Prefilter
}

func newSuffixIndex(names []string, factory PrefilterFactory, fpRate float64) *suffixIndex {
	ix := &suffixIndex{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		ix.names[n] = struct{}{}
	}
	if factory != nil && len(names) > 0 {
		ix.filter = factory.New(uint64(len(names)), fpRate)
		for n := range ix.names {
			ix.filter.Add([]byte(n))
		}
	}
	return ix
}

// match returns the most specific rule domain matching host.
func (ix *suffixIndex) match(host string) (string, bool) {
	if ix == nil || len(ix.names) == 0 {
		return "", false
	}
	for _, cand := range utils.ParentDomains(host) {
		if ix.filter != nil && !ix.filter.MightContain([]byte(cand)) {
			continue
		}
		if _, ok := ix.names[cand]; ok {
			return cand, true
		}
	}
	return "", false
}

func (ix *suffixIndex) len() int {
	if ix == nil {
		return 0
	}
	return len(ix.names)
}
