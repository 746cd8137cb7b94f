package ruleset

// CacheStats reports lightweight cache metrics.
// All fields are best-effort snapshots and may be updated concurrently.
type CacheStats struct {
	Capacity  int    `json:"capacity"`  // configured capacity (0 for disabled cache)
	Size      int    `json:"size"`      // current number of entries
	Hits      uint64 `json:"hits"`      // total cache hits since construction
	Misses    uint64 `json:"misses"`    // total cache misses since construction
	Evictions uint64 `json:"evictions"` // total evictions since construction
}

// ManagerStats exposes manager-level counters and the underlying cache stats.
type ManagerStats struct {
	Cache     CacheStats `json:"cache"`
	Loads     uint64     `json:"loads"`     // store fetches started
	Fallbacks uint64     `json:"fallbacks"` // evaluations served by defaults after a failed or timed out load
}
