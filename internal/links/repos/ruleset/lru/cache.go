package lru

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/haukened/linkguard/internal/links/repos/ruleset"
)

// snapshotCache is an expiring LRU of compiled tenant snapshots.
// It tracks basic metrics: hits, misses, and evictions.
type snapshotCache struct {
	lru       *expirable.LRU[string, *ruleset.Snapshot]
	capacity  int
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// disabledCache is a no-op SnapshotCache used when size <= 0.
type disabledCache struct{}

// New creates a SnapshotCache holding at most size tenants, each entry
// expiring after ttl (ttl <= 0 disables expiry). If size <= 0, a disabled
// no-op cache is returned that always misses.
func New(size int, ttl time.Duration) ruleset.SnapshotCache {
	if size <= 0 {
		return disabledCache{}
	}
	c := &snapshotCache{capacity: size}
	// The eviction callback also fires for Remove, Purge and expiry.
	c.lru = expirable.NewLRU[string, *ruleset.Snapshot](size, func(string, *ruleset.Snapshot) {
		c.evictions.Add(1)
	}, ttl)
	return c
}

// Get looks up a snapshot by tenant. When found, increments hits; otherwise increments misses.
func (c *snapshotCache) Get(tenantID string) (*ruleset.Snapshot, bool) {
	if s, ok := c.lru.Get(tenantID); ok {
		c.hits.Add(1)
		return s, true
	}
	c.misses.Add(1)
	return nil, false
}

// Put stores a snapshot by tenant, replacing any previous one whole.
func (c *snapshotCache) Put(tenantID string, s *ruleset.Snapshot) {
	c.lru.Add(tenantID, s)
}

func (c *snapshotCache) Remove(tenantID string) { c.lru.Remove(tenantID) }

func (c *snapshotCache) Len() int { return c.lru.Len() }

func (c *snapshotCache) Purge() { c.lru.Purge() }

func (c *snapshotCache) Stats() ruleset.CacheStats {
	return ruleset.CacheStats{
		Capacity:  c.capacity,
		Size:      c.lru.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (disabledCache) Get(string) (*ruleset.Snapshot, bool) { return nil, false }
func (disabledCache) Put(string, *ruleset.Snapshot)        {}
func (disabledCache) Remove(string)                        {}
func (disabledCache) Len() int                             { return 0 }
func (disabledCache) Purge()                               {}
func (disabledCache) Stats() ruleset.CacheStats            { return ruleset.CacheStats{} }

var _ ruleset.SnapshotCache = (*snapshotCache)(nil)
var _ ruleset.SnapshotCache = disabledCache{}
