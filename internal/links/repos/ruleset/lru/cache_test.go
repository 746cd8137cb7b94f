package lru

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/linkguard/internal/links/domain"
	"github.com/haukened/linkguard/internal/links/repos/ruleset"
)

func snapshotFor(tenant string) *ruleset.Snapshot {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	rules := []domain.DomainRule{{TenantID: tenant, Domain: "example.com", Type: domain.RuleBlocked, Active: true, AddedAt: now}}
	return ruleset.NewCompiler(nil, 0).Compile(tenant, ruleset.SourceTenant, rules, now)
}

func TestCache_GetPutStats(t *testing.T) {
	c := New(2, time.Minute)

	_, ok := c.Get("acme")
	assert.False(t, ok)

	s := snapshotFor("acme")
	c.Put("acme", s)
	got, ok := c.Get("acme")
	require.True(t, ok)
	assert.Same(t, s, got)

	st := c.Stats()
	assert.Equal(t, 2, st.Capacity)
	assert.Equal(t, 1, st.Size)
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2, 0)
	c.Put("a", snapshotFor("a"))
	c.Put("b", snapshotFor("b"))
	_, _ = c.Get("a")
	c.Put("c", snapshotFor("c"))

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestCache_RemoveAndPurge(t *testing.T) {
	c := New(4, 0)
	c.Put("a", snapshotFor("a"))
	c.Put("b", snapshotFor("b"))

	c.Remove("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, uint64(2), c.Stats().Evictions)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := New(4, 20*time.Millisecond)
	c.Put("a", snapshotFor("a"))
	assert.Eventually(t, func() bool {
		_, ok := c.Get("a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestCache_Disabled(t *testing.T) {
	c := New(0, time.Minute)
	c.Put("a", snapshotFor("a"))
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	c.Remove("a")
	c.Purge()
	assert.Equal(t, ruleset.CacheStats{}, c.Stats())
}
