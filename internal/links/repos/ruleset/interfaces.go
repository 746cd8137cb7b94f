package ruleset

import (
	"context"

	"github.com/haukened/linkguard/internal/links/domain"
)

// Prefilter is the minimal interface the suffix index needs from a Bloom filter.
// A negative answer is definitive; a positive answer must be confirmed.
type Prefilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// PrefilterFactory builds a Prefilter sized for capacity keys at fpRate.
type PrefilterFactory interface {
	New(capacity uint64, fpRate float64) Prefilter
}

// SnapshotCache caches compiled snapshots by tenant id with basic metrics.
type SnapshotCache interface {
	Get(tenantID string) (*Snapshot, bool)
	Put(tenantID string, s *Snapshot)
	Remove(tenantID string)
	Len() int
	Purge()
	Stats() CacheStats
}

// Store is the rule persistence collaborator. Every method is treated as a
// fallible remote call.
//   - ListActiveRules: active rules for a tenant, in insertion order
//   - ListRules: all rules for a tenant, active or not
//   - InsertRule: persists a new rule and returns it with its assigned ID
//   - DeleteRule: removes a rule by ID
type Store interface {
	ListActiveRules(ctx context.Context, tenantID string) ([]domain.DomainRule, error)
	ListRules(ctx context.Context, tenantID string) ([]domain.DomainRule, error)
	InsertRule(ctx context.Context, rule domain.DomainRule) (domain.DomainRule, error)
	DeleteRule(ctx context.Context, tenantID string, id uint64) error
	Close() error
}
