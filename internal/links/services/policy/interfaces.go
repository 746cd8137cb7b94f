package policy

import (
	"context"

	"github.com/haukened/linkguard/internal/links/repos/ruleset"
)

// RuleSetLoader resolves the rule snapshot for a tenant. Implementations must
// never fail: on any load problem they return a usable fallback snapshot.
type RuleSetLoader interface {
	Load(ctx context.Context, tenantID string) *ruleset.Snapshot
}

// BlockCounter records that a domain was rejected for a tenant.
// It is a best-effort side channel; errors never reach the evaluation caller.
type BlockCounter interface {
	RecordBlocked(ctx context.Context, tenantID, domain string) error
}

var _ RuleSetLoader = (*ruleset.Manager)(nil)
