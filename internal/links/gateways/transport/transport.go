// Package transport exposes the link policy engine over HTTP. It converts
// requests into domain calls so the service layer never sees wire details.
package transport

import (
	"context"

	"github.com/haukened/linkguard/internal/links/domain"
	"github.com/haukened/linkguard/internal/links/repos/ruleset"
)

// ServerTransport is the lifecycle shared by every API transport.
type ServerTransport interface {
	// Start binds the listener and begins serving in the background.
	Start(ctx context.Context) error

	// Stop gracefully shuts down, waiting for in-flight requests.
	Stop() error

	// Address returns the network address the transport is bound to.
	Address() string
}

// Evaluator checks content against a tenant's link policy.
type Evaluator interface {
	Evaluate(ctx context.Context, tenantID, content string) (domain.ComplianceResult, error)
}

// RuleAdmin reads and mutates tenant rules.
type RuleAdmin interface {
	Load(ctx context.Context, tenantID string) *ruleset.Snapshot
	ListRules(ctx context.Context, tenantID string) ([]domain.DomainRule, error)
	AddRule(ctx context.Context, tenantID, domainName string, ruleType domain.RuleType, reason string) (domain.DomainRule, error)
	RemoveRule(ctx context.Context, tenantID string, ruleID uint64) error
	Stats() ruleset.ManagerStats
}

var _ RuleAdmin = (*ruleset.Manager)(nil)
