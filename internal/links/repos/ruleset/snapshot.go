package ruleset

import (
	"slices"
	"time"

	"github.com/haukened/linkguard/internal/links/common/utils"
	"github.com/haukened/linkguard/internal/links/domain"
)

// Source records where a snapshot's rules came from.
type Source string

const (
	// SourceTenant means the tenant's own active rules replaced the defaults.
	SourceTenant Source = "tenant"
	// SourceDefaults means the tenant has no active rules; system defaults apply.
	SourceDefaults Source = "defaults"
	// SourceFallback means loading failed or timed out; system defaults apply for this evaluation only.
	SourceFallback Source = "fallback"
)

// Snapshot is an immutable, fully-resolved Domain Rule Set for one tenant.
// Trusted rules are folded into allowed; competitor rules are folded into
// blocked and also tracked separately for labeling. A domain that is both
// blocked and allowed keeps only its blocked verdict.
//
// Snapshots are never mutated after Compile and are safe for concurrent use.
type Snapshot struct {
	tenantID string
	source   Source
	loadedAt time.Time

	blocked    *suffixIndex
	allowed    *suffixIndex
	competitor *suffixIndex

	blockedList    []string
	allowedList    []string
	competitorList []string
}

// DefaultFPRate is the Bloom prefilter false-positive target used when none is configured.
const DefaultFPRate = 0.01

// Compiler turns rule records into snapshots.
type Compiler struct {
	factory PrefilterFactory
	fpRate  float64
}

// NewCompiler returns a Compiler. factory may be nil to disable prefiltering.
func NewCompiler(factory PrefilterFactory, fpRate float64) *Compiler {
	if !(fpRate > 0 && fpRate < 1) {
		fpRate = DefaultFPRate
	}
	return &Compiler{factory: factory, fpRate: fpRate}
}

// Compile builds a snapshot from rules. Inactive rules and rules whose domain
// does not normalize to a valid host are ignored.
func (c *Compiler) Compile(tenantID string, source Source, rules []domain.DomainRule, at time.Time) *Snapshot {
	if c == nil {
		c = NewCompiler(nil, DefaultFPRate)
	}
	blocked := make(map[string]struct{})
	allowed := make(map[string]struct{})
	competitor := make(map[string]struct{})

	for _, r := range rules {
		if !r.Active {
			continue
		}
		name := utils.CanonicalHost(domain.NormalizeDomain(r.Domain))
		if !domain.IsValidDomain(name) {
			continue
		}
		switch r.Type {
		case domain.RuleBlocked:
			blocked[name] = struct{}{}
		case domain.RuleCompetitor:
			blocked[name] = struct{}{}
			competitor[name] = struct{}{}
		case domain.RuleAllowed, domain.RuleTrusted:
			allowed[name] = struct{}{}
		}
	}
	for name := range blocked {
		delete(allowed, name)
	}

	s := &Snapshot{
		tenantID:       tenantID,
		source:         source,
		loadedAt:       at,
		blockedList:    sortedKeys(blocked),
		allowedList:    sortedKeys(allowed),
		competitorList: sortedKeys(competitor),
	}
	s.blocked = newSuffixIndex(s.blockedList, c.factory, c.fpRate)
	s.allowed = newSuffixIndex(s.allowedList, c.factory, c.fpRate)
	s.competitor = newSuffixIndex(s.competitorList, c.factory, c.fpRate)
	return s
}

// forTenant returns a shallow copy attributed to tenantID with the given source.
// The indexes are shared; they are immutable.
func (s *Snapshot) forTenant(tenantID string, source Source) *Snapshot {
	cp := *s
	cp.tenantID = tenantID
	cp.source = source
	return &cp
}

// MatchBlocked returns the blocked (or competitor) rule domain matching host.
func (s *Snapshot) MatchBlocked(host string) (string, bool) {
	return s.blocked.match(utils.CanonicalHost(host))
}

// MatchCompetitor returns the competitor rule domain matching host.
func (s *Snapshot) MatchCompetitor(host string) (string, bool) {
	return s.competitor.match(utils.CanonicalHost(host))
}

// MatchAllowed returns the allowed (or trusted) rule domain matching host.
func (s *Snapshot) MatchAllowed(host string) (string, bool) {
	return s.allowed.match(utils.CanonicalHost(host))
}

func (s *Snapshot) TenantID() string    { return s.tenantID }
func (s *Snapshot) Source() Source      { return s.source }
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Blocked returns a sorted copy of the blocked domains, competitors included.
func (s *Snapshot) Blocked() []string { return slices.Clone(s.blockedList) }

// Allowed returns a sorted copy of the allowed domains, trusted included.
func (s *Snapshot) Allowed() []string { return slices.Clone(s.allowedList) }

// Competitor returns a sorted copy of the competitor domains.
func (s *Snapshot) Competitor() []string { return slices.Clone(s.competitorList) }

// Len returns the number of distinct blocked and allowed domains.
func (s *Snapshot) Len() int { return s.blocked.len() + s.allowed.len() }

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
