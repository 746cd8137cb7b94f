package ruleset

import (
	"time"

	"github.com/haukened/linkguard/internal/links/domain"
)

// SystemTenant is the tenant id attached to compiled system default rules.
const SystemTenant = "_system"

// defaultBlocked are paywalled or aggregator sources that generated content
// must not cite.
var defaultBlocked = []string{
	"nytimes.com",
	"wsj.com",
	"washingtonpost.com",
	"ft.com",
	"bloomberg.com",
	"economist.com",
	"forbes.com",
	"businessinsider.com",
	"medium.com",
	"quora.com",
	"reddit.com",
	"wikipedia.org",
}

// defaultAllowed are primary data sources that are always acceptable.
var defaultAllowed = []string{
	"bls.gov",
	"census.gov",
	"bea.gov",
	"sec.gov",
	"irs.gov",
	"federalreserve.gov",
	"treasury.gov",
	"usa.gov",
	"cdc.gov",
	"nih.gov",
	"who.int",
	"worldbank.org",
	"oecd.org",
	"imf.org",
}

// DefaultRules returns the compiled-in system default rules, timestamped at.
func DefaultRules(at time.Time) []domain.DomainRule {
	out := make([]domain.DomainRule, 0, len(defaultBlocked)+len(defaultAllowed))
	appendRules := func(names []string, t domain.RuleType) {
		for _, n := range names {
			out = append(out, domain.DomainRule{
				TenantID:        SystemTenant,
				Domain:          n,
				Type:            t,
				MatchSubdomains: true,
				Active:          true,
				Reason:          "system default",
				AddedAt:         at,
			})
		}
	}
	appendRules(defaultBlocked, domain.RuleBlocked)
	appendRules(defaultAllowed, domain.RuleAllowed)
	return out
}
