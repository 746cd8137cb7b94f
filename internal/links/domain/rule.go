package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// RuleType is the persisted kind of a tenant domain rule.
type RuleType string

const (
	RuleBlocked    RuleType = "blocked"
	RuleAllowed    RuleType = "allowed"
	RuleCompetitor RuleType = "competitor"
	RuleTrusted    RuleType = "trusted"
)

// ParseRuleType converts a string into a RuleType (case-insensitive).
func ParseRuleType(s string) (RuleType, error) {
	switch t := RuleType(strings.ToLower(strings.TrimSpace(s))); t {
	case RuleBlocked, RuleAllowed, RuleCompetitor, RuleTrusted:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRuleType, s)
	}
}

// RuleTypes lists every supported rule type in a stable order.
func RuleTypes() []RuleType {
	return []RuleType{RuleBlocked, RuleAllowed, RuleCompetitor, RuleTrusted}
}

// DomainRule is a single tenant-scoped policy entry.
//
// Notes:
// - Domain is canonical: lowercase, no scheme, no path, no trailing dot.
// - Identity is (TenantID, Domain, Type); ID is assigned by the store.
// - MatchSubdomains is kept for round-tripping; matching is always apex-inclusive.
type DomainRule struct {
	ID              uint64    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	Domain          string    `json:"domain"`
	Type            RuleType  `json:"rule_type"`
	MatchSubdomains bool      `json:"match_subdomains"`
	Active          bool      `json:"active"`
	Reason          string    `json:"reason,omitempty"`
	AddedAt         time.Time `json:"added_at"`
}

// NormalizeTenant returns the canonical form of a tenant id, used for both
// storage and cache keys.
func NormalizeTenant(tenantID string) string {
	return strings.TrimSpace(tenantID)
}

// NewDomainRule constructs an active rule with a normalized domain and validates it.
func NewDomainRule(tenantID, domainName string, ruleType RuleType, reason string, addedAt time.Time) (DomainRule, error) {
	r := DomainRule{
		TenantID:        NormalizeTenant(tenantID),
		Domain:          NormalizeDomain(domainName),
		Type:            ruleType,
		MatchSubdomains: true,
		Active:          true,
		Reason:          strings.TrimSpace(reason),
		AddedAt:         addedAt,
	}
	if err := r.Validate(); err != nil {
		return DomainRule{}, err
	}
	return r, nil
}

// Validate checks the rule for required fields and supported values.
func (r DomainRule) Validate() error {
	if r.TenantID == "" {
		return ErrInvalidTenant
	}
	if !IsValidDomain(r.Domain) {
		return fmt.Errorf("%w: %q", ErrInvalidDomain, r.Domain)
	}
	if _, err := ParseRuleType(string(r.Type)); err != nil {
		return err
	}
	if r.AddedAt.IsZero() {
		return fmt.Errorf("rule addedAt must be set")
	}
	return nil
}

// Key returns the identity key of the rule within its tenant.
func (r DomainRule) Key() string {
	return r.Domain + "|" + string(r.Type)
}

// NormalizeDomain reduces user input such as "https://WWW.Example.com:8443/x"
// or "*.example.com." to the bare canonical host.
func NormalizeDomain(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "*.")
	s = strings.TrimPrefix(s, ".")
	return strings.TrimRight(s, ".")
}

// IsValidDomain checks that name looks like a multi-label host name:
//   - total length at most 253
//   - at least two labels, each 1..63 characters
//   - labels made of letters, digits and hyphens, not starting or ending with a hyphen
func IsValidDomain(name string) bool {
	if name == "" || len(name) > 253 {
		return false
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			if r != '-' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				return false
			}
		}
	}
	return true
}
