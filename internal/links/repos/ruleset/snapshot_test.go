package ruleset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/linkguard/internal/links/domain"
)

var testNow = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func rule(name string, t domain.RuleType) domain.DomainRule {
	return domain.DomainRule{TenantID: "acme", Domain: name, Type: t, Active: true, AddedAt: testNow}
}

// recordingFactory is a fake PrefilterFactory backed by a map; it records probes.
type recordingFactory struct {
	filters []*mapFilter
}

type mapFilter struct {
	keys   map[string]bool
	probes int
}

func (f *recordingFactory) New(capacity uint64, fpRate float64) Prefilter {
	mf := &mapFilter{keys: make(map[string]bool, capacity)}
	f.filters = append(f.filters, mf)
	return mf
}

func (m *mapFilter) Add(key []byte) { m.keys[string(key)] = true }
func (m *mapFilter) MightContain(key []byte) bool {
	m.probes++
	return m.keys[string(key)]
}

func TestCompile_Buckets(t *testing.T) {
	rules := []domain.DomainRule{
		rule("nytimes.com", domain.RuleBlocked),
		rule("rival.com", domain.RuleCompetitor),
		rule("bls.gov", domain.RuleAllowed),
		rule("census.gov", domain.RuleTrusted),
	}
	s := NewCompiler(nil, 0).Compile("acme", SourceTenant, rules, testNow)

	assert.Equal(t, []string{"nytimes.com", "rival.com"}, s.Blocked())
	assert.Equal(t, []string{"bls.gov", "census.gov"}, s.Allowed())
	assert.Equal(t, []string{"rival.com"}, s.Competitor())
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, "acme", s.TenantID())
	assert.Equal(t, SourceTenant, s.Source())
	assert.True(t, s.LoadedAt().Equal(testNow))
}

func TestCompile_SkipsInactiveAndInvalid(t *testing.T) {
	inactive := rule("old.com", domain.RuleBlocked)
	inactive.Active = false
	rules := []domain.DomainRule{
		inactive,
		rule("localhost", domain.RuleBlocked),
		rule("HTTPS://Example.COM/x", domain.RuleBlocked),
		rule("x.com", domain.RuleType("bogus")),
	}
	s := NewCompiler(nil, 0).Compile("acme", SourceTenant, rules, testNow)
	assert.Equal(t, []string{"example.com"}, s.Blocked())
	assert.Empty(t, s.Allowed())
}

func TestCompile_BlockedWinsOverAllowed(t *testing.T) {
	rules := []domain.DomainRule{
		rule("example.com", domain.RuleAllowed),
		rule("example.com", domain.RuleBlocked),
	}
	s := NewCompiler(nil, 0).Compile("acme", SourceTenant, rules, testNow)
	assert.Equal(t, []string{"example.com"}, s.Blocked())
	assert.Empty(t, s.Allowed(), "a domain must not carry two effective verdicts")
}

func TestSnapshot_SubdomainMatchingIsOneWay(t *testing.T) {
	s := NewCompiler(nil, 0).Compile("acme", SourceTenant, []domain.DomainRule{
		rule("example.com", domain.RuleBlocked),
		rule("sub.allowed.org", domain.RuleAllowed),
	}, testNow)

	cases := []struct {
		host    string
		blocked bool
		allowed bool
	}{
		{"example.com", true, false},
		{"sub.example.com", true, false},
		{"a.b.EXAMPLE.com.", true, false},
		{"notexample.com", false, false},
		{"example.com.evil.net", false, false},
		{"sub.allowed.org", false, true},
		{"deep.sub.allowed.org", false, true},
		{"allowed.org", false, false},
		{"", false, false},
	}
	for _, c := range cases {
		_, b := s.MatchBlocked(c.host)
		_, a := s.MatchAllowed(c.host)
		assert.Equal(t, c.blocked, b, "blocked %q", c.host)
		assert.Equal(t, c.allowed, a, "allowed %q", c.host)
	}
}

func TestSnapshot_MatchReturnsMostSpecificRule(t *testing.T) {
	s := NewCompiler(nil, 0).Compile("acme", SourceTenant, []domain.DomainRule{
		rule("example.com", domain.RuleBlocked),
		rule("news.example.com", domain.RuleCompetitor),
	}, testNow)

	got, ok := s.MatchBlocked("a.news.example.com")
	require.True(t, ok)
	assert.Equal(t, "news.example.com", got)

	got, ok = s.MatchCompetitor("a.news.example.com")
	require.True(t, ok)
	assert.Equal(t, "news.example.com", got)

	_, ok = s.MatchCompetitor("www.example.com")
	assert.False(t, ok)
}

func TestSnapshot_PrefilterConsulted(t *testing.T) {
	f := &recordingFactory{}
	s := NewCompiler(f, 0.01).Compile("acme", SourceTenant, []domain.DomainRule{
		rule("example.com", domain.RuleBlocked),
	}, testNow)
	require.Len(t, f.filters, 1, "only non-empty indexes get a prefilter")

	_, ok := s.MatchBlocked("a.b.example.com")
	assert.True(t, ok)
	_, ok = s.MatchBlocked("other.net")
	assert.False(t, ok)
	assert.Positive(t, f.filters[0].probes)
}

func TestSnapshot_ListsAreCopies(t *testing.T) {
	s := NewCompiler(nil, 0).Compile("acme", SourceTenant, []domain.DomainRule{rule("example.com", domain.RuleBlocked)}, testNow)
	b := s.Blocked()
	b[0] = "mutated.com"
	assert.Equal(t, []string{"example.com"}, s.Blocked())
}

func TestSnapshot_ForTenantSharesIndexes(t *testing.T) {
	d := NewCompiler(nil, 0).Compile(SystemTenant, SourceDefaults, DefaultRules(testNow), testNow)
	fb := d.forTenant("acme", SourceFallback)
	assert.Equal(t, "acme", fb.TenantID())
	assert.Equal(t, SourceFallback, fb.Source())
	assert.Equal(t, SystemTenant, d.TenantID(), "source snapshot must be unchanged")
	assert.Equal(t, d.Blocked(), fb.Blocked())
}

func TestDefaultRules(t *testing.T) {
	d := NewCompiler(nil, 0).Compile(SystemTenant, SourceDefaults, DefaultRules(testNow), testNow)

	_, ok := d.MatchBlocked("nytimes.com")
	assert.True(t, ok)
	_, ok = d.MatchAllowed("bls.gov")
	assert.True(t, ok)
	_, ok = d.MatchAllowed("random-blog.example")
	assert.False(t, ok)
	_, ok = d.MatchBlocked("random-blog.example")
	assert.False(t, ok)
	assert.Empty(t, d.Competitor())
	for _, r := range DefaultRules(testNow) {
		assert.True(t, domain.IsValidDomain(r.Domain), r.Domain)
	}
}
