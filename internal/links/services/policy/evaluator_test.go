package policy

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/haukened/linkguard/internal/links/domain"
	"github.com/haukened/linkguard/internal/links/repos/ruleset"
)

type stubLoader struct {
	mu    sync.Mutex
	snap  *ruleset.Snapshot
	calls []string
}

func (s *stubLoader) Load(_ context.Context, tenantID string) *ruleset.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, tenantID)
	if s.snap == nil {
		return systemDefaults()
	}
	return s.snap
}

type MockCounter struct {
	mock.Mock
}

func (m *MockCounter) RecordBlocked(ctx context.Context, tenantID, domain string) error {
	args := m.Called(ctx, tenantID, domain)
	return args.Error(0)
}

func newTestEvaluator(t *testing.T, loader RuleSetLoader, counter BlockCounter) *Evaluator {
	t.Helper()
	opts := EvaluatorOptions{Rules: loader}
	if counter != nil {
		opts.Counter = counter
	}
	e, err := NewEvaluator(opts)
	require.NoError(t, err)
	return e
}

func TestNewEvaluator_RequiresLoader(t *testing.T) {
	_, err := NewEvaluator(EvaluatorOptions{})
	assert.ErrorIs(t, err, ErrNilLoader)
}

func TestEvaluate_Scenarios(t *testing.T) {
	e := newTestEvaluator(t, &stubLoader{}, nil)
	ctx := context.Background()

	t.Run("blocked default", func(t *testing.T) {
		res, err := e.Evaluate(ctx, "acme", `<a href="https://nytimes.com/x">read</a>`)
		require.NoError(t, err)
		require.Len(t, res.Violations, 1)
		assert.Equal(t, domain.ViolationBlocked, res.Violations[0].Type)
		assert.Equal(t, domain.SeverityError, res.Violations[0].Severity)
		assert.Equal(t, "read", res.Violations[0].AnchorText)
		assert.False(t, res.IsCompliant)
		assert.Equal(t, 1, res.BlockedCount)
		assert.Empty(t, res.AllowedLinks)
	})

	t.Run("allowed default", func(t *testing.T) {
		res, err := e.Evaluate(ctx, "acme", `<a href="https://bls.gov/data">BLS</a>`)
		require.NoError(t, err)
		assert.Empty(t, res.Violations)
		assert.Equal(t, 1, res.ExternalLinks)
		assert.True(t, res.IsCompliant)
		assert.Equal(t, []string{"https://bls.gov/data"}, res.AllowedLinks)
	})

	t.Run("edu", func(t *testing.T) {
		res, err := e.Evaluate(ctx, "acme", `<a href="https://school.edu/page">info</a>`)
		require.NoError(t, err)
		require.Len(t, res.Violations, 1)
		assert.Equal(t, domain.ViolationEduRestricted, res.Violations[0].Type)
		assert.False(t, res.IsCompliant)
	})

	t.Run("internal", func(t *testing.T) {
		res, err := e.Evaluate(ctx, "acme", `<a href="/about">About</a>`)
		require.NoError(t, err)
		assert.Equal(t, 1, res.InternalLinks)
		assert.Empty(t, res.Violations)
		assert.Equal(t, []string{"/about"}, res.AllowedLinks)
	})

	t.Run("unapproved is a warning", func(t *testing.T) {
		res, err := e.Evaluate(ctx, "acme", `<a href="https://random-blog.example/p">blog</a>`)
		require.NoError(t, err)
		require.Len(t, res.Violations, 1)
		assert.Equal(t, domain.ViolationUnapproved, res.Violations[0].Type)
		assert.Equal(t, domain.SeverityWarning, res.Violations[0].Severity)
		assert.True(t, res.IsCompliant)
		assert.Equal(t, 0, res.BlockedCount)
		assert.Equal(t, 1, res.WarningCount)
		assert.Equal(t, []string{"https://random-blog.example/p"}, res.AllowedLinks)
	})
}

func TestEvaluate_EduEvenWhenTenantAllowsIt(t *testing.T) {
	loader := &stubLoader{snap: tenantSnapshot(domain.DomainRule{Domain: "school.edu", Type: domain.RuleAllowed})}
	e := newTestEvaluator(t, loader, nil)

	res, err := e.Evaluate(context.Background(), "acme", `<a href="https://school.edu/page">info</a>`)
	require.NoError(t, err)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, domain.ViolationEduRestricted, res.Violations[0].Type)
	assert.Equal(t, []string{"acme"}, loader.calls)
}

func TestEvaluate_RejectsBadInput(t *testing.T) {
	loader := &stubLoader{}
	e := newTestEvaluator(t, loader, nil)

	_, err := e.Evaluate(context.Background(), "  ", "<a href='/x'>x</a>")
	assert.ErrorIs(t, err, domain.ErrInvalidTenant)

	_, err = e.Evaluate(context.Background(), "acme", "bad \xff bytes")
	assert.ErrorIs(t, err, domain.ErrInvalidContent)

	assert.Empty(t, loader.calls, "rules must not be loaded for rejected input")
}

func TestEvaluateSnapshot_Aggregation(t *testing.T) {
	content := strings.Join([]string{
		`<a href="/home">Home</a>`,
		`<a href="#top">Top</a>`,
		`<a href="https://nytimes.com/a">NYT</a>`,
		`<a href="">empty</a>`,
		`<a href="https://bls.gov/x">BLS</a>`,
		`<a href="https://random.example">random</a>`,
		`<a href="/home">Home again</a>`,
		`<a href="https://bls.gov/x">BLS again</a>`,
		`[wiki](https://en.wikipedia.org/wiki/Go)`,
	}, "\n")

	res := EvaluateSnapshot(nil, content)

	assert.Equal(t, 9, res.TotalLinks)
	assert.Equal(t, 2, res.InternalLinks)
	assert.Equal(t, 1, res.AnchorLinks)
	assert.Equal(t, 6, res.ExternalLinks)
	assert.Equal(t, res.TotalLinks, res.InternalLinks+res.ExternalLinks+res.AnchorLinks)

	assert.Equal(t, 3, res.BlockedCount)
	assert.Equal(t, 1, res.WarningCount)
	assert.False(t, res.IsCompliant)

	require.Len(t, res.Violations, 4)
	assert.Equal(t, "https://nytimes.com/a", res.Violations[0].URL)
	assert.Equal(t, msgEmptyURL, res.Violations[1].Message)
	assert.Equal(t, domain.ViolationUnapproved, res.Violations[2].Type)
	assert.Equal(t, "en.wikipedia.org", res.Violations[3].Domain)

	assert.Equal(t, []string{"/home", "https://bls.gov/x", "https://random.example"}, res.AllowedLinks)
}

func TestEvaluateSnapshot_MarkdownLinkFormsAreChecked(t *testing.T) {
	tests := []struct {
		name    string
		content string
		domain  string
	}{
		{"balanced parentheses", "See [Go](https://en.wikipedia.org/wiki/Go_(programming_language)) here.", "en.wikipedia.org"},
		{"nested brackets", "[the [1] ref](https://nytimes.com/x)", "nytimes.com"},
		{"autolink", "<https://nytimes.com/x>", "nytimes.com"},
		{"reference link", "See [the story][nyt].\n\n[nyt]: https://www.nytimes.com/story", "www.nytimes.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := EvaluateSnapshot(nil, tt.content)
			assert.False(t, res.IsCompliant)
			assert.Equal(t, 1, res.TotalLinks)
			assert.Equal(t, 1, res.BlockedCount)
			require.Len(t, res.Violations, 1)
			assert.Equal(t, domain.ViolationBlocked, res.Violations[0].Type)
			assert.Equal(t, tt.domain, res.Violations[0].Domain)
		})
	}
}

func TestEvaluateSnapshot_HostlessSchemesWarn(t *testing.T) {
	res := EvaluateSnapshot(nil, `<a href="mailto:ed@example.com">Ed</a> <a href="tel:+1-555-0100">call</a>`)
	assert.True(t, res.IsCompliant)
	assert.Equal(t, 0, res.BlockedCount)
	assert.Equal(t, 2, res.WarningCount)
	assert.Equal(t, 2, res.ExternalLinks)
	for _, v := range res.Violations {
		assert.Equal(t, domain.ViolationUnapproved, v.Type)
		assert.Equal(t, domain.SeverityWarning, v.Severity)
	}
}

func TestEvaluateSnapshot_NoLinks(t *testing.T) {
	for _, content := range []string{"", "plain text", "<p>no <em>anchors</em></p>"} {
		res := EvaluateSnapshot(nil, content)
		assert.Equal(t, 0, res.TotalLinks)
		assert.True(t, res.IsCompliant)
		assert.NotNil(t, res.Violations)
		assert.NotNil(t, res.AllowedLinks)
	}
}

func TestEvaluateSnapshot_Idempotent(t *testing.T) {
	rs := tenantSnapshot(
		domain.DomainRule{Domain: "rival.com", Type: domain.RuleCompetitor},
		domain.DomainRule{Domain: "example.org", Type: domain.RuleAllowed},
	)
	content := `<a href="https://rival.com">r</a> <a href="https://example.org">e</a> <a href="https://other.net">o</a> <a href="#x">x</a>`

	first := EvaluateSnapshot(rs, content)
	second := EvaluateSnapshot(rs, content)
	assert.Equal(t, first, second)
}

func TestEvaluateSnapshot_CompliantIffNoBlocking(t *testing.T) {
	for _, content := range []string{
		`<a href="https://random.example">w</a>`,
		`<a href="https://reddit.com">r</a>`,
		`<a href="/a">a</a><a href="https://school.edu">s</a>`,
		`<a href="https://usa.gov">u</a>`,
	} {
		res := EvaluateSnapshot(nil, content)
		assert.Equal(t, res.BlockedCount == 0, res.IsCompliant, content)
	}
}

func TestEvaluate_RecordsBlockedApexDomains(t *testing.T) {
	counter := new(MockCounter)
	counter.On("RecordBlocked", mock.Anything, "acme", "nytimes.com").Return(nil).Twice()
	counter.On("RecordBlocked", mock.Anything, "acme", "school.edu").Return(nil).Once()
	e := newTestEvaluator(t, &stubLoader{}, counter)

	content := `<a href="https://www.nytimes.com/a">a</a>` +
		`<a href="https://nytimes.com/b">b</a>` +
		`<a href="https://school.edu">c</a>` +
		`<a href="https://random.example">d</a>` +
		`<a href="">e</a>`
	res, err := e.Evaluate(context.Background(), "acme", content)
	require.NoError(t, err)
	e.Wait()

	assert.Equal(t, 4, res.BlockedCount)
	counter.AssertExpectations(t)
	counter.AssertNumberOfCalls(t, "RecordBlocked", 3)
}

func TestEvaluate_CounterFailureIsSwallowed(t *testing.T) {
	counter := new(MockCounter)
	counter.On("RecordBlocked", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))
	e := newTestEvaluator(t, &stubLoader{}, counter)

	res, err := e.Evaluate(context.Background(), "acme", `<a href="https://reddit.com/r/golang">r</a>`)
	require.NoError(t, err)
	e.Wait()
	assert.False(t, res.IsCompliant)
	assert.Len(t, res.Violations, 1)
	counter.AssertNumberOfCalls(t, "RecordBlocked", 1)
}

func TestEvaluate_WarningsAreNotCounted(t *testing.T) {
	counter := new(MockCounter)
	e := newTestEvaluator(t, &stubLoader{}, counter)

	_, err := e.Evaluate(context.Background(), "acme", `<a href="https://random.example">r</a>`)
	require.NoError(t, err)
	e.Wait()
	counter.AssertNotCalled(t, "RecordBlocked", mock.Anything, mock.Anything, mock.Anything)
}
