package policy

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/haukened/linkguard/internal/links/common/log"
	"github.com/haukened/linkguard/internal/links/common/utils"
	"github.com/haukened/linkguard/internal/links/domain"
	"github.com/haukened/linkguard/internal/links/repos/ruleset"
)

// DefaultAnalyticsTimeout bounds one batch of block-counter increments.
const DefaultAnalyticsTimeout = 500 * time.Millisecond

var ErrNilLoader = errors.New("evaluator requires a rule set loader")

// EvaluatorOptions configures an Evaluator.
type EvaluatorOptions struct {
	Rules            RuleSetLoader
	Counter          BlockCounter // optional
	Logger           log.Logger
	AnalyticsTimeout time.Duration
}

// Evaluator checks content bodies against their tenant's link policy.
// It is safe for concurrent use.
type Evaluator struct {
	rules            RuleSetLoader
	counter          BlockCounter
	logger           log.Logger
	analyticsTimeout time.Duration

	pending sync.WaitGroup
}

func NewEvaluator(opts EvaluatorOptions) (*Evaluator, error) {
	if opts.Rules == nil {
		return nil, ErrNilLoader
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.AnalyticsTimeout <= 0 {
		opts.AnalyticsTimeout = DefaultAnalyticsTimeout
	}
	return &Evaluator{
		rules:            opts.Rules,
		counter:          opts.Counter,
		logger:           opts.Logger.With(map[string]any{"component": "evaluator"}),
		analyticsTimeout: opts.AnalyticsTimeout,
	}, nil
}

// Evaluate loads the tenant's rule snapshot and evaluates content against it.
// Rule loading problems never surface here; only an empty tenant id or
// content that is not valid UTF-8 fail the call.
func (e *Evaluator) Evaluate(ctx context.Context, tenantID, content string) (domain.ComplianceResult, error) {
	tenantID = domain.NormalizeTenant(tenantID)
	if tenantID == "" {
		return domain.ComplianceResult{}, domain.ErrInvalidTenant
	}
	if !utf8.ValidString(content) {
		return domain.ComplianceResult{}, domain.ErrInvalidContent
	}

	rs := e.rules.Load(ctx, tenantID)
	result := EvaluateSnapshot(rs, content)

	e.logger.Debug(map[string]any{
		"tenant":      tenantID,
		"rule_source": rs.Source(),
		"total_links": result.TotalLinks,
		"blocked":     result.BlockedCount,
		"warnings":    result.WarningCount,
		"compliant":   result.IsCompliant,
	}, "content evaluated")

	e.recordBlocked(tenantID, result.Violations)
	return result, nil
}

// Wait blocks until every outstanding analytics increment has finished.
func (e *Evaluator) Wait() { e.pending.Wait() }

// EvaluateSnapshot is the pure aggregation step: it extracts the links in
// content and folds their classifications into a ComplianceResult.
// The same snapshot and content always produce an identical result.
func EvaluateSnapshot(rs *ruleset.Snapshot, content string) domain.ComplianceResult {
	result := domain.NewComplianceResult()
	seen := make(map[string]struct{})
	allow := func(u string) {
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		result.AllowedLinks = append(result.AllowedLinks, u)
	}

	for _, link := range ExtractLinks(content) {
		c := Classify(link.URL, link.AnchorText, rs)
		result.TotalLinks++

		switch c.Category {
		case domain.CategoryInternal:
			result.InternalLinks++
			allow(link.URL)
		case domain.CategoryAnchor:
			result.AnchorLinks++
		case domain.CategoryExternal, domain.CategoryInvalid:
			result.ExternalLinks++
			if c.Category == domain.CategoryExternal && c.IsValid {
				allow(link.URL)
			}
		}

		if c.Violation == nil {
			continue
		}
		result.Violations = append(result.Violations, *c.Violation)
		if c.Violation.Blocking() {
			result.BlockedCount++
		} else {
			result.WarningCount++
		}
	}

	result.IsCompliant = result.BlockedCount == 0
	return result
}

// recordBlocked reports rejected apex domains to the block counter on a
// detached goroutine. Failures are logged at debug and dropped.
func (e *Evaluator) recordBlocked(tenantID string, violations []domain.LinkViolation) {
	if e.counter == nil {
		return
	}
	var domains []string
	for _, v := range violations {
		switch v.Type {
		case domain.ViolationBlocked, domain.ViolationCompetitor, domain.ViolationEduRestricted:
			if v.Domain != "" {
				domains = append(domains, utils.GetApexDomain(v.Domain))
			}
		}
	}
	if len(domains) == 0 {
		return
	}

	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.analyticsTimeout)
		defer cancel()
		for _, d := range domains {
			if err := e.counter.RecordBlocked(ctx, tenantID, d); err != nil {
				e.logger.Debug(map[string]any{"tenant": tenantID, "domain": d, "error": err}, "block counter increment failed")
			}
		}
	}()
}
