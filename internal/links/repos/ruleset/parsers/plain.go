package parsers

import (
	"bufio"
	"io"
	"strings"
	"time"

	logpkg "github.com/haukened/linkguard/internal/links/common/log"
	"github.com/haukened/linkguard/internal/links/domain"
)

// ParsePlainList parses a newline-delimited list of domains into rules of ruleType.
//
// Behavior:
// - Supports comments starting with '#' (inline or whole-line)
// - Accepts bare domains, "*."/"." prefixed domains, and full URLs (reduced to their host)
// - Skips empty lines and entries that are not valid multi-label domains
// - De-duplicates by canonical name while preserving first-seen order
// - Each rule is attributed to the provided tenant and source and timestamped with now
func ParsePlainList(r io.Reader, tenantID string, ruleType domain.RuleType, source string, logger logpkg.Logger, now time.Time) ([]domain.DomainRule, error) {
	scanner := bufio.NewScanner(r)

	seen := make(map[string]struct{})
	out := make([]domain.DomainRule, 0, 64)
	base := domain.DomainRule{TenantID: tenantID, MatchSubdomains: true, Active: true, AddedAt: now}

	logger.Debug(map[string]any{"source": source, "rule_type": ruleType}, "parse_plain_list_start")
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := stripLineBOM(scanner.Text())

		if isEmpty, isComment := classifyLine(line); isEmpty || isComment {
			continue
		}

		raw := strings.TrimSpace(stripInlineComment(line))
		name := domain.NormalizeDomain(raw)
		if !domain.IsValidDomain(name) {
			logger.Debug(map[string]any{"line": lineNum, "raw": raw}, "skip_invalid_domain")
			continue
		}
		if _, ok := seen[name]; ok {
			logger.Debug(map[string]any{"line": lineNum, "name": name}, "skip_duplicate")
			continue
		}
		seen[name] = struct{}{}
		out = append(out, newListRule(name, ruleType, source, base))
	}

	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_plain_list_scan_error")
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_plain_list_done")
	return out, nil
}
