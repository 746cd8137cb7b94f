package parsers

import (
	"bufio"
	"io"
	"strings"
	"time"

	logpkg "github.com/haukened/linkguard/internal/links/common/log"
	"github.com/haukened/linkguard/internal/links/common/utils"
	"github.com/haukened/linkguard/internal/links/domain"
)

// ParseHostsFile parses /etc/hosts-style files (as published by common
// blocklist feeds) and returns rules of ruleType for every valid hostname.
//
// Rules:
// - Ignore the IP field; extract one or more hostnames following it
// - Skip comments (whole-line or inline after '#') and blank lines
// - Skip wildcard tokens and names starting with '.'
// - De-duplicate by canonical name, preserving first-seen order
func ParseHostsFile(r io.Reader, tenantID string, ruleType domain.RuleType, source string, logger logpkg.Logger, now time.Time) ([]domain.DomainRule, error) {
	scanner := bufio.NewScanner(r)

	seen := make(map[string]struct{})
	out := make([]domain.DomainRule, 0, 256)
	base := domain.DomainRule{TenantID: tenantID, MatchSubdomains: true, Active: true, AddedAt: now}

	logger.Debug(map[string]any{"source": source, "rule_type": ruleType}, "parse_hosts_start")

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := stripLineBOM(scanner.Text())

		if isEmpty, isComment := classifyLine(line); isEmpty || isComment {
			continue
		}

		fields := strings.Fields(stripInlineComment(line))
		if len(fields) < 2 {
			logger.Debug(map[string]any{"line": lineNum}, "hosts_no_hostnames")
			continue
		}

		for _, raw := range fields[1:] {
			if strings.HasPrefix(raw, ".") || strings.Contains(raw, "*") {
				logger.Debug(map[string]any{"line": lineNum, "raw": raw}, "hosts_skip_invalid_token")
				continue
			}
			name := utils.CanonicalHost(raw)
			if !domain.IsValidDomain(name) {
				logger.Debug(map[string]any{"line": lineNum, "name": name}, "hosts_skip_invalid_domain")
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, newListRule(name, ruleType, source, base))
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_hosts_scan_error")
		return nil, err
	}

	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_hosts_done")
	return out, nil
}
