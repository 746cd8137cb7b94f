package parsers

import (
	"strings"

	"github.com/haukened/linkguard/internal/links/domain"
)

// stripLineBOM removes a UTF-8 byte order mark from the start of a line.
func stripLineBOM(line string) string {
	return strings.TrimPrefix(line, "\uFEFF")
}

// classifyLine reports whether a raw line is empty or a whole-line comment.
func classifyLine(line string) (isEmpty, isComment bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true, false
	}
	return false, strings.HasPrefix(trimmed, "#")
}

// stripInlineComment drops everything from the first '#'.
func stripInlineComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}
	return line
}

// newListRule builds a system-scoped rule for a parsed list entry.
// The caller has already normalized and validated name.
func newListRule(name string, ruleType domain.RuleType, source string, base domain.DomainRule) domain.DomainRule {
	base.Domain = name
	base.Type = ruleType
	base.Reason = source
	return base
}
