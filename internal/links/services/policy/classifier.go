package policy

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/haukened/linkguard/internal/links/common/utils"
	"github.com/haukened/linkguard/internal/links/domain"
	"github.com/haukened/linkguard/internal/links/repos/ruleset"
)

const (
	msgEmptyURL   = "Empty or invalid URL"
	msgInvalidURL = "Invalid URL format"

	suggestEdu        = "Link to internal content or an approved primary source instead of an .edu site"
	suggestCompetitor = "Link to your own content covering this topic instead"
	suggestBlocked    = "Remove this link or replace it with an approved source"
	suggestUnapproved = "Consider replacing this link with an approved source"
)

// systemDefaults is used when Classify is handed a nil snapshot.
var systemDefaults = sync.OnceValue(func() *ruleset.Snapshot {
	epoch := time.Unix(0, 0).UTC()
	return ruleset.NewCompiler(nil, ruleset.DefaultFPRate).
		Compile(ruleset.SystemTenant, ruleset.SourceDefaults, ruleset.DefaultRules(epoch), epoch)
})

// Classify decides the category of one link and any violation it carries.
// The checks run in a fixed order and the first match wins:
//
//  1. empty URL: invalid
//  2. "#..." : anchor
//  3. "/..." : internal
//  4. unparseable URL, or a web URL without a host: invalid
//  5. host under .edu: edu_restricted error
//  6. blocked host: competitor or blocked error
//  7. allowed host: valid external
//  8. anything else: unapproved warning
//
// Non-web links with a scheme but no host (mailto:, tel:) skip the host
// checks and go straight to the unapproved warning.
func Classify(rawURL, anchorText string, rs *ruleset.Snapshot) domain.Classification {
	if rs == nil {
		rs = systemDefaults()
	}
	link := strings.TrimSpace(rawURL)

	switch {
	case link == "":
		return invalid(rawURL, anchorText, msgEmptyURL)
	case strings.HasPrefix(link, "#"):
		return domain.Classification{Category: domain.CategoryAnchor, IsValid: true}
	case strings.HasPrefix(link, "/"):
		return domain.Classification{Category: domain.CategoryInternal, IsValid: true}
	}

	u, err := url.Parse(link)
	if err != nil {
		return invalid(link, anchorText, msgInvalidURL)
	}
	host := utils.CanonicalHost(u.Hostname())
	if host == "" {
		if !nonWebScheme(u.Scheme) {
			return invalid(link, anchorText, msgInvalidURL)
		}
		return external(domain.LinkViolation{
			URL:        link,
			AnchorText: anchorText,
			Type:       domain.ViolationUnapproved,
			Severity:   domain.SeverityWarning,
			Suggestion: suggestUnapproved,
			Message:    fmt.Sprintf("Link scheme %s is not on the approved list", u.Scheme),
		})
	}

	if strings.HasSuffix(host, ".edu") {
		return external(domain.LinkViolation{
			Domain:     host,
			URL:        link,
			AnchorText: anchorText,
			Type:       domain.ViolationEduRestricted,
			Severity:   domain.SeverityError,
			Suggestion: suggestEdu,
			Message:    fmt.Sprintf("Links to educational domains are restricted: %s", host),
		})
	}

	if _, blocked := rs.MatchBlocked(host); blocked {
		v := domain.LinkViolation{
			Domain:     host,
			URL:        link,
			AnchorText: anchorText,
			Severity:   domain.SeverityError,
		}
		if _, competitor := rs.MatchCompetitor(host); competitor {
			v.Type = domain.ViolationCompetitor
			v.Suggestion = suggestCompetitor
			v.Message = fmt.Sprintf("Links to competitor domain %s are not allowed", host)
		} else {
			v.Type = domain.ViolationBlocked
			v.Suggestion = suggestBlocked
			v.Message = fmt.Sprintf("Domain %s is blocked", host)
		}
		return external(v)
	}

	if _, allowed := rs.MatchAllowed(host); allowed {
		return domain.Classification{Category: domain.CategoryExternal, IsValid: true}
	}

	return external(domain.LinkViolation{
		Domain:     host,
		URL:        link,
		AnchorText: anchorText,
		Type:       domain.ViolationUnapproved,
		Severity:   domain.SeverityWarning,
		Suggestion: suggestUnapproved,
		Message:    fmt.Sprintf("Domain %s is not on the approved list", host),
	})
}

// nonWebScheme reports whether scheme names a hostless link kind such as
// mailto. A missing scheme, a web scheme, or a dotted "scheme" (a bare host
// like "example.com:8080/x") does not count.
func nonWebScheme(scheme string) bool {
	switch strings.ToLower(scheme) {
	case "", "http", "https", "ftp", "ws", "wss":
		return false
	}
	return !strings.Contains(scheme, ".")
}

func invalid(link, anchorText, msg string) domain.Classification {
	return domain.Classification{
		Category: domain.CategoryInvalid,
		Violation: &domain.LinkViolation{
			URL:        link,
			AnchorText: anchorText,
			Type:       domain.ViolationBlocked,
			Severity:   domain.SeverityError,
			Message:    msg,
		},
	}
}

// external wraps v; the link stays valid unless v is publish-blocking.
func external(v domain.LinkViolation) domain.Classification {
	return domain.Classification{
		Category:  domain.CategoryExternal,
		IsValid:   !v.Blocking(),
		Violation: &v,
	}
}
