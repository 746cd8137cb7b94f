package domain

// ExtractedLink is one anchor occurrence found in a content body.
type ExtractedLink struct {
	URL        string `json:"url"`
	AnchorText string `json:"anchor_text"`
}

// Category is the structural class of a link.
type Category string

const (
	CategoryInternal Category = "internal"
	CategoryAnchor   Category = "anchor"
	CategoryExternal Category = "external"
	CategoryInvalid  Category = "invalid"
)

// Severity separates publish-blocking findings from advisory ones.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ViolationType names the policy that a link violated.
type ViolationType string

const (
	ViolationBlocked       ViolationType = "blocked"
	ViolationCompetitor    ViolationType = "competitor"
	ViolationEduRestricted ViolationType = "edu_restricted"
	ViolationUnapproved    ViolationType = "unapproved"
)

// LinkViolation is a single finding attached to one classified link.
type LinkViolation struct {
	Domain     string        `json:"domain"`
	URL        string        `json:"url"`
	AnchorText string        `json:"anchor_text"`
	Type       ViolationType `json:"rule_type"`
	Severity   Severity      `json:"severity"`
	Suggestion string        `json:"suggestion,omitempty"`
	Message    string        `json:"message"`
}

// Blocking reports whether the violation prevents publishing.
func (v LinkViolation) Blocking() bool { return v.Severity == SeverityError }

// Classification is the outcome of classifying one link against a rule set.
// IsValid is false only when an error-severity violation is attached.
type Classification struct {
	Category  Category
	IsValid   bool
	Violation *LinkViolation
}
