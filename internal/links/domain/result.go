package domain

// ComplianceResult is the aggregate verdict for one content body.
// It is built fresh per evaluation and never mutated after being returned.
//
// Invalid links are counted in ExternalLinks, so
// TotalLinks == InternalLinks + ExternalLinks + AnchorLinks.
type ComplianceResult struct {
	IsCompliant   bool            `json:"is_compliant"`
	Violations    []LinkViolation `json:"violations"`
	AllowedLinks  []string        `json:"allowed_links"`
	BlockedCount  int             `json:"blocked_count"`
	WarningCount  int             `json:"warning_count"`
	TotalLinks    int             `json:"total_links"`
	InternalLinks int             `json:"internal_links"`
	ExternalLinks int             `json:"external_links"`
	AnchorLinks   int             `json:"anchor_links"`
}

// NewComplianceResult returns an empty, compliant result with non-nil slices.
func NewComplianceResult() ComplianceResult {
	return ComplianceResult{
		IsCompliant:  true,
		Violations:   []LinkViolation{},
		AllowedLinks: []string{},
	}
}
