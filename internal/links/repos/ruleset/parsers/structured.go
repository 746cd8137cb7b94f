package parsers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"

	logpkg "github.com/haukened/linkguard/internal/links/common/log"
	"github.com/haukened/linkguard/internal/links/common/utils"
	"github.com/haukened/linkguard/internal/links/domain"
)

func isStructured(ext string) bool {
	switch ext {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	}
	return false
}

// ParseStructuredFile loads a YAML, JSON or TOML rule file. Each top-level
// key is a rule type holding a domain or a list of domains:
//
//	blocked: [nytimes.com, wsj.com]
//	allowed: bls.gov
//	competitor:
//	  - rival.com
//
// Unknown keys are an error so typos do not silently drop a list. Invalid
// domains are skipped; duplicates within one rule type are dropped.
func ParseStructuredFile(path, tenantID string, logger logpkg.Logger, now time.Time) ([]domain.DomainRule, error) {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return nil, fmt.Errorf("unsupported rule file type: %s", path)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to load rule file %s: %w", path, err)
	}

	source := filepath.Base(path)
	base := domain.DomainRule{TenantID: tenantID, MatchSubdomains: true, Active: true, AddedAt: now}
	raw := k.Raw()

	var out []domain.DomainRule
	for key := range raw {
		if _, err := domain.ParseRuleType(key); err != nil {
			return nil, fmt.Errorf("rule file %s: %w", path, err)
		}
	}
	for _, ruleType := range domain.RuleTypes() {
		seen := make(map[string]struct{})
		for _, value := range toStringValues(raw[string(ruleType)]) {
			name := utils.CanonicalHost(domain.NormalizeDomain(value))
			if !domain.IsValidDomain(name) {
				logger.Debug(map[string]any{"source": source, "name": value}, "structured_skip_invalid_domain")
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, newListRule(name, ruleType, source, base))
		}
	}
	return out, nil
}

// toStringValues converts a raw parsed value (string or list of strings) into
// non-empty trimmed strings. Other element types are skipped.
func toStringValues(val any) []string {
	switch v := val.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		return []string{s}
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
