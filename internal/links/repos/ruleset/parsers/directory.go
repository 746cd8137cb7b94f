package parsers

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	logpkg "github.com/haukened/linkguard/internal/links/common/log"
	"github.com/haukened/linkguard/internal/links/domain"
)

// LoadDirectory reads default rule lists from dir. List files are named
// after the rule type they hold: "<type>.txt" is a plain list, "<type>.hosts"
// a hosts file, e.g. blocked.txt, allowed.txt, competitor.hosts. Any YAML,
// JSON or TOML file is read as a structured rule file (see ParseStructuredFile).
// Other files are ignored. Files are read in name order so the result is
// deterministic.
func LoadDirectory(dir, tenantID string, logger logpkg.Logger, now time.Time) ([]domain.DomainRule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read defaults directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []domain.DomainRule
	for _, name := range names {
		path := filepath.Join(dir, name)
		ext := strings.ToLower(filepath.Ext(name))

		if isStructured(ext) {
			rules, err := ParseStructuredFile(path, tenantID, logger, now)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", name, err)
			}
			logger.Info(map[string]any{"file": name, "count": len(rules)}, "default rules loaded")
			out = append(out, rules...)
			continue
		}

		ruleType, err := domain.ParseRuleType(strings.TrimSuffix(name, filepath.Ext(name)))
		if err != nil {
			logger.Debug(map[string]any{"file": name}, "defaults_skip_unknown_file")
			continue
		}

		var parse func(f *os.File) ([]domain.DomainRule, error)
		switch ext {
		case ".txt":
			parse = func(f *os.File) ([]domain.DomainRule, error) {
				return ParsePlainList(f, tenantID, ruleType, name, logger, now)
			}
		case ".hosts":
			parse = func(f *os.File) ([]domain.DomainRule, error) {
				return ParseHostsFile(f, tenantID, ruleType, name, logger, now)
			}
		default:
			logger.Debug(map[string]any{"file": name}, "defaults_skip_unknown_extension")
			continue
		}

		rules, err := parseFile(path, parse)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		logger.Info(map[string]any{"file": name, "rule_type": ruleType, "count": len(rules)}, "default rules loaded")
		out = append(out, rules...)
	}
	return out, nil
}

func parseFile(path string, parse func(f *os.File) ([]domain.DomainRule, error)) ([]domain.DomainRule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}
