package utils

import "strings"

// CanonicalHost returns a host name in canonical form:
// - Lowercased
// - Trimmed of surrounding whitespace
// - No trailing dots
func CanonicalHost(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	return name
}

// ParentDomains returns host followed by each of its parent domains, most
// specific first, e.g. "a.b.com" -> ["a.b.com", "b.com", "com"].
func ParentDomains(host string) []string {
	if host == "" {
		return nil
	}
	out := make([]string, 0, strings.Count(host, ".")+1)
	for {
		out = append(out, host)
		i := strings.IndexByte(host, '.')
		if i < 0 || i == len(host)-1 {
			return out
		}
		host = host[i+1:]
	}
}
