package http

import "strings"

// AnonymousMatcher tests whether a request path (already stripped of the
// server's context path, §4.2) matches one of the configured anonymous-path
// globs, skipping IP filtering and rule-engine inspection for it.
//
// Patterns support a single trailing "/**" wildcard (matching any suffix
// under the prefix, like the teacher's longest-prefix ReverseProxy.Match)
// plus a single trailing "*" (matching within one path segment); a pattern
// with neither suffix matches exactly.
type AnonymousMatcher struct {
	contextPath string
	patterns    []string
}

// NewAnonymousMatcher builds a matcher for contextPath (may be empty) and
// the given glob patterns.
func NewAnonymousMatcher(contextPath string, patterns []string) *AnonymousMatcher {
	return &AnonymousMatcher{contextPath: strings.TrimSuffix(contextPath, "/"), patterns: patterns}
}

// Match reports whether path is anonymous, stripping the context path first.
// When a context path is configured, a path outside it never matches.
func (m *AnonymousMatcher) Match(path string) bool {
	path, ok := m.stripContextPath(path)
	if !ok {
		return false
	}
	for _, p := range m.patterns {
		if matchGlob(p, path) {
			return true
		}
	}
	return false
}

func (m *AnonymousMatcher) stripContextPath(path string) (string, bool) {
	if m.contextPath == "" {
		return path, true
	}
	if rest, ok := strings.CutPrefix(path, m.contextPath); ok {
		if rest == "" {
			return "/", true
		}
		if strings.HasPrefix(rest, "/") {
			return rest, true
		}
	}
	return path, false
}

// matchGlob implements the small pattern dialect above: "**" as a trailing
// wildcard matches any suffix under the prefix; "*" as a trailing wildcard
// matches within a single path segment; no wildcard requires an exact match.
func matchGlob(pattern, path string) bool {
	switch {
	case strings.HasSuffix(pattern, "/**"):
		prefix := strings.TrimSuffix(pattern, "/**")
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	case strings.HasSuffix(pattern, "*"):
		prefix := strings.TrimSuffix(pattern, "*")
		if !strings.HasPrefix(path, prefix) {
			return false
		}
		rest := path[len(prefix):]
		return !strings.Contains(rest, "/")
	default:
		return path == pattern
	}
}
