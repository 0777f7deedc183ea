package scan

import (
	"path"
	"strings"
)

// ShouldExclude reports whether rel, a slash-separated path relative to the
// run root, is excluded by any of the patterns. Patterns come in three forms:
//
//	*.log       glob against the base name
//	.git        any path component equal to the pattern
//	build/out   anchored at the run root; excludes that path and everything below it
//
// Anchored patterns may use globs per component ("logs/*.gz"). A leading or
// trailing slash on a pattern is ignored.
func ShouldExclude(rel string, patterns []string) bool {
	rel = strings.Trim(rel, "/")
	if rel == "" || rel == "." {
		return false
	}
	for _, p := range patterns {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		switch {
		case strings.Contains(p, "/"):
			if anchoredMatch(rel, p) {
				return true
			}
		case strings.ContainsAny(p, "*?["):
			if ok, _ := path.Match(p, path.Base(rel)); ok {
				return true
			}
		default:
			for _, seg := range strings.Split(rel, "/") {
				if seg == p {
					return true
				}
			}
		}
	}
	return false
}

// anchoredMatch matches pattern against rel and each of its ancestors.
func anchoredMatch(rel, pattern string) bool {
	for prefix := rel; prefix != "."; prefix = path.Dir(prefix) {
		if ok, _ := path.Match(pattern, prefix); ok {
			return true
		}
	}
	return false
}
