package authz

import (
	"regexp"
	"strings"
	"sync"
)

// globCache memoizes compiled patterns. Policies reuse a small set of
// patterns across many evaluations, so the cache stays tiny and hot.
var globCache sync.Map // pattern -> *regexp.Regexp

// matchGlob reports whether name matches an fnmatch-style pattern where
// '*' matches any run of characters (including '/') and '?' matches one.
// A pattern that fails to compile matches nothing.
func matchGlob(name, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.ContainsAny(pattern, "*?") {
		return name == pattern
	}
	if cached, ok := globCache.Load(pattern); ok {
		return cached.(*regexp.Regexp).MatchString(name)
	}
	re, err := regexp.Compile(globToRegexp(pattern))
	if err != nil {
		return false
	}
	globCache.Store(pattern, re)
	return re.MatchString(name)
}

// matchAnyGlob reports whether name matches at least one pattern.
func matchAnyGlob(name string, patterns []string) bool {
	for _, p := range patterns {
		if matchGlob(name, p) {
			return true
		}
	}
	return false
}

func globToRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}
