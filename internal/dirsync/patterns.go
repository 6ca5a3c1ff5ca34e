package dirsync

import (
	"fmt"
	"path/filepath"
	"strings"
)

// shouldInclude reports whether a slash-separated relative path passes the
// include/exclude filters. Excludes take precedence; when include patterns
// are present the path must match at least one of them.
func shouldInclude(relPath string, include, exclude []string) bool {
	relPath = filepath.ToSlash(relPath)

	for _, pattern := range exclude {
		if matchPattern(relPath, pattern) {
			return false
		}
	}

	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if matchPattern(relPath, pattern) {
			return true
		}
	}
	return false
}

// matchPattern checks a path against a single glob pattern. Patterns ending
// in "/" match everything under that directory, and "**" matches across
// path separators.
func matchPattern(path, pattern string) bool {
	if strings.HasSuffix(pattern, "/") {
		dir := strings.TrimSuffix(pattern, "/")
		return path == dir || strings.HasPrefix(path, dir+"/")
	}

	if strings.Contains(pattern, "**") {
		return matchRecursive(path, pattern)
	}

	ok, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	return ok
}

// matchRecursive handles a single "**" wildcard by splitting the pattern
// into a literal prefix and a glob suffix. The "**" swallows any number of
// path segments, including zero, so "**/*.txt" matches both "b.txt" and
// "a/b.txt".
func matchRecursive(path, pattern string) bool {
	parts := strings.SplitN(pattern, "**", 2)
	prefix, suffix := parts[0], parts[1]

	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if suffix == "" {
		return true
	}

	// A suffix glued to the "**" (as in "**.log") matches any tail of the
	// final segments; one separated by "/" starts at a segment boundary.
	if strings.HasPrefix(suffix, "/") {
		suffix = suffix[1:]
	} else {
		suffix = "*" + suffix
	}

	// Glob-match the suffix against the same number of trailing segments
	// of what the "**" left over.
	rest := strings.Split(strings.TrimPrefix(path, prefix), "/")
	want := strings.Count(suffix, "/") + 1
	if want > len(rest) {
		return false
	}
	tail := strings.Join(rest[len(rest)-want:], "/")

	ok, err := filepath.Match(suffix, tail)
	if err != nil {
		return false
	}
	return ok
}

// validatePatterns rejects syntactically invalid glob patterns up front so
// a bad filter fails the whole sync instead of silently matching nothing.
func validatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		probe := strings.ReplaceAll(pattern, "**", "*")
		if _, err := filepath.Match(strings.TrimSuffix(probe, "/"), "probe"); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}
	return nil
}
