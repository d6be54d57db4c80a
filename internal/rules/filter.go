package rules

import (
	"path"
	"strings"
)

// DefaultExcludePatterns is the vendored dependency, generated asset, lock
// file and binary set selected by the DefaultExcludeSet token. Nothing is
// excluded unless exclusion is configured.
var DefaultExcludePatterns = []string{
	// Dependencies
	"node_modules/**", "vendor/**", "venv/**", ".venv/**",
	"bower_components/**", "__pycache__/**",

	// Generated files
	"*.min.js", "*.min.css", "*.map", "*.pb.go",
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml",
	"go.sum", "poetry.lock", "Cargo.lock",

	// Binary and media
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.ico",
	"*.woff", "*.woff2", "*.ttf", "*.eot",
	"*.zip", "*.tar", "*.gz", "*.jar",
	"*.exe", "*.dll", "*.so", "*.dylib", "*.class", "*.pyc",
	"*.pdf",
}

// DefaultExcludeSet stands for DefaultExcludePatterns in a configured pattern list.
const DefaultExcludeSet = "default"

// ExpandExcludePatterns replaces every DefaultExcludeSet token in patterns
// with DefaultExcludePatterns.
func ExpandExcludePatterns(patterns []string) []string {
	var result []string
	for _, p := range patterns {
		if p == DefaultExcludeSet {
			result = append(result, DefaultExcludePatterns...)
			continue
		}
		result = append(result, p)
	}
	return result
}

// PathFilter decides which files the rule engine ignores.
type PathFilter struct {
	patterns []string
}

// NewPathFilter creates a filter using the given glob patterns. Supported
// forms are "dir/**" (the directory at any depth), "*.ext" (suffix match,
// case-insensitive) and path.Match globs tried against the full path and the
// base name.
func NewPathFilter(patterns []string) *PathFilter {
	return &PathFilter{patterns: patterns}
}

// ShouldExclude reports whether a diff path ("/pkg/mod.py" or "pkg/mod.py")
// matches any pattern.
func (f *PathFilter) ShouldExclude(p string) bool {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return false
	}
	for _, pattern := range f.patterns {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

// Patterns returns the configured patterns.
func (f *PathFilter) Patterns() []string {
	return f.patterns
}

func matchPattern(pattern, p string) bool {
	if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
		if strings.Contains(dir, "/") {
			return strings.HasPrefix(p, dir+"/") || strings.Contains(p, "/"+dir+"/")
		}
		segments := strings.Split(p, "/")
		// the last segment is the file itself
		for _, seg := range segments[:len(segments)-1] {
			if seg == dir {
				return true
			}
		}
		return false
	}

	if ext, ok := strings.CutPrefix(pattern, "*."); ok && !strings.ContainsAny(ext, "*?[") {
		return strings.HasSuffix(strings.ToLower(p), "."+strings.ToLower(ext))
	}

	if pattern == p {
		return true
	}
	if matched, _ := path.Match(pattern, p); matched {
		return true
	}
	matched, _ := path.Match(pattern, path.Base(p))
	return matched
}
