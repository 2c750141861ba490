package fs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// IgnoreFileName is the per-tree ignore file read from the upload root.
const IgnoreFileName = ".lfuignore"

// DefaultIgnorePatterns are always applied regardless of config or .lfuignore.
var DefaultIgnorePatterns = []string{".git/", ".cache/lfu/"}

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	segments []string // pattern split on '/'
	anchored bool     // true = match from the root; false = match at any depth
	dirOnly  bool     // pattern ended in '/'
	negate   bool     // pattern started with '!'
}

// IgnoreMatcher checks slash-separated relative paths against gitignore-style
// patterns:
//
//   - a pattern without '/' matches a file or directory name at any depth
//   - a pattern containing '/' is matched from the root
//   - a trailing '/' only matches directories (and everything below them)
//   - '**' matches any number of path segments
//   - a leading '!' re-includes paths excluded by an earlier pattern
//
// A path is ignored when it, or any directory above it, matches.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		var p ignorePattern
		if strings.HasPrefix(raw, "!") {
			p.negate = true
			raw = raw[1:]
		}
		if strings.HasSuffix(raw, "/") {
			p.dirOnly = true
			raw = strings.TrimRight(raw, "/")
		}
		if strings.Contains(raw, "/") {
			p.anchored = true
			raw = strings.TrimPrefix(raw, "/")
		}
		if raw == "" {
			continue
		}
		p.segments = strings.Split(raw, "/")
		patterns = append(patterns, p)
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Append returns a matcher applying m's patterns followed by rawPatterns.
func (m *IgnoreMatcher) Append(rawPatterns []string) *IgnoreMatcher {
	extra := NewIgnoreMatcher(rawPatterns)
	combined := make([]ignorePattern, 0, len(m.patterns)+len(extra.patterns))
	combined = append(combined, m.patterns...)
	combined = append(combined, extra.patterns...)
	return &IgnoreMatcher{patterns: combined}
}

// Match reports whether the slash-separated relative path should be ignored.
// isDir tells whether the path itself is a directory.
func (m *IgnoreMatcher) Match(relativePath string, isDir bool) bool {
	if len(m.patterns) == 0 {
		return false
	}
	segments := strings.Split(strings.Trim(relativePath, "/"), "/")

	// Directories above the path are checked first: once a parent is
	// excluded nothing below it can be re-included.
	for i := 1; i < len(segments); i++ {
		if m.matchSegments(segments[:i], true) {
			return true
		}
	}
	return m.matchSegments(segments, isDir)
}

func (m *IgnoreMatcher) matchSegments(segments []string, isDir bool) bool {
	ignored := false
	for _, p := range m.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if p.matches(segments) {
			ignored = !p.negate
		}
	}
	return ignored
}

func (p ignorePattern) matches(segments []string) bool {
	if p.anchored {
		return matchGlob(p.segments, segments)
	}
	// Unanchored patterns are a single name matched against the last segment.
	return matchGlob(p.segments, segments[len(segments)-1:])
}

// matchGlob matches path segments against pattern segments, where a "**"
// pattern segment matches zero or more path segments.
func matchGlob(pattern, segments []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			for i := 0; i <= len(segments); i++ {
				if matchGlob(rest, segments[i:]) {
					return true
				}
			}
			return false
		}
		if len(segments) == 0 {
			return false
		}
		ok, err := path.Match(pattern[0], segments[0])
		if err != nil || !ok {
			// A malformed pattern never matches.
			return false
		}
		pattern, segments = pattern[1:], segments[1:]
	}
	return len(segments) == 0
}

// ParsePatterns reads ignore patterns, one per line, from r.
func ParsePatterns(r io.Reader) ([]string, error) {
	var patterns []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore patterns: %w", err)
	}
	return patterns, nil
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()
	return ParsePatterns(f)
}
