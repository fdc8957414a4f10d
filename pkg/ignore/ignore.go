package ignore

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// IgnorePattern is a single compiled exclusion entry.
// Wildcard entries carry a compiled regular expression; literal entries match a whole
// path segment.
type IgnorePattern struct {
	Pattern *regexp.Regexp // Compiled expression for wildcard entries, nil for literals.
	Line    string         // Original pattern text.
}

// Wildcard reports whether the pattern was compiled from a `*` or `?` expression.
func (p *IgnorePattern) Wildcard() bool {
	return p.Pattern != nil
}

// Matcher evaluates relative paths against a list of exclusion patterns.
// A Matcher is immutable after construction and safe for concurrent use.
type Matcher struct {
	patterns []*IgnorePattern
}

// New compiles the given patterns into a Matcher. Blank entries are dropped.
func New(patterns ...string) *Matcher {
	m := &Matcher{}
	for _, line := range patterns {
		if p := parsePatternLine(line); p != nil {
			m.patterns = append(m.patterns, p)
		}
	}
	return m
}

// NewWithLogger is New with a debug log line per compiled pattern.
func NewWithLogger(logger *zap.Logger, patterns ...string) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := New(patterns...)
	for _, p := range m.patterns {
		logger.Debug("Compiled exclusion pattern",
			zap.String("pattern", p.Line),
			zap.Bool("wildcard", p.Wildcard()))
	}
	return m
}

// ParsePatterns splits a comma or newline separated list into trimmed, non-empty entries.
func ParsePatterns(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Patterns returns the original text of every compiled pattern.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.patterns))
	for _, p := range m.patterns {
		out = append(out, p.Line)
	}
	return out
}

// Empty reports whether the matcher has no patterns.
func (m *Matcher) Empty() bool {
	return m == nil || len(m.patterns) == 0
}

// Matches reports whether relPath is excluded. Wildcard patterns match the whole path;
// literal patterns match any single segment, so "dist" excludes a/dist/b.ts but not
// a/distillery/b.ts.
func (m *Matcher) Matches(relPath string) bool {
	matched, _ := m.MatchesPathWithPattern(relPath)
	return matched
}

// MatchesPathWithPattern is Matches that also returns the first pattern that matched.
func (m *Matcher) MatchesPathWithPattern(relPath string) (bool, *IgnorePattern) {
	if m.Empty() {
		return false, nil
	}
	normalizedPath := normalizePath(relPath)
	segments := strings.Split(normalizedPath, "/")

	for _, p := range m.patterns {
		if p.Wildcard() {
			if p.Pattern.MatchString(normalizedPath) {
				return true, p
			}
			continue
		}
		for _, segment := range segments {
			if segment == p.Line {
				return true, p
			}
		}
	}
	return false, nil
}

// MatchesEntry is used for single directory listings: wildcard patterns are also tried
// against the bare entry name.
func (m *Matcher) MatchesEntry(name, relPath string) bool {
	if m.Empty() {
		return false
	}
	if m.Matches(relPath) {
		return true
	}
	for _, p := range m.patterns {
		if p.Wildcard() && p.Pattern.MatchString(name) {
			return true
		}
		if !p.Wildcard() && p.Line == name {
			return true
		}
	}
	return false
}

// normalizePath converts OS-specific and backslash separators to forward slashes.
func normalizePath(path string) string {
	return strings.ReplaceAll(strings.TrimPrefix(strings.ReplaceAll(path, `\`, "/"), "./"), "//", "/")
}

// parsePatternLine compiles one pattern line. Returns nil for blank lines.
func parsePatternLine(line string) *IgnorePattern {
	trimmedLine := strings.TrimSpace(line)
	if trimmedLine == "" {
		return nil
	}
	if !strings.ContainsAny(trimmedLine, "*?") {
		return &IgnorePattern{Line: trimmedLine}
	}
	return &IgnorePattern{
		Pattern: regexp.MustCompile(anchorPattern(wildcardToRegex(trimmedLine))),
		Line:    trimmedLine,
	}
}

// wildcardToRegex quotes the pattern and converts `*` and `?` to their regex equivalents.
func wildcardToRegex(pattern string) string {
	quoted := regexp.QuoteMeta(pattern)
	quoted = strings.ReplaceAll(quoted, `\*`, ".*")
	return strings.ReplaceAll(quoted, `\?`, ".")
}

// anchorPattern anchors the expression to the whole path.
func anchorPattern(pattern string) string {
	return "^" + pattern + "$"
}
