package ignore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcherMatches(t *testing.T) {
	m := New("dist", "*.log")

	tests := []struct {
		path string
		want bool
	}{
		{"a/dist/x.ts", true},
		{"dist", true},
		{"a/b.log", true},
		{"b.log", true},
		{"a/distillery/x.ts", false},
		{"a/b.logger", false},
		{"src/main.go", false},
		{`a\dist\x.ts`, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Matches(tt.path))
		})
	}
}

func TestLiteralMatchesWholeSegmentsOnly(t *testing.T) {
	assert.False(t, New("src/gen").Matches("src/gen/x.go"))
	assert.False(t, New("src/gen").Matches("src/gen"))
	assert.True(t, New("gen").Matches("src/gen/x.go"))
	assert.False(t, New("gen").Matches("src/generated/x.go"))
}

func TestMatcherQuestionMark(t *testing.T) {
	m := New("file?.txt")
	assert.True(t, m.Matches("file1.txt"))
	assert.False(t, m.Matches("file10.txt"))
	assert.False(t, m.Matches("dir/file1.txt"), "wildcard patterns are matched against the whole path")

	m = New("*/file?.txt")
	assert.True(t, m.Matches("dir/file1.txt"))
}

func TestMatcherRegexMetaIsLiteral(t *testing.T) {
	m := New("a+b*.md")
	assert.True(t, m.Matches("a+b-notes.md"))
	assert.False(t, m.Matches("aab-notes.md"))
}

func TestMatchesPathWithPattern(t *testing.T) {
	m := New("node_modules", "*.min.js")

	ok, p := m.MatchesPathWithPattern("web/node_modules/react/index.js")
	require.True(t, ok)
	assert.Equal(t, "node_modules", p.Line)
	assert.False(t, p.Wildcard())

	ok, p = m.MatchesPathWithPattern("web/app.min.js")
	require.True(t, ok)
	assert.True(t, p.Wildcard())

	ok, p = m.MatchesPathWithPattern("web/app.js")
	assert.False(t, ok)
	assert.Nil(t, p)
}

func TestMatchesEntry(t *testing.T) {
	m := New("*.snap", "coverage")
	assert.True(t, m.MatchesEntry("a.snap", "tests/a.snap"))
	assert.True(t, m.MatchesEntry("coverage", "coverage"))
	assert.False(t, m.MatchesEntry("a.go", "src/a.go"))
}

func TestParsePatterns(t *testing.T) {
	got := ParsePatterns(" dist, *.log ,\n\nnode_modules\r\n,  ,")
	assert.Equal(t, []string{"dist", "*.log", "node_modules"}, got)
	assert.Empty(t, ParsePatterns("  , \n "))
}

func TestEmptyMatcher(t *testing.T) {
	var nilMatcher *Matcher
	assert.False(t, nilMatcher.Matches("anything"))
	assert.True(t, New().Empty())
	assert.True(t, New("  ", "").Empty())
	assert.Equal(t, []string{"dist"}, New(" dist ").Patterns())
}
