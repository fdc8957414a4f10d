package pathsafe

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWithinRoot(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name   string
		rel    string
		want   string
		wantOK bool
	}{
		{name: "empty resolves to root", rel: "", want: root, wantOK: true},
		{name: "blank resolves to root", rel: "   ", want: root, wantOK: true},
		{name: "simple file", rel: "a/b.ts", want: filepath.Join(root, "a", "b.ts"), wantOK: true},
		{name: "backslashes normalized", rel: `a\b.ts`, want: filepath.Join(root, "a", "b.ts"), wantOK: true},
		{name: "dot segments cleaned", rel: "./a/./b.ts", want: filepath.Join(root, "a", "b.ts"), wantOK: true},
		{name: "leading traversal", rel: "../../etc/passwd", wantOK: false},
		{name: "nested traversal", rel: "a/../../b", wantOK: false},
		{name: "inner parent segment", rel: "a/../b", wantOK: false},
		{name: "trailing parent segment", rel: "a/..", wantOK: false},
		{name: "backslash traversal", rel: `..\secret`, wantOK: false},
		{name: "null byte", rel: "a\x00b", wantOK: false},
		{name: "absolute path", rel: "/etc/passwd", wantOK: false},
		{name: "dotdot prefixed name is fine", rel: "..hidden/file", want: filepath.Join(root, "..hidden", "file"), wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveWithinRoot(root, tt.rel)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestResolveWithinRootAnyRoot(t *testing.T) {
	for _, root := range []string{"/", "/tmp", "/srv/project", t.TempDir()} {
		_, ok := ResolveWithinRoot(root, "../../etc/passwd")
		assert.False(t, ok, "root %s", root)
		_, ok = ResolveWithinRoot(root, "a/../../b")
		assert.False(t, ok, "root %s", root)
	}
}

func TestWithin(t *testing.T) {
	assert.True(t, Within("/srv/app", "/srv/app"))
	assert.True(t, Within("/srv/app", "/srv/app/x/y"))
	assert.False(t, Within("/srv/app", "/srv/app2/x"))
	assert.False(t, Within("/srv/app", "/srv"))
	assert.True(t, Within("/", "/etc"))
}

func TestResolveRoot(t *testing.T) {
	dir := t.TempDir()

	got, err := ResolveRoot(dir + "/sub/..")
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	_, err = ResolveRoot("   ")
	assert.Error(t, err)

	_, err = ResolveRoot("a\x00b")
	assert.Error(t, err)
}

func TestRel(t *testing.T) {
	root := t.TempDir()

	rel, err := Rel(root, filepath.Join(root, "a", "b.go"))
	require.NoError(t, err)
	assert.Equal(t, "a/b.go", rel)

	rel, err = Rel(root, root)
	require.NoError(t, err)
	assert.Equal(t, "", rel)
}
