package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMembershipExcludedFolderUnderSelectedFolder(t *testing.T) {
	m := NewMembership(Payload{
		SelectedFolders: []string{"server"},
		ExcludedFolders: []string{"server/src"},
	})

	assert.False(t, m.Includes("server/src/a.ts"))
	assert.False(t, m.Includes("server/src/b.ts"))
	assert.True(t, m.Includes("server/output/c.ts"))
	assert.True(t, m.ExcludedByFolder("server/src"))
	assert.False(t, m.ExcludedByFolder("server/output"))
}

func TestMembershipNestedExcludedFolders(t *testing.T) {
	m := NewMembership(Payload{
		SelectedFolders: []string{"server"},
		ExcludedFolders: []string{"server/src", "server/src/routes"},
	})

	assert.False(t, m.Includes("server/src/a.ts"))
	assert.False(t, m.Includes("server/src/routes/b.ts"))
	assert.True(t, m.Includes("server/output/c.ts"))
}

func TestMembershipMixedSelection(t *testing.T) {
	m := NewMembership(Payload{
		SelectedFiles:   []string{"README.md"},
		SelectedFolders: []string{"server", "web"},
		ExcludedFolders: []string{"server/src", "web/node_modules"},
	})

	assert.True(t, m.Includes("server/output/a.ts"))
	assert.True(t, m.Includes("web/src/App.tsx"))
	assert.True(t, m.Includes("README.md"))

	assert.False(t, m.Includes("server/src/a.ts"))
	assert.False(t, m.Includes("web/node_modules/pkg/index.js"))
	assert.False(t, m.Includes("other/file.txt"))
}

func TestMembershipExcludedFileWins(t *testing.T) {
	m := NewMembership(Payload{
		SelectedFiles:   []string{"server/src/a.ts"},
		SelectedFolders: []string{"server"},
		ExcludedFiles:   []string{"server/src/a.ts"},
	})

	assert.False(t, m.Includes("server/src/a.ts"))
	assert.True(t, m.Includes("server/src/b.ts"))
}

func TestMembershipReincludedSubtree(t *testing.T) {
	m := NewMembership(Payload{
		SelectedFolders: []string{"", "web/node_modules/keep"},
		ExcludedFolders: []string{"web/node_modules"},
	})

	assert.True(t, m.Includes("web/src/App.tsx"))
	assert.False(t, m.Includes("web/node_modules/left/index.js"))
	assert.True(t, m.Includes("web/node_modules/keep/index.js"))

	assert.False(t, m.Prunable("web/node_modules"), "selected folder lies beneath")
	assert.True(t, m.Prunable("web/node_modules/left"))
	assert.False(t, m.Prunable("web/node_modules/keep"))
	assert.False(t, m.Prunable("web"))
}

func TestMembershipPrunableWithSelectedFile(t *testing.T) {
	m := NewMembership(Payload{
		SelectedFiles:   []string{"vendor/lib/patched.go"},
		SelectedFolders: []string{""},
		ExcludedFolders: []string{"vendor"},
	})

	assert.False(t, m.Prunable("vendor"))
	assert.True(t, m.Includes("vendor/lib/patched.go"))
	assert.False(t, m.Includes("vendor/lib/other.go"))
}

func TestMembershipTieGoesToExclusion(t *testing.T) {
	m := NewMembership(Payload{
		SelectedFolders: []string{"docs"},
		ExcludedFolders: []string{"docs"},
	})

	assert.False(t, m.Includes("docs/guide.md"))
	assert.True(t, m.Prunable("docs"))
}

func TestMembershipNormalizesPaths(t *testing.T) {
	m := NewMembership(Payload{
		SelectedFolders: []string{"./server/"},
		ExcludedFiles:   []string{`server\secret.env`},
	})

	assert.True(t, m.Includes("server/main.go"))
	assert.False(t, m.Includes("server/secret.env"))
}

func TestCovers(t *testing.T) {
	assert.True(t, covers("", "server/src/a.ts"))
	assert.True(t, covers("server", "server"))
	assert.True(t, covers("server", "server/src/a.ts"))
	assert.False(t, covers("server", "web/src/a.ts"))
	assert.False(t, covers("server", "serverless/a.ts"))
	assert.True(t, covers("server/src", "server/src"))
}
