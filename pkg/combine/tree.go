// File: pkg/combine/tree.go
package combine

import (
	"path/filepath"
	"sort"
	"strings"
)

// treeNode is a directory in the in-memory tree built from relative paths.
type treeNode struct {
	dirs  map[string]*treeNode
	files map[string]bool
}

func newTreeNode() *treeNode {
	return &treeNode{dirs: make(map[string]*treeNode), files: make(map[string]bool)}
}

// RenderTree renders relPaths as an ASCII tree under the base name of displayRoot,
// wrapped in a "## Folder Structure" Markdown section. Empty input renders "".
func RenderTree(relPaths []string, displayRoot string) string {
	root := newTreeNode()
	count := 0
	for _, p := range relPaths {
		p = strings.Trim(strings.ReplaceAll(p, `\`, "/"), "/")
		if p == "" || p == "." {
			continue
		}
		parts := strings.Split(p, "/")
		node := root
		for _, dir := range parts[:len(parts)-1] {
			child, ok := node.dirs[dir]
			if !ok {
				child = newTreeNode()
				node.dirs[dir] = child
			}
			node = child
		}
		node.files[parts[len(parts)-1]] = true
		count++
	}
	if count == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Folder Structure\n\n```text\n")
	b.WriteString(displayName(displayRoot))
	b.WriteString("/\n")
	writeTree(&b, root, "")
	b.WriteString("```\n")
	return b.String()
}

// writeTree writes the children of node: directories first, then files, both sorted
// case-insensitively.
func writeTree(b *strings.Builder, node *treeNode, prefix string) {
	type entry struct {
		name string
		dir  *treeNode
	}

	dirNames := sortedKeys(node.dirs)
	fileNames := make([]string, 0, len(node.files))
	for name := range node.files {
		if _, isDir := node.dirs[name]; !isDir {
			fileNames = append(fileNames, name)
		}
	}
	sortFold(fileNames)

	entries := make([]entry, 0, len(dirNames)+len(fileNames))
	for _, name := range dirNames {
		entries = append(entries, entry{name: name, dir: node.dirs[name]})
	}
	for _, name := range fileNames {
		entries = append(entries, entry{name: name})
	}

	for i, e := range entries {
		connector := "├── "
		extension := "│   "
		if i == len(entries)-1 {
			connector = "└── "
			extension = "    "
		}

		if e.dir != nil {
			b.WriteString(prefix + connector + e.name + "/\n")
			writeTree(b, e.dir, prefix+extension)
			continue
		}
		b.WriteString(prefix + connector + e.name + "\n")
	}
}

func sortedKeys(m map[string]*treeNode) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortFold(keys)
	return keys
}

func sortFold(names []string) {
	sort.Slice(names, func(i, j int) bool {
		li, lj := strings.ToLower(names[i]), strings.ToLower(names[j])
		if li != lj {
			return li < lj
		}
		return names[i] < names[j]
	})
}

func displayName(root string) string {
	trimmed := strings.TrimRight(strings.ReplaceAll(root, `\`, "/"), "/")
	if trimmed == "" {
		return "."
	}
	base := filepath.Base(filepath.FromSlash(trimmed))
	if base == "." || base == string(filepath.Separator) {
		return trimmed
	}
	return base
}
