package selection

import "strings"

// Membership answers "is this path part of the export" for a payload, treating the
// payload as set algebra over the tree:
//
//	included(p) = (p ∈ selectedFiles OR p under a selected folder)
//	              AND NOT (p ∈ excludedFiles OR p under an excluded folder)
//
// Folder rules are resolved by specificity: the deepest folder rule covering a path
// wins, so a selected folder nested inside an excluded folder re-includes its subtree.
// Explicit file entries beat any folder rule, and an excluded file always loses.
type Membership struct {
	selectedFiles   map[string]bool
	excludedFiles   map[string]bool
	selectedFolders []string
	excludedFolders []string
}

// NewMembership builds the predicate for a payload. Paths are slash-normalized; the
// empty folder denotes the root and covers everything.
func NewMembership(p Payload) *Membership {
	m := &Membership{
		selectedFiles: make(map[string]bool, len(p.SelectedFiles)),
		excludedFiles: make(map[string]bool, len(p.ExcludedFiles)),
	}
	for _, f := range p.SelectedFiles {
		m.selectedFiles[normalizeRel(f)] = true
	}
	for _, f := range p.ExcludedFiles {
		m.excludedFiles[normalizeRel(f)] = true
	}
	for _, d := range p.SelectedFolders {
		m.selectedFolders = append(m.selectedFolders, normalizeRel(d))
	}
	for _, d := range p.ExcludedFolders {
		m.excludedFolders = append(m.excludedFolders, normalizeRel(d))
	}
	return m
}

// Includes reports whether the file at relPath is effectively selected.
func (m *Membership) Includes(relPath string) bool {
	relPath = normalizeRel(relPath)
	if m.excludedFiles[relPath] {
		return false
	}
	if m.selectedFiles[relPath] {
		return true
	}
	included, _ := m.folderRule(relPath)
	return included
}

// ExcludedByFolder reports whether the deepest folder rule covering relPath is an
// exclusion.
func (m *Membership) ExcludedByFolder(relPath string) bool {
	included, found := m.folderRule(normalizeRel(relPath))
	return found && !included
}

// Prunable reports whether a directory walk can skip dir entirely: its deepest folder
// rule is an exclusion and no selected folder or file lies strictly beneath it.
func (m *Membership) Prunable(dir string) bool {
	dir = normalizeRel(dir)
	if !m.ExcludedByFolder(dir) {
		return false
	}
	for _, f := range m.selectedFolders {
		if f != dir && covers(dir, f) {
			return false
		}
	}
	for f := range m.selectedFiles {
		if covers(dir, f) && f != dir {
			return false
		}
	}
	return true
}

// folderRule returns the decision of the deepest folder rule covering relPath.
// Ties between a selected and an excluded folder go to the exclusion.
func (m *Membership) folderRule(relPath string) (included, found bool) {
	best := -1
	for _, f := range m.selectedFolders {
		if covers(f, relPath) && len(f) > best {
			best, included, found = len(f), true, true
		}
	}
	for _, f := range m.excludedFolders {
		if covers(f, relPath) && len(f) >= best {
			best, included, found = len(f), false, true
		}
	}
	return included, found
}

// covers reports whether folder is path itself or one of its ancestors.
func covers(folder, path string) bool {
	if folder == "" {
		return true
	}
	return path == folder || strings.HasPrefix(path, folder+"/")
}
