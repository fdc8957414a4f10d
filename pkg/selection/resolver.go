// Package selection expands a picker selection payload into a validated file list.
package selection

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"direxpo/pkg/ignore"
	"direxpo/pkg/pathsafe"

	"go.uber.org/zap"
)

// Resolver turns a Payload into concrete relative paths under a root.
type Resolver struct {
	Logger *zap.Logger
}

// NewResolver returns a Resolver logging to logger (nil disables logging).
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{Logger: logger}
}

// Resolve expands payload against root. Selected folders are walked recursively with
// excluded directories pruned; explicitly excluded files are then removed; every
// remaining candidate is re-validated, re-checked against patterns, stat'ed and size
// checked. maxSizeMb <= 0 disables the size limit.
//
// Per-path problems are reported in Result.Skipped. The only error returned is the
// context's, when ctx is cancelled between paths.
func (r *Resolver) Resolve(ctx context.Context, root string, payload Payload, matcher *ignore.Matcher, maxSizeMb float64) (Result, error) {
	logger := r.logger()
	membership := NewMembership(payload)
	candidates := newOrderedSet()
	var skipped []SkippedFile

	for _, file := range payload.SelectedFiles {
		candidates.add(normalizeRel(file))
	}

	for _, rawFolder := range payload.SelectedFolders {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		folder := normalizeRel(rawFolder)
		folderAbs, ok := pathsafe.ResolveWithinRoot(root, folder)
		if !ok {
			logger.Warn("Rejected selected folder", zap.String("folder", rawFolder))
			skipped = append(skipped, SkippedFile{RelPath: rawFolder, Reason: ReasonInvalidFolder})
			continue
		}

		files, walkSkips, err := r.collectFolder(ctx, root, folderAbs, matcher, membership)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			logger.Warn("Failed to read selected folder", zap.String("folder", folder), zap.Error(err))
			skipped = append(skipped, SkippedFile{RelPath: rawFolder, Reason: ReasonFolderRead})
			continue
		}
		skipped = append(skipped, walkSkips...)
		for _, f := range files {
			candidates.add(f)
		}
	}

	for _, excluded := range payload.ExcludedFiles {
		candidates.remove(normalizeRel(excluded))
	}

	rootReal := realRoot(root)
	maxBytes := MaxBytes(maxSizeMb)
	var valid []string

	for _, relPath := range candidates.items() {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		fullPath, ok := pathsafe.ResolveWithinRoot(root, relPath)
		if !ok {
			skipped = append(skipped, SkippedFile{RelPath: relPath, Reason: ReasonInvalidPath})
			continue
		}
		if matcher.Matches(relPath) {
			skipped = append(skipped, SkippedFile{RelPath: relPath, Reason: ReasonExcluded})
			continue
		}

		info, err := os.Stat(fullPath)
		if err != nil {
			skipped = append(skipped, SkippedFile{RelPath: relPath, Reason: ReasonNotFound})
			continue
		}
		if !info.Mode().IsRegular() {
			skipped = append(skipped, SkippedFile{RelPath: relPath, Reason: ReasonNotAFile})
			continue
		}
		if !symlinkStaysInside(rootReal, fullPath) {
			logger.Warn("Skipping symlink that leaves the root", zap.String("file", relPath))
			skipped = append(skipped, SkippedFile{RelPath: relPath, Reason: ReasonInvalidPath})
			continue
		}
		if maxBytes > 0 && info.Size() > maxBytes {
			skipped = append(skipped, SkippedFile{RelPath: relPath, Reason: TooLargeReason(maxSizeMb)})
			continue
		}

		valid = append(valid, relPath)
	}

	logger.Debug("Resolved selection payload",
		zap.Int("valid", len(valid)),
		zap.Int("skipped", len(skipped)))
	return Result{Valid: valid, Skipped: skipped}, nil
}

// collectFolder walks folderAbs and returns the relative paths of every regular file
// that survives the exclusion patterns and the membership predicate. Unreadable
// subdirectories are reported as skips; an unreadable top-level folder is an error.
func (r *Resolver) collectFolder(ctx context.Context, root, folderAbs string, matcher *ignore.Matcher, membership *Membership) ([]string, []SkippedFile, error) {
	info, err := os.Stat(folderAbs)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		return nil, nil, &fs.PathError{Op: "readdir", Path: folderAbs, Err: errors.New("not a directory")}
	}

	var files []string
	var skipped []SkippedFile

	err = filepath.WalkDir(folderAbs, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		relPath, relErr := pathsafe.Rel(root, path)
		if relErr != nil {
			return nil
		}

		if walkErr != nil {
			if path == folderAbs {
				return walkErr
			}
			r.logger().Warn("Error reading folder during selection", zap.String("folder", relPath), zap.Error(walkErr))
			skipped = append(skipped, SkippedFile{RelPath: relPath, Reason: ReasonFolderRead})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == folderAbs {
			return nil
		}

		if d.IsDir() {
			if matcher.Matches(relPath) || membership.Prunable(relPath) {
				r.logger().Debug("Pruning excluded directory", zap.String("directory", relPath))
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || matcher.Matches(relPath) {
			return nil
		}
		if membership.Includes(relPath) {
			files = append(files, relPath)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return files, skipped, nil
}

func (r *Resolver) logger() *zap.Logger {
	if r == nil || r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// realRoot resolves symlinks in root, falling back to root itself.
func realRoot(root string) string {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return root
	}
	return resolved
}

// symlinkStaysInside reports whether the fully resolved target of path is inside rootReal.
func symlinkStaysInside(rootReal, path string) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}
	return pathsafe.Within(rootReal, resolved)
}

// orderedSet is a string set that remembers insertion order.
type orderedSet struct {
	index map[string]int
	order []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{index: make(map[string]int)}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.index[v]; ok {
		return
	}
	s.index[v] = len(s.order)
	s.order = append(s.order, v)
}

func (s *orderedSet) remove(v string) {
	if _, ok := s.index[v]; !ok {
		return
	}
	delete(s.index, v)
}

func (s *orderedSet) items() []string {
	out := make([]string, 0, len(s.index))
	for i, v := range s.order {
		if idx, ok := s.index[v]; ok && idx == i {
			out = append(out, v)
		}
	}
	return out
}
