// Package pathsafe confines user-supplied relative paths to a root directory.
package pathsafe

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveRoot converts a user-supplied target path into an absolute, cleaned root.
// It does not touch the filesystem.
func ResolveRoot(targetPath string) (string, error) {
	targetPath = strings.TrimSpace(targetPath)
	if targetPath == "" {
		return "", fmt.Errorf("target path is empty")
	}
	if strings.ContainsRune(targetPath, 0) {
		return "", fmt.Errorf("target path contains a NUL byte")
	}

	// Expand ~ to home directory
	if targetPath == "~" || strings.HasPrefix(targetPath, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		targetPath = filepath.Join(homeDir, strings.TrimPrefix(targetPath[1:], "/"))
	}

	absPath, err := filepath.Abs(targetPath)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	return filepath.Clean(absPath), nil
}

// ResolveWithinRoot joins relPath to root and reports whether the result stays inside
// root. Blank relPath resolves to root itself. NUL bytes, absolute paths and any ".."
// segment are rejected before the filesystem is consulted.
func ResolveWithinRoot(root, relPath string) (string, bool) {
	if strings.ContainsRune(relPath, 0) {
		return "", false
	}

	rootClean := filepath.Clean(root)
	if strings.TrimSpace(relPath) == "" {
		return rootClean, true
	}

	slashed := ToSlash(relPath)
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(relPath) || filepath.VolumeName(relPath) != "" {
		return "", false
	}
	for _, segment := range strings.Split(slashed, "/") {
		if segment == ".." {
			return "", false
		}
	}

	normalized := filepath.Clean(filepath.FromSlash(slashed))
	if normalized == ".." || strings.HasPrefix(normalized, ".."+string(filepath.Separator)) {
		return "", false
	}

	fullPath := filepath.Join(rootClean, normalized)
	if !Within(rootClean, fullPath) {
		return "", false
	}
	return fullPath, true
}

// Within reports whether path equals root or lies beneath it. The comparison folds case
// on platforms whose default filesystems are case-insensitive.
func Within(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	if caseInsensitive() {
		root = strings.ToLower(root)
		path = strings.ToLower(path)
	}
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}

// Rel returns the slash-delimited path of fullPath relative to root.
func Rel(root, fullPath string) (string, error) {
	rel, err := filepath.Rel(root, fullPath)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

// ToSlash converts both OS separators and backslashes to forward slashes.
func ToSlash(p string) string {
	return strings.ReplaceAll(filepath.ToSlash(p), `\`, "/")
}

func caseInsensitive() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}
