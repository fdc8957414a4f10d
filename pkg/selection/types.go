package selection

import (
	"path"
	"strconv"
	"strings"

	"direxpo/pkg/pathsafe"
)

// Skip reasons reported to the caller. The set is closed.
const (
	ReasonInvalidFolder = "Invalid folder path"
	ReasonFolderRead    = "Failed to read folder"
	ReasonInvalidPath   = "Invalid path"
	ReasonExcluded      = "Excluded by pattern"
	ReasonNotAFile      = "Not a file"
	ReasonNotFound      = "File not found or inaccessible"
)

// Payload is the user's selection intent as sent by the picker UI.
type Payload struct {
	SelectedFiles   []string `json:"selectedFiles"`
	SelectedFolders []string `json:"selectedFolders"`
	ExcludedFiles   []string `json:"excludedFiles"`
	ExcludedFolders []string `json:"excludedFolders,omitempty"`
}

// SkippedFile records a path that did not make it into the export and why.
type SkippedFile struct {
	RelPath string `json:"relPath"`
	Reason  string `json:"reason"`
}

// Result is the outcome of resolving a payload.
type Result struct {
	Valid   []string      `json:"valid"`
	Skipped []SkippedFile `json:"skipped"`
}

// TooLargeReason formats the size-limit skip reason, e.g. "Exceeds max size (1MB)".
func TooLargeReason(maxSizeMb float64) string {
	return "Exceeds max size (" + FormatMB(maxSizeMb) + "MB)"
}

// FormatMB renders a megabyte count without trailing zeros or exponent notation.
func FormatMB(mb float64) string {
	return strconv.FormatFloat(mb, 'f', -1, 64)
}

// MaxBytes converts a megabyte limit to bytes. Limits <= 0 mean unlimited and return 0.
func MaxBytes(maxSizeMb float64) int64 {
	if maxSizeMb <= 0 {
		return 0
	}
	return int64(maxSizeMb * 1024 * 1024)
}

// normalizeRel converts a client path to the canonical slash form used as a set key.
// Paths with a ".." segment are left uncleaned so path safety still rejects them.
func normalizeRel(p string) string {
	p = pathsafe.ToSlash(p)
	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return p
		}
	}
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	if p == "." {
		return ""
	}
	return p
}
