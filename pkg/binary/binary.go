// Package binary classifies files as text or binary before they are embedded in an export.
package binary

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// SniffSize is the number of leading bytes inspected for unknown file types.
const SniffSize = 8192

// TextExtensions lists extensions that are always treated as readable text.
var TextExtensions = toSet(
	// Web
	"html", "htm", "xhtml", "xml", "svg", "css", "scss", "sass", "less",
	// Scripts
	"js", "mjs", "cjs", "jsx", "ts", "tsx", "vue", "svelte",
	// Backend
	"py", "rb", "php", "java", "kt", "kts", "scala", "groovy",
	"cs", "fs", "fsx", "vb", "cpp", "cc", "cxx", "c", "h", "hpp",
	"go", "rs", "swift", "dart", "m", "mm",
	"lua", "pl", "pm", "r", "jl", "ex", "exs", "erl", "hrl",
	"hs", "lhs", "clj", "cljs", "elm", "ml", "mli",
	// Shell
	"sh", "bash", "zsh", "fish", "ps1", "psm1", "psd1", "bat", "cmd",
	// Data and config
	"json", "json5", "jsonc", "yaml", "yml", "toml", "ini", "cfg",
	"conf", "config", "env", "properties", "plist",
	// Docs
	"md", "mdx", "markdown", "txt", "rst", "adoc", "tex", "csv", "tsv",
	// Build and infra
	"dockerfile", "makefile", "cmake", "gradle", "bazel", "bzl",
	"tf", "tfvars", "hcl", "nix", "lock", "mod", "sum",
	// Misc
	"graphql", "gql", "proto", "thrift", "avsc", "wat",
	"sql", "prisma", "pug", "jade", "haml", "ejs", "hbs", "mustache",
	"njk", "twig", "liquid", "erb",
	// Editor and project dotfiles
	"editorconfig", "eslintrc", "prettierrc", "babelrc", "npmrc",
	"gitignore", "gitattributes", "htaccess",
)

// TextBasenames lists file names without a useful extension that are always text.
var TextBasenames = toSet(
	"dockerfile", "makefile", "gemfile", "rakefile", "procfile",
	"vagrantfile", "brewfile", "jenkinsfile", "caddyfile",
	".gitignore", ".gitattributes", ".editorconfig", ".npmrc",
	".env", ".env.local", ".env.example", ".htaccess",
)

// Sniffer decides whether a file is binary. The zero value is ready to use.
type Sniffer struct {
	Logger *zap.Logger
}

// IsBinaryFile reports whether the file at path should be treated as binary.
// Known text extensions and basenames never touch the disk. Anything else is sniffed
// for a zero byte in its first SniffSize bytes; a file that cannot be read is binary.
func (s *Sniffer) IsBinaryFile(path, ext string) bool {
	if TextExtensions[strings.ToLower(ext)] {
		return false
	}
	if TextBasenames[strings.ToLower(filepath.Base(path))] {
		return false
	}

	binary, err := sniff(path)
	if err != nil {
		s.logger().Debug("Treating unreadable file as binary", zap.String("file", path), zap.Error(err))
		return true
	}
	return binary
}

func (s *Sniffer) logger() *zap.Logger {
	if s == nil || s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// sniff reads the leading bytes of the file and checks for a NUL byte.
func sniff(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	buffer := make([]byte, SniffSize)
	n, err := io.ReadFull(file, buffer)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false, err
	}
	return bytes.IndexByte(buffer[:n], 0) >= 0, nil
}

// Extension returns the text after the last '.' of the base name, or "" when there is none.
func Extension(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	idx := strings.LastIndex(base, ".")
	if idx < 0 {
		return ""
	}
	return base[idx+1:]
}

func toSet(values ...string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
