// Package discovery finds the files an export should contain when the caller did not
// pick them by hand.
package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"direxpo/pkg/ignore"
	"direxpo/pkg/pathsafe"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	gitignore "github.com/monochromegane/go-gitignore"
	"go.uber.org/zap"
)

// Filter names accepted by Options.Filter.
const (
	FilterAll  = "all"
	FilterTSX  = "tsx"
	FilterCSS  = "css"
	FilterMD   = "md"
	FilterJSON = "json"
	FilterGlob = "glob"
)

var filterExtensions = map[string][]string{
	FilterTSX:  {"ts", "tsx", "js", "jsx"},
	FilterCSS:  {"css", "scss", "sass", "less"},
	FilterMD:   {"md", "markdown"},
	FilterJSON: {"json"},
}

// Options controls a discovery walk.
type Options struct {
	Root             string
	Filter           string
	Pattern          string
	Exclude          *ignore.Matcher
	RespectGitignore bool
	// SkipDir is an absolute directory never descended into, typically the output directory.
	SkipDir string
}

// Engine walks directory trees. It is safe for concurrent use.
type Engine struct {
	logger *zap.Logger
	cache  *lru.Cache[string, cachedIgnore]
}

type cachedIgnore struct {
	modTime time.Time
	matcher gitignore.IgnoreMatcher
}

// NewEngine returns an Engine caching up to cacheSize compiled .gitignore files.
func NewEngine(cacheSize int, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheSize <= 0 {
		cacheSize = 64
	}
	cache, err := lru.New[string, cachedIgnore](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitignore cache: %w", err)
	}
	return &Engine{logger: logger, cache: cache}, nil
}

// Discover walks opts.Root and returns the sorted slash-separated relative paths of every
// regular file that passes the filter, the exclusion patterns and .gitignore.
func (e *Engine) Discover(ctx context.Context, opts Options) ([]string, error) {
	root := opts.Root
	filter := strings.ToLower(strings.TrimSpace(opts.Filter))
	if filter == "" {
		filter = FilterAll
	}
	if filter == FilterGlob && strings.TrimSpace(opts.Pattern) == "" {
		filter = FilterAll
	}
	if filter == FilterGlob && !doublestar.ValidatePattern(opts.Pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q", opts.Pattern)
	}

	var gi gitignore.IgnoreMatcher
	if opts.RespectGitignore {
		gi = e.gitignoreFor(root)
	}

	e.logger.Debug("Discovering files",
		zap.String("root", root),
		zap.String("filter", filter),
		zap.String("pattern", opts.Pattern),
		zap.Bool("gitignore", gi != nil))

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			e.logger.Warn("Error accessing path during discovery", zap.String("path", path), zap.Error(walkErr))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		relPath, err := pathsafe.Rel(root, path)
		if err != nil {
			return nil
		}
		isDir := d.IsDir()

		if isDir {
			if d.Name() == ".git" || (opts.SkipDir != "" && path == opts.SkipDir) {
				return filepath.SkipDir
			}
			if opts.Exclude.Matches(relPath) || (gi != nil && gi.Match(path, true)) {
				e.logger.Debug("Skipping excluded directory", zap.String("directory", relPath))
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if opts.Exclude.Matches(relPath) || (gi != nil && gi.Match(path, false)) {
			return nil
		}
		if !matches(filter, opts.Pattern, relPath) {
			return nil
		}
		files = append(files, relPath)
		return nil
	})
	if err != nil {
		e.logger.Error("Discovery failed", zap.String("root", root), zap.Error(err))
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Strings(files)
	e.logger.Debug("Discovery finished", zap.String("root", root), zap.Int("files", len(files)))
	return files, nil
}

// MatchesFilter reports whether a file name passes one of the extension filters.
// Unknown filters, "all" and "glob" accept everything.
func MatchesFilter(name, filter string) bool {
	exts, ok := filterExtensions[strings.ToLower(filter)]
	if !ok {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	ext = strings.TrimPrefix(ext, ".")
	for _, want := range exts {
		if ext == want {
			return true
		}
	}
	return false
}

func matches(filter, pattern, relPath string) bool {
	if filter != FilterGlob {
		return MatchesFilter(relPath, filter)
	}
	if ok, _ := doublestar.Match(pattern, relPath); ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		ok, _ := doublestar.Match(pattern, filepath.Base(filepath.FromSlash(relPath)))
		return ok
	}
	return false
}

// gitignoreFor returns the compiled root .gitignore, reusing the cached copy while the
// file's modification time is unchanged. It returns nil when there is none.
func (e *Engine) gitignoreFor(root string) gitignore.IgnoreMatcher {
	path := filepath.Join(root, ".gitignore")
	info, err := os.Stat(path)
	if err != nil {
		e.cache.Remove(path)
		return nil
	}

	if cached, ok := e.cache.Get(path); ok && cached.modTime.Equal(info.ModTime()) {
		return cached.matcher
	}

	file, err := os.Open(path)
	if err != nil {
		e.logger.Warn("Could not read .gitignore", zap.String("path", path), zap.Error(err))
		return nil
	}
	defer file.Close()

	matcher := gitignore.NewGitIgnoreFromReader(root, file)
	e.cache.Add(path, cachedIgnore{modTime: info.ModTime(), matcher: matcher})
	e.logger.Debug("Loaded .gitignore", zap.String("path", path))
	return matcher
}
