// Package api implements the direxpo HTTP API: request validation, orchestration of
// selection, discovery and export, and the handlers themselves.
package api

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"direxpo/pkg/combine"
	"direxpo/pkg/discovery"
	"direxpo/pkg/ignore"
	"direxpo/pkg/metrics"
	"direxpo/pkg/pathsafe"
	"direxpo/pkg/selection"

	"go.uber.org/zap"
)

// Messages returned to clients for request-level failures.
const (
	MsgMissingOptions   = "Request body must contain an options object."
	MsgMissingTarget    = "targetPath is required and must be a non-empty string."
	MsgNoValidSelection = "No valid files selected"
	MsgNoFilesMatched   = "No files matched the current filters. Try changing the File Type filter, adjusting the exclude list, or selecting files manually."
)

// Export modes used as metric labels.
const (
	ModeSelection = "selection"
	ModeDiscovery = "discovery"
	ModeTree      = "tree"
)

// RequestError is a failure caused by the request itself. It maps to a 4xx response.
type RequestError struct {
	Status  int
	Message string
	Skipped []selection.SkippedFile
}

func (e *RequestError) Error() string { return e.Message }

func badRequest(format string, args ...interface{}) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// TreeReport is the report of a tree-only run.
type TreeReport struct {
	Included     int   `json:"included"`
	BytesWritten int64 `json:"bytesWritten"`
	TreeOnly     bool  `json:"treeOnly"`
}

// RunResponse is the body of a successful POST /api/run.
type RunResponse struct {
	OutputPath    string                  `json:"outputPath"`
	Report        interface{}             `json:"report"`
	ExportedCount int                     `json:"exportedCount"`
	Skipped       []selection.SkippedFile `json:"skipped"`
}

// Service runs exports. All fields except Metrics are required; use NewService.
type Service struct {
	OutputDir        string
	DefaultMaxSizeMb float64
	RespectGitignore bool

	Resolver  *selection.Resolver
	Exporter  *combine.Exporter
	Discovery *discovery.Engine
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// ServiceConfig carries the settings NewService needs.
type ServiceConfig struct {
	OutputDir        string
	DefaultMaxSizeMb float64
	RespectGitignore bool
	CacheSize        int
}

// NewService wires the resolver, exporter and discovery engine together.
func NewService(cfg ServiceConfig, m *metrics.Metrics, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine, err := discovery.NewEngine(cfg.CacheSize, logger.Named("discovery"))
	if err != nil {
		return nil, err
	}
	return &Service{
		OutputDir:        cfg.OutputDir,
		DefaultMaxSizeMb: cfg.DefaultMaxSizeMb,
		RespectGitignore: cfg.RespectGitignore,
		Resolver:         selection.NewResolver(logger.Named("selection")),
		Exporter:         combine.NewExporter(cfg.OutputDir, logger.Named("export")),
		Discovery:        engine,
		Metrics:          m,
		Logger:           logger,
	}, nil
}

// Run validates opts and produces either a Markdown export or a tree-only document.
// Request problems are returned as *RequestError; anything else is an internal failure.
func (s *Service) Run(ctx context.Context, opts ExportOptions) (*RunResponse, error) {
	logger := s.Logger

	if strings.TrimSpace(opts.TargetPath) == "" {
		return nil, badRequest(MsgMissingTarget)
	}
	root, err := pathsafe.ResolveRoot(opts.TargetPath)
	if err != nil {
		return nil, badRequest("Invalid target path: %s", opts.TargetPath)
	}
	if err := checkRoot(root, opts.TargetPath); err != nil {
		return nil, err
	}

	norm := opts.Normalize(s.DefaultMaxSizeMb)
	matcher := ignore.NewWithLogger(logger, norm.Exclude...)
	logger.Debug("Starting run",
		zap.String("root", root),
		zap.String("filter", norm.Filter),
		zap.Strings("exclude", norm.Exclude),
		zap.Float64("maxSizeMb", norm.MaxSizeMb),
		zap.Bool("selection", opts.SelectionPayload != nil),
		zap.Bool("includeTree", opts.IncludeTree),
		zap.Bool("treeOnly", opts.TreeOnly))

	var filePaths []string
	skipped := []selection.SkippedFile{}
	mode := ModeDiscovery

	if opts.SelectionPayload != nil {
		mode = ModeSelection
		res, err := s.Resolver.Resolve(ctx, root, *opts.SelectionPayload, matcher, norm.MaxSizeMb)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve selection: %w", err)
		}
		filePaths = res.Valid
		if len(res.Skipped) > 0 {
			skipped = res.Skipped
		}
		for _, sk := range skipped {
			s.Metrics.Skip(sk.Reason)
		}
		if len(filePaths) == 0 {
			logger.Info("Selection resolved to nothing", zap.Int("skipped", len(skipped)))
			return nil, &RequestError{Status: http.StatusBadRequest, Message: MsgNoValidSelection, Skipped: skipped}
		}
	}

	if opts.TreeOnly {
		paths := filePaths
		if len(paths) == 0 {
			if paths, err = s.discover(ctx, root, norm, matcher); err != nil {
				return nil, err
			}
		}
		tree, err := s.Exporter.WriteTreeOnly(paths, opts.TargetPath)
		if err != nil {
			return nil, err
		}
		s.Metrics.Export(ModeTree, tree.BytesWritten)
		return &RunResponse{
			OutputPath:    tree.OutputPath,
			Report:        TreeReport{Included: len(paths), BytesWritten: tree.BytesWritten, TreeOnly: true},
			ExportedCount: len(paths),
			Skipped:       skipped,
		}, nil
	}

	if len(filePaths) == 0 {
		if filePaths, err = s.discover(ctx, root, norm, matcher); err != nil {
			return nil, err
		}
		if len(filePaths) == 0 {
			return nil, badRequest(MsgNoFilesMatched)
		}
	}

	result, err := s.Exporter.ExportSelectedFiles(ctx, root, filePaths, norm.MaxSizeMb)
	if err != nil {
		return nil, err
	}

	if opts.IncludeTree {
		if section := combine.RenderTree(filePaths, opts.TargetPath); section != "" {
			if err := s.Exporter.PrependToFile(result.OutputMarkdownPath, section+"\n"); err != nil {
				logger.Warn("Failed to prepend folder structure", zap.String("outputPath", result.OutputMarkdownPath), zap.Error(err))
			}
		}
	}

	info, err := os.Stat(result.OutputMarkdownPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat export %s: %w", result.OutputMarkdownPath, err)
	}
	report := result.Report
	report.BytesWritten = info.Size()

	s.recordExport(mode, report)
	return &RunResponse{
		OutputPath:    result.OutputMarkdownPath,
		Report:        report,
		ExportedCount: len(filePaths),
		Skipped:       skipped,
	}, nil
}

func (s *Service) discover(ctx context.Context, root string, norm NormalizedOptions, matcher *ignore.Matcher) ([]string, error) {
	opts := discovery.Options{
		Root:             root,
		Filter:           norm.Filter,
		Pattern:          norm.Pattern,
		Exclude:          matcher,
		RespectGitignore: s.RespectGitignore,
	}
	if s.OutputDir != "" && pathsafe.Within(root, s.OutputDir) {
		opts.SkipDir = s.OutputDir
	}
	files, err := s.Discovery.Discover(ctx, opts)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("file discovery failed: %w", err)
	}
	return files, nil
}

func (s *Service) recordExport(mode string, report combine.Report) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.Export(mode, report.BytesWritten)
	s.Metrics.SkipCount("Binary file", report.Counts.SkippedBinary)
	s.Metrics.SkipCount("Exceeds max size", report.Counts.SkippedLarge)
	s.Metrics.SkipCount("Read error", report.Counts.SkippedError)
}

// checkRoot verifies that root is an existing, readable directory.
func checkRoot(root, display string) error {
	info, err := os.Stat(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return badRequest("Target path does not exist: %s", display)
	case errors.Is(err, fs.ErrPermission):
		return badRequest("Permission denied reading target path: %s", display)
	case err != nil:
		return fmt.Errorf("failed to stat target path %s: %w", display, err)
	case !info.IsDir():
		return badRequest("Target path is not a directory: %s", display)
	}
	return nil
}
