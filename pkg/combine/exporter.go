// File: pkg/combine/exporter.go
package combine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"direxpo/pkg/binary"
	"direxpo/pkg/pathsafe"
	"direxpo/pkg/selection"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	exportHeader  = "# Selected Files Export\n\n"
	binaryNote    = "> *Binary file — content not exported.*\n\n"
	timestampForm = "2006-01-02T150405"
	writeBufSize  = 64 * 1024
)

// Exporter streams selected files into a single Markdown document.
type Exporter struct {
	OutputDir string
	Sniffer   *binary.Sniffer
	Logger    *zap.Logger

	// now is overridable in tests.
	now func() time.Time
}

// NewExporter returns an Exporter writing into outputDir.
func NewExporter(outputDir string, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		OutputDir: outputDir,
		Sniffer:   &binary.Sniffer{Logger: logger},
		Logger:    logger,
	}
}

// ExportSelectedFiles writes every relPath under root into a new selected_<ts>.md file.
// Files are written in lexicographic order, one at a time. Binary files, files over
// maxSizeMb (when > 0) and unreadable files get a note instead of content. The context
// is checked between files; on cancellation the partial file is removed.
func (e *Exporter) ExportSelectedFiles(ctx context.Context, root string, relPaths []string, maxSizeMb float64) (*Result, error) {
	logger := e.logger()

	sorted := append([]string(nil), relPaths...)
	sort.Strings(sorted)

	file, outputPath, err := e.createOutput("selected")
	if err != nil {
		logger.Error("Failed to create export file", zap.String("outputDir", e.OutputDir), zap.Error(err))
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}
	logger.Debug("Writing export", zap.String("outputPath", outputPath), zap.Int("files", len(sorted)))

	counts, err := e.writeDocument(ctx, file, root, sorted, maxSizeMb)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		if removeErr := os.Remove(outputPath); removeErr != nil {
			logger.Warn("Failed to remove partial export", zap.String("outputPath", outputPath), zap.Error(removeErr))
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Info("Export cancelled", zap.String("outputPath", outputPath))
			return nil, err
		}
		logger.Error("Failed to write export", zap.String("outputPath", outputPath), zap.Error(err))
		return nil, fmt.Errorf("failed to write export %s: %w", outputPath, err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat export %s: %w", outputPath, err)
	}

	logger.Info("Export written",
		zap.String("outputPath", outputPath),
		zap.Int("included", counts.Included),
		zap.Int("skippedBinary", counts.SkippedBinary),
		zap.Int("skippedLarge", counts.SkippedLarge),
		zap.Int("skippedError", counts.SkippedError),
		zap.Int64("bytesWritten", info.Size()))

	return &Result{
		OutputMarkdownPath: outputPath,
		Report: Report{
			Included:     counts.Included,
			BytesWritten: info.Size(),
			Counts:       counts,
		},
	}, nil
}

func (e *Exporter) writeDocument(ctx context.Context, out io.Writer, root string, relPaths []string, maxSizeMb float64) (Counts, error) {
	counts := Counts{TotalMatched: len(relPaths)}
	w := bufio.NewWriterSize(out, writeBufSize)
	maxBytes := selection.MaxBytes(maxSizeMb)

	if _, err := w.WriteString(exportHeader); err != nil {
		return counts, err
	}

	for _, relPath := range relPaths {
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		if _, err := w.WriteString("## " + relPath + "\n\n"); err != nil {
			return counts, err
		}

		fullPath, ok := pathsafe.ResolveWithinRoot(root, relPath)
		if !ok {
			counts.SkippedError++
			if _, err := w.WriteString(errorNote("invalid path")); err != nil {
				return counts, err
			}
			continue
		}

		ext := binary.Extension(relPath)
		if e.sniffer().IsBinaryFile(fullPath, ext) {
			counts.SkippedBinary++
			if _, err := w.WriteString(binaryNote); err != nil {
				return counts, err
			}
			continue
		}

		if maxBytes > 0 {
			if info, err := os.Stat(fullPath); err == nil && info.Size() > maxBytes {
				counts.SkippedLarge++
				if _, err := w.WriteString(largeNote(maxSizeMb)); err != nil {
					return counts, err
				}
				continue
			}
		}

		written, err := writeFenced(w, fullPath, ext)
		if err != nil {
			var readErr *sourceError
			if !errors.As(err, &readErr) {
				return counts, err
			}
			e.logger().Warn("Failed to read file for export", zap.String("file", relPath), zap.Error(readErr.err))
			counts.SkippedError++
			// A failure after the fence opened still has to close it.
			if written {
				if _, err := w.WriteString("\n```\n\n"); err != nil {
					return counts, err
				}
			}
			if _, err := w.WriteString(errorNote(readErr.err.Error())); err != nil {
				return counts, err
			}
			continue
		}
		counts.Included++
	}

	return counts, w.Flush()
}

// sourceError marks a failure reading an input file, as opposed to writing the output.
type sourceError struct {
	err error
}

func (e *sourceError) Error() string { return e.err.Error() }
func (e *sourceError) Unwrap() error { return e.err }

// writeFenced streams the file into a fenced code block, making sure exactly one
// newline precedes the closing fence. The bool reports whether the fence was opened.
func writeFenced(w *bufio.Writer, fullPath, ext string) (bool, error) {
	src, err := os.Open(fullPath)
	if err != nil {
		return false, &sourceError{err: err}
	}
	defer src.Close()

	if _, err := w.WriteString("```" + ext + "\n"); err != nil {
		return false, err
	}

	tracker := &lastByteReader{r: src}
	if _, err := io.Copy(w, tracker); err != nil {
		if tracker.readErr != nil {
			return true, &sourceError{err: tracker.readErr}
		}
		return true, err
	}

	closing := "```\n\n"
	if tracker.n == 0 || tracker.last != '\n' {
		closing = "\n" + closing
	}
	_, err = w.WriteString(closing)
	return true, err
}

// lastByteReader remembers the last byte read and any read error.
type lastByteReader struct {
	r       io.Reader
	n       int64
	last    byte
	readErr error
}

func (l *lastByteReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if n > 0 {
		l.n += int64(n)
		l.last = p[n-1]
	}
	if err != nil && err != io.EOF {
		l.readErr = err
	}
	return n, err
}

// PrependToFile rewrites path so that it starts with prefix. The new content is built in
// a temporary file in the same directory and renamed over the original.
func (e *Exporter) PrependToFile(path, prefix string) error {
	logger := e.logger()

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriterSize(tmp, writeBufSize)
	if _, err := w.WriteString(prefix); err != nil {
		return fmt.Errorf("failed to write prefix: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to copy %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush temp file: %w", err)
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		logger.Debug("Could not copy file mode to temp file", zap.String("file", tmpPath), zap.Error(err))
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	success = true

	logger.Debug("Prepended content", zap.String("file", path), zap.Int("prefixBytes", len(prefix)))
	return nil
}

// WriteTreeOnly writes the rendered tree for relPaths into a new tree_<ts>.md file.
func (e *Exporter) WriteTreeOnly(relPaths []string, displayRoot string) (*TreeResult, error) {
	logger := e.logger()

	file, outputPath, err := e.createOutput("tree")
	if err != nil {
		logger.Error("Failed to create tree file", zap.String("outputDir", e.OutputDir), zap.Error(err))
		return nil, fmt.Errorf("failed to create tree file: %w", err)
	}

	_, err = io.WriteString(file, RenderTree(relPaths, displayRoot))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(outputPath)
		return nil, fmt.Errorf("failed to write tree file %s: %w", outputPath, err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat tree file %s: %w", outputPath, err)
	}

	logger.Info("Tree written", zap.String("outputPath", outputPath), zap.Int("paths", len(relPaths)))
	return &TreeResult{OutputPath: outputPath, BytesWritten: info.Size()}, nil
}

// createOutput exclusively creates <kind>_<ts>.md in the output directory, appending a
// random suffix when that name is already taken.
func (e *Exporter) createOutput(kind string) (*os.File, string, error) {
	if err := os.MkdirAll(e.OutputDir, 0o755); err != nil {
		return nil, "", err
	}

	stamp := e.clock().UTC().Format(timestampForm)
	name := kind + "_" + stamp + ".md"
	for attempt := 0; attempt < 5; attempt++ {
		path := filepath.Join(e.OutputDir, name)
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return file, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", err
		}
		e.logger().Debug("Output name taken, retrying", zap.String("name", name))
		name = kind + "_" + stamp + "-" + shortID() + ".md"
	}
	return nil, "", fmt.Errorf("could not find a free output name for %s_%s", kind, stamp)
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func errorNote(msg string) string {
	return "*Error reading file: " + msg + "*\n\n"
}

func largeNote(maxSizeMb float64) string {
	return "> *File exceeds max size (" + selection.FormatMB(maxSizeMb) + "MB) — content not exported.*\n\n"
}

func (e *Exporter) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

func (e *Exporter) sniffer() *binary.Sniffer {
	if e.Sniffer == nil {
		return &binary.Sniffer{Logger: e.Logger}
	}
	return e.Sniffer
}

func (e *Exporter) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
