package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"time"

	"direxpo/pkg/discovery"
	"direxpo/pkg/ignore"
	"direxpo/pkg/metrics"
	"direxpo/pkg/pathsafe"
	"direxpo/pkg/version"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
)

const (
	maxBodyBytes = 10 << 20

	// DefaultPreviewLimit caps the export size rendered by /api/preview. Larger exports
	// can still be downloaded.
	DefaultPreviewLimit = 16 << 20
)

// Server exposes a Service over HTTP.
type Server struct {
	svc      *Service
	logger   *zap.Logger
	metrics  *metrics.Metrics
	markdown goldmark.Markdown

	// PreviewLimit is the largest export, in bytes, /api/preview will render.
	PreviewLimit int64
}

// NewServer returns a Server for svc. m may be nil, in which case /metrics is not served.
func NewServer(svc *Service, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	return &Server{
		svc:          svc,
		logger:       logger,
		metrics:      m,
		markdown:     md,
		PreviewLimit: DefaultPreviewLimit,
	}
}

// Routes returns the HTTP handler serving every endpoint.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	s.handle(mux, "POST /api/run", withOriginCheck(s.handleRun))
	s.handle(mux, "GET /api/tree/children", s.handleTreeChildren)
	s.handle(mux, "GET /api/download/{filename}", s.handleDownload)
	s.handle(mux, "GET /api/preview/{filename}", s.handlePreview)
	s.handle(mux, "GET /api/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	route := pattern[strings.IndexByte(pattern, ' ')+1:]
	mux.Handle(pattern, s.withAccessLog(route, s.withRecovery(h)))
}

// TreeNode is one entry of a directory listing.
type TreeNode struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	RelPath     string `json:"relPath"`
	Size        *int64 `json:"size,omitempty"`
	HasChildren bool   `json:"hasChildren,omitempty"`
}

// TreeResponse is the body of GET /api/tree/children.
type TreeResponse struct {
	Root  string     `json:"root"`
	Rel   string     `json:"rel"`
	Nodes []TreeNode `json:"nodes"`
}

type errorResponse struct {
	Error   string      `json:"error"`
	Skipped interface{} `json:"skipped,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Options *ExportOptions `json:"options"`
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil || body.Options == nil {
		s.logger.Debug("Rejected run request body", zap.Error(err))
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: MsgMissingOptions})
		return
	}

	resp, err := s.svc.Run(r.Context(), *body.Options)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTreeChildren(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rootParam := q.Get("root")
	if rootParam == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "root parameter is required"})
		return
	}
	root, err := pathsafe.ResolveRoot(rootParam)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid path"})
		return
	}

	rel := pathsafe.ToSlash(q.Get("rel"))
	target, ok := pathsafe.ResolveWithinRoot(root, rel)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid path"})
		return
	}

	info, err := os.Stat(target)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Path does not exist"})
		return
	case err != nil:
		s.writeError(w, fmt.Errorf("failed to stat %s: %w", target, err))
		return
	case !info.IsDir():
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Path is not a directory"})
		return
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		s.writeError(w, fmt.Errorf("failed to read directory %s: %w", target, err))
		return
	}

	filter := q.Get("filter")
	if filter == "" {
		filter = discovery.FilterAll
	}
	matcher := ignore.New(ignore.ParsePatterns(q.Get("exclude"))...)
	relPrefix := strings.Trim(rel, "/")

	nodes := make([]TreeNode, 0, len(entries))
	for _, entry := range entries {
		entryRel := entry.Name()
		if relPrefix != "" {
			entryRel = relPrefix + "/" + entry.Name()
		}
		if matcher.MatchesEntry(entry.Name(), entryRel) {
			continue
		}

		switch {
		case entry.IsDir():
			nodes = append(nodes, TreeNode{Type: "dir", Name: entry.Name(), RelPath: entryRel, HasChildren: true})
		case entry.Type().IsRegular():
			if !discovery.MatchesFilter(entry.Name(), filter) {
				continue
			}
			fi, err := entry.Info()
			if err != nil {
				s.logger.Debug("Skipping unreadable entry", zap.String("path", entryRel), zap.Error(err))
				continue
			}
			size := fi.Size()
			nodes = append(nodes, TreeNode{Type: "file", Name: entry.Name(), RelPath: entryRel, Size: &size})
		}
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Type != nodes[j].Type {
			return nodes[i].Type == "dir"
		}
		li, lj := strings.ToLower(nodes[i].Name), strings.ToLower(nodes[j].Name)
		if li != lj {
			return li < lj
		}
		return nodes[i].Name < nodes[j].Name
	})

	s.writeJSON(w, http.StatusOK, TreeResponse{Root: root, Rel: rel, Nodes: nodes})
}

// openExport opens a generated document from the output directory. Only plain .md file
// names are accepted.
func (s *Server) openExport(w http.ResponseWriter, r *http.Request) (*os.File, fs.FileInfo, string, bool) {
	name := r.PathValue("filename")
	if name == "" || strings.ContainsAny(name, `/\`) || !strings.EqualFold(pathExt(name), ".md") {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid file name"})
		return nil, nil, "", false
	}
	fullPath, ok := pathsafe.ResolveWithinRoot(s.svc.OutputDir, name)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid file name"})
		return nil, nil, "", false
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "File not found"})
		} else {
			s.writeError(w, fmt.Errorf("failed to open %s: %w", name, err))
		}
		return nil, nil, "", false
	}
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		f.Close()
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "File not found"})
		return nil, nil, "", false
	}
	return f, info, name, true
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	f, info, name, ok := s.openExport(w, r)
	if !ok {
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	f, info, name, ok := s.openExport(w, r)
	if !ok {
		return
	}
	defer f.Close()

	if info.Size() > s.PreviewLimit {
		s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Export is too large to preview; download it instead"})
		return
	}
	// The file may have grown since Stat.
	source, err := io.ReadAll(io.LimitReader(f, s.PreviewLimit+1))
	if err != nil {
		s.writeError(w, fmt.Errorf("failed to read %s: %w", name, err))
		return
	}
	if int64(len(source)) > s.PreviewLimit {
		s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Export is too large to preview; download it instead"})
		return
	}

	var rendered bytes.Buffer
	if err := s.markdown.Convert(source, &rendered); err != nil {
		s.writeError(w, fmt.Errorf("failed to render %s: %w", name, err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", html.EscapeString(name))
	_, _ = w.Write(rendered.Bytes())
	_, _ = io.WriteString(w, "</body>\n</html>\n")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": version.Get(),
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		resp := errorResponse{Error: reqErr.Message}
		if reqErr.Skipped != nil {
			resp.Skipped = reqErr.Skipped
		}
		s.writeJSON(w, reqErr.Status, resp)
		return
	}
	s.logger.Error("Request failed", zap.Error(err))
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

// withRecovery turns a panic into a 500 with a JSON body.
func (s *Server) withRecovery(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("Panic while handling request",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()))
				s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprint(rec)})
			}
		}()
		next(w, r)
	}
}

// withAccessLog logs each request and records its latency under route.
func (s *Server) withAccessLog(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		rec.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.RequestDuration.WithLabelValues(route, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())
		}
		s.logger.Info("HTTP request",
			zap.String("requestId", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed))
	})
}

// withOriginCheck rejects cross-origin requests from browsers. Requests without an
// Origin header (curl, tests) pass.
func withOriginCheck(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			u, err := url.Parse(origin)
			if err != nil || !strings.EqualFold(u.Host, r.Host) {
				http.Error(w, "Cross-origin request rejected", http.StatusForbidden)
				return
			}
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func pathExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}
