// Package server implements the d2site preview server.
//
// Pages are rendered on request from the content directory, so an edit is
// visible on the next reload without a build step. Rendered diagrams are
// shared through the runner's artifact cache.
//
// Routes:
//
//	GET  /healthz  liveness and version
//	POST /render   markdown body in, HTML fragment out
//	GET  /*        the content file matching the path
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/d2site/pkg/buildinfo"
	"github.com/matzehuels/d2site/pkg/errors"
	"github.com/matzehuels/d2site/pkg/pipeline"
)

// MaxRenderBody caps the markdown accepted by POST /render.
const MaxRenderBody = 1 << 20

// Server serves rendered content.
type Server struct {
	runner     *pipeline.Runner
	contentDir string
	logger     *log.Logger
	router     chi.Router
}

// New creates a preview server for contentDir.
func New(runner *pipeline.Runner, contentDir string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		runner:     runner,
		contentDir: contentDir,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/render", s.handleRender)
	r.Get("/*", s.handlePage)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
			"id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
		"build":   buildinfo.String(),
	})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRenderBody))
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "read request body"))
		return
	}

	doc, err := s.runner.RenderDocument(r.Context(), "request", body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeFragment(w, doc)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	rel, err := s.resolve(chi.URLParam(r, "*"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	doc, err := s.runner.RenderFile(r.Context(), s.contentDir, rel)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeFragment(w, doc)
}

// resolve maps a URL path onto a content file: "" is index.md, "blog/post"
// is blog/post.md, and a directory serves its index.md.
func (s *Server) resolve(urlPath string) (string, error) {
	urlPath = strings.Trim(urlPath, "/")
	if urlPath == "" {
		return "index.md", nil
	}
	if err := errors.ValidatePath(urlPath); err != nil {
		return "", err
	}
	urlPath = strings.TrimSuffix(urlPath, ".html")

	candidates := []string{urlPath + ".md", path.Join(urlPath, "index.md")}
	if pipeline.IsMarkdown(urlPath) {
		candidates = []string{urlPath}
	}
	for _, c := range candidates {
		rel := filepath.FromSlash(c)
		if info, err := os.Stat(filepath.Join(s.contentDir, rel)); err == nil && !info.IsDir() {
			return rel, nil
		}
	}
	return "", errors.New(errors.ErrCodeFileNotFound, "no content for /%s", urlPath)
}

func writeFragment(w http.ResponseWriter, doc *pipeline.Document) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if doc.Frontmatter.Title != "" {
		w.Header().Set("X-Document-Title", doc.Frontmatter.Title)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.HTML)
}

// errorResponse is the JSON body of a failed request.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, status, errorResponse{Code: string(code), Message: errors.UserMessage(err)})
}

// statusFor maps error codes onto HTTP status codes.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidPath, errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
