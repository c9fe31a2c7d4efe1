package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/d2site/pkg/d2"
	"github.com/matzehuels/d2site/pkg/pipeline"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"index.md":           "# Home\n",
		"blog/post.md":       "---\ntitle: Post\n---\n```d2\na -> b\n```\n",
		"guide/index.md":     "# Guide\n",
		"broken.md":          "---\ntitle: x\n",
		"guide/notes.md.bak": "ignored",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	logger := log.New(os.Stderr)
	logger.SetLevel(log.FatalLevel)
	r := d2.RenderFunc(func(ctx context.Context, source []byte) ([]byte, error) {
		return []byte("<svg>" + string(source) + "</svg>"), nil
	})
	runner := pipeline.NewRunner(d2.New(r, d2.Options{Logger: logger}), logger)
	return New(runner, dir, logger)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q", body["status"])
	}
}

func TestPages(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		path     string
		status   int
		contains string
	}{
		{"root", "/", http.StatusOK, "<h1>Home</h1>"},
		{"document", "/blog/post", http.StatusOK, `data-d2-hash="927ba019f3ae2641492c9aac3ca42ec6"`},
		{"html suffix", "/blog/post.html", http.StatusOK, "<svg>a -> b</svg>"},
		{"markdown path", "/blog/post.md", http.StatusOK, "<svg>a -> b</svg>"},
		{"directory index", "/guide/", http.StatusOK, "<h1>Guide</h1>"},
		{"missing", "/nope", http.StatusNotFound, "FILE_NOT_FOUND"},
		{"traversal", "/blog/../../etc/passwd", http.StatusBadRequest, "INVALID_PATH"},
		{"broken frontmatter", "/broken", http.StatusBadRequest, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.URL.Path = tt.path
			s.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body missing %q:\n%s", tt.contains, rec.Body)
			}
		})
	}
}

func TestPageTitleHeader(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blog/post", nil))
	if got := rec.Header().Get("X-Document-Title"); got != "Post" {
		t.Errorf("X-Document-Title = %q, want Post", got)
	}
}

func TestRender(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/render", strings.NewReader("```d2\nx -> y\n```\n"))
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	want := `<div class="d2-diagram" data-d2-hash="3b6ff574f4f6b712add4bd52c0168632"><svg>x -> y</svg></div>`
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("body missing fragment:\n%s", rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestRenderTooLarge(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/render", strings.NewReader(strings.Repeat("a", MaxRenderBody+1)))
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/render", nil))
	// GET /render falls through to the page route and finds no content.
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
