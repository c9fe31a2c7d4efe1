package pipeline

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/d2site/pkg/errors"
)

func TestSplitFrontmatter(t *testing.T) {
	date := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		content  string
		wantFM   Frontmatter
		wantBody string
	}{
		{
			name:     "no frontmatter",
			content:  "# Title\n\ntext\n",
			wantBody: "# Title\n\ntext\n",
		},
		{
			name:     "yaml",
			content:  "---\ntitle: Post\ndescription: About d2\ndate: 2024-03-09\ntags:\n  - go\n---\nbody\n",
			wantFM:   Frontmatter{Title: "Post", Description: "About d2", Date: date, Tags: []string{"go"}},
			wantBody: "body\n",
		},
		{
			name:     "toml",
			content:  "+++\ntitle = \"Post\"\ndraft = true\ndemoURL = \"https://example.com/demo\"\n+++\nbody\n",
			wantFM:   Frontmatter{Title: "Post", Draft: true, DemoURL: "https://example.com/demo"},
			wantBody: "body\n",
		},
		{
			name:     "crlf fences",
			content:  "---\r\ntitle: Post\r\n---\r\nbody\r\n",
			wantFM:   Frontmatter{Title: "Post"},
			wantBody: "body\r\n",
		},
		{
			name:     "redirect",
			content:  "---\nredirected: true\nredirectedUrl: https://example.com/new\n---\n",
			wantFM:   Frontmatter{Redirected: true, RedirectedURL: "https://example.com/new"},
			wantBody: "",
		},
		{
			name:     "thematic break is not frontmatter",
			content:  "text\n\n---\n\nmore\n",
			wantBody: "text\n\n---\n\nmore\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body, err := SplitFrontmatter([]byte(tt.content))
			if err != nil {
				t.Fatalf("SplitFrontmatter: %v", err)
			}
			if diff := cmp.Diff(tt.wantFM, fm); diff != "" {
				t.Errorf("frontmatter mismatch (-want +got):\n%s", diff)
			}
			if string(body) != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestSplitFrontmatterErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unterminated", "---\ntitle: x\n"},
		{"bad yaml", "---\ntitle: [x\n---\n"},
		{"bad toml", "+++\ntitle = \n+++\n"},
		{"redirect without url", "---\nredirected: true\n---\n"},
		{"unsafe repo url", "---\nrepoURL: javascript:alert(1)\n---\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := SplitFrontmatter([]byte(tt.content))
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("error = %v, want INVALID_INPUT", err)
			}
		})
	}
}
