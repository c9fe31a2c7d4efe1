// Package pipeline provides the site build pipeline for d2site.
//
// This package turns a directory of markdown content into HTML fragments.
// Each document goes through the same stages, whether it comes from a full
// build, the file watcher or the preview server:
//
//  1. Split: separate the frontmatter (YAML or TOML) from the body
//  2. Transform: parse the body and replace d2 blocks with rendered diagrams
//  3. Render: write the document tree as HTML
//
// Diagram failures never fail a document: they become error fragments in
// the page. Read, frontmatter and write failures do.
//
// # Usage
//
//	runner := pipeline.NewRunner(transpiler, logger)
//	result, err := runner.Build(ctx, pipeline.Options{
//	    ContentDir: "content",
//	    OutDir:     "dist",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Stats)
//
// Render a single document:
//
//	doc, err := runner.RenderDocument(ctx, "blog/post.md", content)
package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/matzehuels/d2site/pkg/d2"
	"github.com/matzehuels/d2site/pkg/errors"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultContentDir is the markdown source directory.
	DefaultContentDir = "content"

	// DefaultOutDir is where HTML fragments are written.
	DefaultOutDir = "dist"

	// DefaultWorkers is the number of documents converted concurrently.
	// Each document may start several renderer processes in sequence.
	DefaultWorkers = 4
)

// MarkdownExtensions is the set of file extensions treated as content.
var MarkdownExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
}

// IsMarkdown reports whether path has a content file extension.
func IsMarkdown(path string) bool {
	return MarkdownExtensions[strings.ToLower(filepath.Ext(path))]
}

// OutputPath maps a content-relative markdown path to its HTML path.
func OutputPath(rel string) string {
	return strings.TrimSuffix(rel, filepath.Ext(rel)) + ".html"
}

// =============================================================================
// Options - Build Configuration
// =============================================================================

// Options contains the configuration for a site build.
type Options struct {
	ContentDir    string
	OutDir        string
	Workers       int
	IncludeDrafts bool
}

// ValidateAndSetDefaults fills zero values and rejects unusable settings.
func (o *Options) ValidateAndSetDefaults() error {
	if o.ContentDir == "" {
		o.ContentDir = DefaultContentDir
	}
	if o.OutDir == "" {
		o.OutDir = DefaultOutDir
	}
	if o.Workers == 0 {
		o.Workers = DefaultWorkers
	}
	if o.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "workers must be positive, got %d", o.Workers)
	}

	content, err := filepath.Abs(o.ContentDir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "content dir %s", o.ContentDir)
	}
	out, err := filepath.Abs(o.OutDir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "out dir %s", o.OutDir)
	}
	if content == out {
		return errors.New(errors.ErrCodeInvalidConfig, "content dir and out dir must differ")
	}
	return nil
}

// =============================================================================
// Results
// =============================================================================

// Document is one converted content file.
type Document struct {
	Path        string // content-relative source path
	Frontmatter Frontmatter
	HTML        []byte
	Stats       d2.Stats
}

// Result contains the outcome of a site build.
type Result struct {
	Documents []string // content-relative paths written
	Skipped   []string // drafts left out
	Stats     Stats
}

// Stats contains build statistics.
type Stats struct {
	Documents int
	Skipped   int
	Diagrams  d2.Stats
	Duration  time.Duration
}

// String implements fmt.Stringer for log output.
func (s Stats) String() string {
	return fmt.Sprintf("%d documents, %d drafts skipped, %s", s.Documents, s.Skipped, s.Diagrams)
}
