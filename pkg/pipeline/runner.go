package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/d2site/pkg/d2"
	"github.com/matzehuels/d2site/pkg/errors"
	"github.com/matzehuels/d2site/pkg/observability"
)

// Runner converts content files with a shared transpiler.
//
// The Runner holds no per-build state. Multiple goroutines can safely use
// the same Runner, which is how Build fans documents out to its workers and
// how the preview server handles concurrent requests.
type Runner struct {
	Transpiler *d2.Transpiler
	Markdown   goldmark.Markdown
	Logger     *log.Logger
}

// NewRunner creates a runner whose markdown processor has GitHub flavored
// markdown and the diagram extension for t installed.
// If logger is nil, log.Default() is used.
func NewRunner(t *d2.Transpiler, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM, d2.NewExtension(t)),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	return &Runner{
		Transpiler: t,
		Markdown:   md,
		Logger:     logger,
	}
}

// RenderDocument converts one content file. path is only used for
// reporting. The returned error covers frontmatter and markdown failures;
// diagram failures are embedded in the HTML and counted in Document.Stats.
func (r *Runner) RenderDocument(ctx context.Context, path string, content []byte) (doc *Document, err error) {
	start := time.Now()
	hooks := observability.Document()
	hooks.OnDocumentStart(ctx, path)
	defer func() {
		diagrams := 0
		if doc != nil {
			diagrams = doc.Stats.Blocks
		}
		hooks.OnDocumentComplete(ctx, path, diagrams, time.Since(start), err)
	}()

	fm, body, err := SplitFrontmatter(content)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "%s", path)
	}

	pc := d2.WithContext(parser.NewContext(), ctx)
	var buf bytes.Buffer
	if err := r.Markdown.Convert(body, &buf, parser.WithContext(pc)); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "convert %s", path)
	}

	doc = &Document{
		Path:        path,
		Frontmatter: fm,
		HTML:        buf.Bytes(),
		Stats:       d2.StatsFrom(pc),
	}
	r.Logger.Debug("rendered document", "path", path, "diagrams", doc.Stats.Blocks, "failed", doc.Stats.Failed)
	return doc, nil
}

// RenderFile reads rel from contentDir and converts it.
func (r *Runner) RenderFile(ctx context.Context, contentDir, rel string) (*Document, error) {
	content, err := os.ReadFile(filepath.Join(contentDir, rel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "%s", rel)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read %s", rel)
	}
	return r.RenderDocument(ctx, rel, content)
}

// BuildFile converts rel and writes its HTML fragment under opts.OutDir.
// Drafts are skipped unless opts.IncludeDrafts is set; skipped reports that.
// opts must have been passed through ValidateAndSetDefaults.
func (r *Runner) BuildFile(ctx context.Context, opts Options, rel string) (doc *Document, skipped bool, err error) {
	doc, err = r.RenderFile(ctx, opts.ContentDir, rel)
	if err != nil {
		return nil, false, err
	}
	// Diagrams interrupted by cancellation render as error boxes; keep the
	// previous output instead of replacing it with them.
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if doc.Frontmatter.Draft && !opts.IncludeDrafts {
		r.Logger.Debug("skipping draft", "path", rel)
		return doc, true, nil
	}

	out := filepath.Join(opts.OutDir, OutputPath(rel))
	if err := writeFile(out, doc.HTML); err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInternal, err, "write %s", out)
	}
	return doc, false, nil
}

// Build converts every content file under opts.ContentDir, opts.Workers at
// a time. A failing document does not stop the others; all document errors
// are joined into the returned error, alongside the partial result.
func (r *Runner) Build(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	start := time.Now()

	files, err := Discover(opts.ContentDir)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("discovered content", "dir", opts.ContentDir, "files", len(files), "language", r.Transpiler.Language())

	var (
		mu     sync.Mutex
		result = &Result{}
		errs   []error
	)

	g := new(errgroup.Group)
	g.SetLimit(opts.Workers)
	for _, rel := range files {
		rel := rel
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, skipped, err := r.BuildFile(ctx, opts, rel)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && ctx.Err() != nil:
				// reported once after Wait
			case err != nil:
				r.Logger.Error("document failed", "path", rel, "err", err)
				errs = append(errs, err)
			case skipped:
				result.Skipped = append(result.Skipped, rel)
			default:
				result.Documents = append(result.Documents, rel)
				result.Stats.Diagrams.Blocks += doc.Stats.Blocks
				result.Stats.Diagrams.Failed += doc.Stats.Failed
				result.Stats.Diagrams.Cached += doc.Stats.Cached
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.Sort(result.Documents)
	slices.Sort(result.Skipped)
	result.Stats.Documents = len(result.Documents)
	result.Stats.Skipped = len(result.Skipped)
	result.Stats.Duration = time.Since(start)

	r.Logger.Info("built site", "documents", result.Stats.Documents, "diagrams", result.Stats.Diagrams.Blocks,
		"failed", result.Stats.Diagrams.Failed, "duration", result.Stats.Duration.Round(time.Millisecond))

	return result, stderrors.Join(errs...)
}

// Discover returns the content-relative paths of all markdown files under
// dir, in lexical order. Hidden directories such as the renderer scratch
// directory are not descended into.
func Discover(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsMarkdown(path) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "content dir %s", dir)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "walk %s", dir)
	}
	return files, nil
}

// writeFile writes data through a temp file and rename, so a watcher or
// server never sees a half-written fragment.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
