package d2

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/matzehuels/d2site/pkg/cache"
	d2errors "github.com/matzehuels/d2site/pkg/errors"
	"github.com/matzehuels/d2site/pkg/observability"
)

// DefaultLanguage is the fenced code block language that activates rendering.
const DefaultLanguage = "d2"

// Options configures a Transpiler. Zero values select defaults.
type Options struct {
	Language string                // fence language to render (default "d2")
	Cache    cache.Cache           // artifact cache (default NullCache)
	Keyer    cache.Keyer           // cache key generator (default DefaultKeyer)
	KeyOpts  cache.ArtifactKeyOpts // render options folded into cache keys
	TTL      time.Duration         // artifact lifetime (default cache.TTLArtifact)
	Logger   *log.Logger
}

// Transpiler replaces diagram code blocks with rendered diagrams.
//
// It implements parser.ASTTransformer and is normally installed through
// [Extension]. Transform never fails: every block ends up as exactly one
// [Diagram] node, either rendered or carrying the error. A Transpiler holds
// no per-document state and may be shared by concurrent parsers.
type Transpiler struct {
	language []byte
	renderer Renderer
	cache    cache.Cache
	keyer    cache.Keyer
	keyOpts  cache.ArtifactKeyOpts
	ttl      time.Duration
	logger   *log.Logger
}

// New creates a Transpiler that renders blocks with r.
func New(r Renderer, opts Options) *Transpiler {
	t := &Transpiler{
		language: []byte(opts.Language),
		renderer: r,
		cache:    opts.Cache,
		keyer:    opts.Keyer,
		keyOpts:  opts.KeyOpts,
		ttl:      opts.TTL,
		logger:   opts.Logger,
	}
	if len(t.language) == 0 {
		t.language = []byte(DefaultLanguage)
	}
	if t.cache == nil {
		t.cache = cache.NewNullCache()
	}
	if t.keyer == nil {
		t.keyer = cache.NewDefaultKeyer()
	}
	if t.keyOpts.Format == "" {
		t.keyOpts.Format = "svg"
	}
	if t.ttl == 0 {
		t.ttl = cache.TTLArtifact
	}
	if t.logger == nil {
		t.logger = log.Default()
	}
	return t
}

// Language returns the fence language this transpiler renders.
func (t *Transpiler) Language() string { return string(t.language) }

// Stats counts the diagram blocks handled in one transform pass.
type Stats struct {
	Blocks int // diagram blocks replaced
	Failed int // blocks replaced by an error fragment
	Cached int // blocks served from the artifact cache
}

func (s *Stats) add(o Stats) {
	s.Blocks += o.Blocks
	s.Failed += o.Failed
	s.Cached += o.Cached
}

var (
	contextKey = parser.NewContextKey()
	statsKey   = parser.NewContextKey()
)

// WithContext attaches ctx to a goldmark parser context. Transform uses it
// for cancellation and passes it to the renderer and hooks.
func WithContext(pc parser.Context, ctx context.Context) parser.Context {
	pc.Set(contextKey, ctx)
	return pc
}

// StatsFrom returns the accumulated stats of transforms run with pc.
func StatsFrom(pc parser.Context) Stats {
	if s, ok := pc.Get(statsKey).(*Stats); ok {
		return *s
	}
	return Stats{}
}

// Transform implements parser.ASTTransformer.
func (t *Transpiler) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	ctx, ok := pc.Get(contextKey).(context.Context)
	if !ok {
		ctx = context.Background()
	}

	stats := t.TransformContext(ctx, doc, reader.Source())

	acc, ok := pc.Get(statsKey).(*Stats)
	if !ok {
		acc = &Stats{}
		pc.Set(statsKey, acc)
	}
	acc.add(stats)
}

// TransformContext replaces every diagram block under root, in document
// order, and reports what it did. source is the document text the tree's
// segments point into.
func (t *Transpiler) TransformContext(ctx context.Context, root ast.Node, source []byte) Stats {
	var blocks []*ast.FencedCodeBlock

	// Collect first; replacing nodes while walking would skip siblings.
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if bytes.Equal(fb.Language(source), t.language) {
			blocks = append(blocks, fb)
		}
		return ast.WalkSkipChildren, nil
	})

	var stats Stats
	for _, fb := range blocks {
		parent := fb.Parent()
		if parent == nil {
			continue
		}
		d := t.RenderBlock(ctx, BlockSource(fb, source))
		parent.ReplaceChild(parent, fb, d)

		stats.Blocks++
		if d.Failed() {
			stats.Failed++
		}
		if d.Cached {
			stats.Cached++
		}
	}
	return stats
}

// RenderBlock renders one diagram source and returns the node that replaces
// its code block. It never returns nil and never panics.
func (t *Transpiler) RenderBlock(ctx context.Context, source []byte) (d *Diagram) {
	hash := ContentHash(source)
	start := time.Now()
	hooks := observability.Diagram()
	hooks.OnRenderStart(ctx, hash)

	defer func() {
		if r := recover(); r != nil {
			d = NewFailedDiagram(source, d2errors.New(d2errors.ErrCodeInternal, "renderer panic: %v", r))
		}
		if d.Failed() {
			t.logger.Error("D2 rendering error", "hash", hash, "err", d.Err)
		}
		hooks.OnRenderComplete(ctx, hash, time.Since(start), d.Cached, d.Err)
	}()

	if t.renderer == nil {
		return NewFailedDiagram(source, d2errors.New(d2errors.ErrCodeRendererNotFound, "no renderer configured"))
	}

	key := t.keyer.ArtifactKey(hash, t.keyOpts)
	if svg, ok := t.lookup(ctx, key); ok {
		d = NewDiagram(source, svg)
		d.Cached = true
		return d
	}

	svg, err := t.renderer.Render(ctx, source)
	if err != nil {
		return NewFailedDiagram(source, err)
	}
	t.store(ctx, key, svg)
	return NewDiagram(source, svg)
}

func (t *Transpiler) lookup(ctx context.Context, key string) ([]byte, bool) {
	data, hit, err := t.cache.Get(ctx, key)
	if err != nil {
		t.logger.Warn("artifact cache lookup failed", "err", err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, "artifact")
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "artifact")
	return data, true
}

func (t *Transpiler) store(ctx context.Context, key string, svg []byte) {
	if err := t.cache.Set(ctx, key, svg, t.ttl); err != nil {
		t.logger.Warn("artifact cache write failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "artifact", len(svg))
}

// BlockSource returns the text of a fenced code block: its lines joined
// as written, without the final line break.
func BlockSource(fb *ast.FencedCodeBlock, source []byte) []byte {
	var buf bytes.Buffer
	lines := fb.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

// String implements fmt.Stringer for log output.
func (s Stats) String() string {
	return fmt.Sprintf("%d diagrams (%d failed, %d cached)", s.Blocks, s.Failed, s.Cached)
}

var _ parser.ASTTransformer = (*Transpiler)(nil)
