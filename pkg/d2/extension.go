package d2

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// Extension installs a Transpiler into a goldmark instance and teaches the
// HTML renderer to emit Diagram nodes.
type Extension struct {
	Transpiler *Transpiler
}

// NewExtension creates an extension for t.
func NewExtension(t *Transpiler) *Extension {
	return &Extension{Transpiler: t}
}

// Extend implements goldmark.Extender.
func (e *Extension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithASTTransformers(
			util.Prioritized(e.Transpiler, 100),
		),
	)
	m.Renderer().AddOptions(
		renderer.WithNodeRenderers(
			util.Prioritized(&HTMLRenderer{}, 100),
		),
	)
}

// HTMLRenderer writes Diagram nodes as their markup fragment.
type HTMLRenderer struct{}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *HTMLRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindDiagram, r.renderDiagram)
}

func (r *HTMLRenderer) renderDiagram(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	d := node.(*Diagram)
	_, _ = w.Write(d.HTML())
	_ = w.WriteByte('\n')
	return ast.WalkSkipChildren, nil
}

var _ goldmark.Extender = (*Extension)(nil)
