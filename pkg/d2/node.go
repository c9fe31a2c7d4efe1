package d2

import (
	"bytes"
	"strconv"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/util"

	d2errors "github.com/matzehuels/d2site/pkg/errors"
)

// KindDiagram is the node kind of a rendered diagram block.
var KindDiagram = ast.NewNodeKind("D2Diagram")

// Diagram replaces a d2 fenced code block after rendering. It holds either
// the rendered SVG or the error that prevented rendering.
type Diagram struct {
	ast.BaseBlock

	Hash   string // ContentHash of Source
	Source []byte // diagram source as written in the document
	SVG    []byte // rendered image, nil on failure
	Err    error  // rendering failure, nil on success
	Cached bool   // SVG came from the artifact cache
}

// NewDiagram creates a successfully rendered diagram node.
func NewDiagram(source, svg []byte) *Diagram {
	return &Diagram{Hash: ContentHash(source), Source: source, SVG: svg}
}

// NewFailedDiagram creates a diagram node for a failed render.
func NewFailedDiagram(source []byte, err error) *Diagram {
	return &Diagram{Hash: ContentHash(source), Source: source, Err: err}
}

// Kind implements ast.Node.
func (n *Diagram) Kind() ast.NodeKind { return KindDiagram }

// IsRaw implements ast.Node.
func (n *Diagram) IsRaw() bool { return true }

// Failed reports whether rendering failed.
func (n *Diagram) Failed() bool { return n.Err != nil }

// Dump implements ast.Node.
func (n *Diagram) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Hash":   n.Hash,
		"Failed": strconv.FormatBool(n.Failed()),
		"Cached": strconv.FormatBool(n.Cached),
	}, nil)
}

// HTML returns the markup fragment that replaces the code block.
func (n *Diagram) HTML() []byte {
	if n.Failed() {
		return errorFragment(n.Source, n.Err)
	}
	return successFragment(n.Hash, n.SVG)
}

var xmlDecl = []byte("<?xml")

// successFragment wraps the SVG in a div tagged with the content hash. A
// leading XML declaration is dropped since the SVG is inlined into HTML.
func successFragment(hash string, svg []byte) []byte {
	svg = bytes.TrimSpace(svg)
	if bytes.HasPrefix(svg, xmlDecl) {
		if end := bytes.Index(svg, []byte("?>")); end >= 0 {
			svg = bytes.TrimSpace(svg[end+2:])
		}
	}

	var buf bytes.Buffer
	buf.Grow(len(svg) + 64)
	buf.WriteString(`<div class="d2-diagram" data-d2-hash="`)
	buf.WriteString(hash)
	buf.WriteString(`">`)
	buf.Write(svg)
	buf.WriteString(`</div>`)
	return buf.Bytes()
}

// errorFragment renders a visible error box. Both the message and the
// source are HTML-escaped.
func errorFragment(source []byte, err error) []byte {
	label := "D2 Diagram Error:"
	if d2errors.Is(err, d2errors.ErrCodeTimeout) {
		label = "D2 Diagram Timeout:"
	}

	var buf bytes.Buffer
	buf.WriteString("<div class=\"d2-error\">\n<strong>")
	buf.WriteString(label)
	buf.WriteString("</strong> ")
	buf.Write(util.EscapeHTML([]byte(d2errors.UserMessage(err))))
	buf.WriteString("\n<details>\n<summary>D2 Code</summary>\n<pre><code>")
	buf.Write(util.EscapeHTML(source))
	buf.WriteString("</code></pre>\n</details>\n</div>")
	return buf.Bytes()
}
