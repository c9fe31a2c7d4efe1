// Package d2 renders fenced d2 code blocks in markdown to inline SVG.
//
// The package plugs into goldmark as an AST transformer. While a document is
// parsed, every fenced code block tagged with the diagram language is handed
// to a [Renderer] and the block is replaced in place by a [Diagram] node:
//
//	```d2
//	a -> b
//	```
//
// becomes
//
//	<div class="d2-diagram" data-d2-hash="<md5 of source>"><svg ...></svg></div>
//
// Rendering failures never fail the document. The block is replaced by a
// visible error box carrying the renderer's message and the original source:
//
//	<div class="d2-error"><strong>D2 Diagram Error:</strong> ...
//	<details><summary>D2 Code</summary><pre><code>a -> b</code></pre></details></div>
//
// # Usage
//
//	renderer := d2.NewCommand(d2.CommandOptions{Timeout: 10 * time.Second})
//	md := goldmark.New(goldmark.WithExtensions(
//	    d2.NewExtension(d2.New(renderer, d2.Options{})),
//	))
//
// The default [Command] renderer shells out to the d2 CLI; see its
// documentation for the temp file lifecycle.
package d2
