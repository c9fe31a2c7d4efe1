// Package pkg provides the libraries behind d2site.
//
// # Overview
//
// d2site renders fenced d2 code blocks in markdown into inline SVG diagrams
// by running the d2 CLI. The pkg directory is organized by concern:
//
//  1. [d2] - The diagram transpiler: goldmark transformer, node and renderer
//  2. [pipeline] - Site build: frontmatter, document conversion, parallel build
//  3. [cache] - Artifact caches (null, memory, file, redis) and key generation
//  4. [config] - d2site.toml loading and validation
//  5. [errors] - Coded errors and input validation
//  6. [observability] - Hooks for render, document and cache events
//
// # Architecture
//
// The data flow for one document:
//
//	markdown file
//	     ↓
//	[pipeline] split frontmatter
//	     ↓
//	goldmark parse
//	     ↓
//	[d2] replace each d2 block (cache lookup, then d2 process)
//	     ↓
//	HTML fragment
//
// # Quick Start
//
//	import (
//	    "github.com/yuin/goldmark"
//	    "github.com/matzehuels/d2site/pkg/d2"
//	)
//
//	t := d2.New(d2.NewCommand(d2.CommandOptions{}), d2.Options{})
//	md := goldmark.New(goldmark.WithExtensions(d2.NewExtension(t)))
//	err := md.Convert(source, &buf)
//
// [d2]: https://pkg.go.dev/github.com/matzehuels/d2site/pkg/d2
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/d2site/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/d2site/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/d2site/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/d2site/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/d2site/pkg/observability
package pkg
