// Package cli implements the d2site command-line interface.
//
// This package provides commands for building a markdown site whose fenced
// d2 blocks are rendered to inline SVG, previewing it, and managing the
// diagram cache. The CLI is built using cobra and supports verbose logging
// via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - build: Convert the content directory, optionally watching for changes
//   - render: Convert a single markdown file
//   - serve: Render content on request for preview
//   - doctor: Check that the d2 renderer is installed and working
//   - cache: Manage the rendered diagram cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context so the preview server's request logs share
// the command's level and format.
//
// # Example
//
//	import "github.com/matzehuels/d2site/internal/cli"
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    if err := c.RootCommand().Execute(); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/d2site/pkg/observability"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
// It is safe for sequential use by a single goroutine; concurrent calls to done will race.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as start.
// The returned progress should call done when the operation completes.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// The duration is rounded to the nearest millisecond.
// Example output: "Rendered 3 diagrams (0 failed, 1 cached) (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// ctxKey is the type for context keys used in this package.
// Using a distinct type prevents collisions with other packages.
type ctxKey int

// loggerKey is the context key for storing a logger.
const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
// The logger can be retrieved later with loggerFromContext.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx.
// If no logger is attached, it returns log.Default().
// This ensures commands always have a valid logger even if context setup fails.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// traceHooks logs diagram renders and artifact cache traffic at debug level.
// It is registered for --verbose runs only.
type traceHooks struct {
	logger *log.Logger
}

func (h traceHooks) OnRenderStart(_ context.Context, hash string) {
	h.logger.Debug("render start", "hash", hash)
}

func (h traceHooks) OnRenderComplete(_ context.Context, hash string, d time.Duration, cached bool, err error) {
	if err != nil {
		h.logger.Debug("render failed", "hash", hash, "duration", d.Round(time.Millisecond), "err", err)
		return
	}
	h.logger.Debug("render done", "hash", hash, "duration", d.Round(time.Millisecond), "cached", cached)
}

func (h traceHooks) OnCacheHit(_ context.Context, kind string)  { h.logger.Debug("cache hit", "kind", kind) }
func (h traceHooks) OnCacheMiss(_ context.Context, kind string) { h.logger.Debug("cache miss", "kind", kind) }

func (h traceHooks) OnCacheSet(_ context.Context, kind string, size int) {
	h.logger.Debug("cache set", "kind", kind, "bytes", size)
}

// registerTraceHooks installs traceHooks when l logs at debug level.
func registerTraceHooks(l *log.Logger) {
	if l.GetLevel() > log.DebugLevel {
		return
	}
	h := traceHooks{logger: l}
	observability.SetDiagramHooks(h)
	observability.SetCacheHooks(h)
}
