package cli

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/matzehuels/d2site/pkg/pipeline"
)

// watchDebounce groups the bursts of events editors produce on save.
const watchDebounce = 150 * time.Millisecond

// watch rebuilds changed documents until ctx is canceled, and then returns
// ctx.Err so an interrupted watch exits like any other interrupted command.
func (c *CLI) watch(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addTree(w, opts.ContentDir); err != nil {
		return err
	}
	c.printInfo("Watching %s for changes", opts.ContentDir)

	pending := make(map[string]struct{})
	timer := time.NewTimer(watchDebounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(w, ev.Name); err != nil {
						c.Logger.Warn("cannot watch directory", "path", ev.Name, "err", err)
					}
					continue
				}
			}
			if !pipeline.IsMarkdown(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				c.removeOutput(opts, ev.Name)
				delete(pending, ev.Name)
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(watchDebounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.Logger.Warn("watch error", "err", err)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			slices.Sort(paths)
			for _, p := range paths {
				c.rebuild(ctx, runner, opts, p)
			}
		}
	}
}

// rebuild converts one changed file and reports the outcome.
func (c *CLI) rebuild(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options, path string) {
	rel, err := filepath.Rel(opts.ContentDir, path)
	if err != nil {
		c.Logger.Warn("file outside content dir", "path", path)
		return
	}

	start := time.Now()
	doc, skipped, err := runner.BuildFile(ctx, opts, rel)
	switch {
	case err != nil:
		c.printError("%s: %v", rel, err)
	case skipped:
		c.printInfo("%s is a draft, skipped", rel)
	default:
		c.printSuccess("Rebuilt %s (%s)", rel, time.Since(start).Round(time.Millisecond))
		if doc.Stats.Failed > 0 {
			c.printWarning("%d of %d diagrams failed to render", doc.Stats.Failed, doc.Stats.Blocks)
		}
	}
}

// removeOutput deletes the fragment of a removed or renamed document.
func (c *CLI) removeOutput(opts pipeline.Options, path string) {
	rel, err := filepath.Rel(opts.ContentDir, path)
	if err != nil {
		return
	}
	out := filepath.Join(opts.OutDir, pipeline.OutputPath(rel))
	if err := os.Remove(out); err == nil {
		c.printInfo("Removed %s", out)
	}
}

// addTree watches dir and every non-hidden directory below it. fsnotify
// does not watch recursively on its own.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
