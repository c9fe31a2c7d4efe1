// Package cli implements the d2site command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/d2site/pkg/buildinfo"
	"github.com/matzehuels/d2site/pkg/cache"
	"github.com/matzehuels/d2site/pkg/config"
	"github.com/matzehuels/d2site/pkg/d2"
	"github.com/matzehuels/d2site/pkg/errors"
	"github.com/matzehuels/d2site/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "d2site"

	// cacheKeyPrefix scopes artifact keys in shared backends.
	cacheKeyPrefix = "d2site:"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config config.Config

	configPath string
	status     io.Writer
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
		status: w,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "d2site builds markdown sites with d2 diagrams",
		Long:         `d2site converts a directory of markdown into HTML fragments, rendering fenced d2 blocks into inline SVG diagrams with the d2 CLI.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.loadConfig(); err != nil {
				return err
			}
			registerTraceHooks(c.Logger)
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ./"+config.FileName+")")

	// Register all subcommands
	root.AddCommand(c.buildCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.doctorCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the config file. An explicit --config must exist; the
// default file is optional.
func (c *CLI) loadConfig() error {
	path, required := c.configPath, true
	if path == "" {
		path, required = config.FileName, false
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return err
	}
	c.Config = cfg
	c.Logger.Debug("loaded config", "path", path, "cache", cfg.Cache.Backend)
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use. The returned cache must be
// closed by the caller.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, cache.Cache, error) {
	backend := c.Config.Cache.Backend
	if noCache {
		backend = config.BackendNone
	}
	artifacts, err := c.newCache(ctx, backend)
	if err != nil {
		return nil, nil, err
	}

	cmdOpts := c.Config.CommandOptions()
	cmdOpts.Logger = c.Logger
	renderer := d2.NewCommand(cmdOpts)

	t := d2.New(renderer, d2.Options{
		Language: c.Config.D2.Language,
		Cache:    artifacts,
		Keyer:    cache.NewScopedKeyer(cache.NewDefaultKeyer(), cacheKeyPrefix),
		KeyOpts:  c.keyOpts(ctx, renderer),
		TTL:      c.Config.Cache.TTL.Duration,
		Logger:   c.Logger,
	})
	return pipeline.NewRunner(t, c.Logger), artifacts, nil
}

// keyOpts folds the renderer version and flags into artifact keys, so a d2
// upgrade or theme change never serves stale diagrams.
func (c *CLI) keyOpts(ctx context.Context, r *d2.Command) cache.ArtifactKeyOpts {
	version, err := r.Version(ctx)
	if err != nil {
		c.Logger.Debug("renderer version unavailable", "err", err)
		version = c.Config.D2.Binary
	}
	return cache.ArtifactKeyOpts{
		Renderer: version,
		Theme:    r.Theme(),
		Pad:      r.Pad(),
		Format:   "svg",
	}
}

// newCache opens the configured artifact cache backend.
func (c *CLI) newCache(ctx context.Context, backend string) (cache.Cache, error) {
	switch backend {
	case config.BackendNone:
		return cache.NewNullCache(), nil
	case config.BackendMemory:
		return cache.NewMemoryCache(), nil
	case config.BackendFile:
		dir, err := c.artifactDir()
		if err != nil {
			c.Logger.Warn("no cache directory, caching disabled", "err", err)
			return cache.NewNullCache(), nil
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeCache, err, "open cache dir %s", dir)
		}
		return fc, nil
	case config.BackendRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:   c.Config.Cache.RedisAddr,
			DB:     c.Config.Cache.RedisDB,
			Prefix: c.Config.Cache.RedisPrefix,
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeCache, err, "connect to redis at %s", c.Config.Cache.RedisAddr)
		}
		return rc, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", backend)
}

// =============================================================================
// Paths
// =============================================================================

// artifactDir returns the configured file cache directory, or the XDG one.
func (c *CLI) artifactDir() (string, error) {
	if c.Config.Cache.Dir != "" {
		return c.Config.Cache.Dir, nil
	}
	return cacheDir()
}

// cacheDir returns the cache directory using XDG standard (~/.cache/d2site/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Options Helpers
// =============================================================================

// buildOptions converts the [build] section into pipeline options.
func (c *CLI) buildOptions() pipeline.Options {
	return pipeline.Options{
		ContentDir:    c.Config.Build.ContentDir,
		OutDir:        c.Config.Build.OutDir,
		Workers:       c.Config.Build.Workers,
		IncludeDrafts: c.Config.Build.IncludeDrafts,
	}
}
