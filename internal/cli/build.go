package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/d2site/pkg/observability"
	"github.com/matzehuels/d2site/pkg/pipeline"
)

// buildOpts holds the command-line flags for the build command.
// Flags that are set override the [build] section of the config file.
type buildOpts struct {
	contentDir string
	outDir     string
	workers    int
	drafts     bool
	noCache    bool
	watch      bool
}

// buildCommand creates the build command.
func (c *CLI) buildCommand() *cobra.Command {
	var opts buildOpts

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Convert the content directory to HTML fragments",
		Long: `Build converts every markdown file in the content directory to an HTML
fragment in the output directory. Fenced d2 blocks are rendered to inline
SVG; a block that fails to render becomes an error box in the page and does
not fail the build.`,
		Example: `  # Build with the settings from d2site.toml
  d2site build

  # Rebuild changed files until interrupted
  d2site build --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("content") {
				c.Config.Build.ContentDir = opts.contentDir
			}
			if flags.Changed("out") {
				c.Config.Build.OutDir = opts.outDir
			}
			if flags.Changed("workers") {
				c.Config.Build.Workers = opts.workers
			}
			if flags.Changed("drafts") {
				c.Config.Build.IncludeDrafts = opts.drafts
			}
			if err := c.Config.Validate(); err != nil {
				return err
			}
			return c.runBuild(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.contentDir, "content", "c", "", "content directory (default from config)")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "output directory (default from config)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "j", 0, "documents converted in parallel (default from config)")
	cmd.Flags().BoolVar(&opts.drafts, "drafts", false, "include documents marked as draft")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "render every diagram, ignoring the cache")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "rebuild changed files until interrupted")

	return cmd
}

// runBuild builds the site once and optionally keeps watching.
func (c *CLI) runBuild(ctx context.Context, opts buildOpts) error {
	runner, artifacts, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer artifacts.Close()

	popts := c.buildOptions()

	result, err := c.buildOnce(ctx, runner, popts)
	if err != nil && (!opts.watch || ctx.Err() != nil) {
		return err
	}
	if result != nil {
		c.printBuildResult(result, popts.OutDir)
	}

	if !opts.watch {
		return nil
	}
	return c.watch(ctx, runner, popts)
}

// buildOnce runs a full build behind a spinner. The spinner is left out in
// verbose mode, where it would interleave with debug logs.
func (c *CLI) buildOnce(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options) (*pipeline.Result, error) {
	if c.Logger.GetLevel() <= LogDebug {
		return runner.Build(ctx, opts)
	}

	spinner := newSpinner(ctx, c.status, fmt.Sprintf("Building %s", opts.ContentDir))
	prev := observability.Document()
	observability.SetDocumentHooks(spinner)
	defer observability.SetDocumentHooks(prev)

	spinner.Start()
	result, err := runner.Build(ctx, opts)
	if err != nil {
		if spinner.Cancelled() {
			spinner.Stop()
			c.printInfo("Build interrupted after %d documents", spinner.Documents())
			return result, err
		}
		spinner.StopWithError(fmt.Sprintf("Build failed after %d documents", spinner.Documents()))
		return result, err
	}
	spinner.Stop()
	return result, nil
}
