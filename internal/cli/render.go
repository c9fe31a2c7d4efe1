package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/d2site/pkg/errors"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output  string // output file path, stdout when empty
	noCache bool   // skip the artifact cache
}

// renderCommand creates the render command, which converts a single markdown
// file without touching the rest of the site.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Convert one markdown file to an HTML fragment",
		Example: `  # Print the fragment
  d2site render docs/architecture.md

  # Read from stdin and write to a file
  cat notes.md | d2site render - -o notes.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			name := args[0]
			content, err := readInput(cmd.InOrStdin(), name)
			if err != nil {
				return err
			}

			runner, artifacts, err := c.newRunner(ctx, opts.noCache)
			if err != nil {
				return err
			}
			defer artifacts.Close()

			prog := newProgress(c.Logger)
			doc, err := runner.RenderDocument(ctx, name, content)
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Rendered %s", doc.Stats))

			if opts.output == "" {
				_, err := cmd.OutOrStdout().Write(doc.HTML)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(opts.output), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(opts.output, doc.HTML, 0o644); err != nil {
				return err
			}
			c.printSuccess("Rendered %s", name)
			c.printFile(opts.output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "render every diagram, ignoring the cache")

	return cmd
}

// readInput reads a named file, or stdin when name is "-".
func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	content, err := os.ReadFile(name)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "%s", name)
	}
	return content, err
}
