package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/d2site/internal/server"
)

// shutdownTimeout bounds how long in-flight renders may finish on exit.
const shutdownTimeout = 10 * time.Second

// serveCommand creates the preview server command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve rendered content for preview",
		Long: `Serve renders content files on request, so edits show up on reload
without a build. Diagrams are cached across requests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				c.Config.Serve.Addr = addr
			}
			return c.runServe(cmd.Context(), noCache)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "render every diagram, ignoring the cache")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, noCache bool) error {
	runner, artifacts, err := c.newRunner(ctx, noCache)
	if err != nil {
		return err
	}
	defer artifacts.Close()

	ln, err := net.Listen("tcp", c.Config.Serve.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           server.New(runner, c.Config.Build.ContentDir, loggerFromContext(ctx)),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	c.printSuccess("Serving %s", c.Config.Build.ContentDir)
	c.printDetail("%s", StyleLink.Render("http://"+ln.Addr().String()))

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	c.printInfo("Server stopped")
	return nil
}
