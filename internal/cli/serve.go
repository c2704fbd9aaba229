package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/autofuse/internal/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the fusion API over HTTP",
		Long: `Serve the fusion API over HTTP.

  GET  /healthz
  GET  /v1/policies
  POST /v1/fuse?policy=generic&rounds=4&formats=dot,svg

The server stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr != "" {
				c.Config.Server.Addr = addr
			}

			runner, err := c.newRunner(ctx, false)
			if err != nil {
				return err
			}
			defer runner.Close()

			srv := server.New(runner, c.Config, loggerFromContext(ctx))
			return srv.ListenAndServe(ctx, c.Config.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}
