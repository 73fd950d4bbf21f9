package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"newsportal/bootstrap"
	"newsportal/config"

	"github.com/spf13/cobra"
)

// newServeCmd creates the 'serve' subcommand
func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Assemble the application and serve HTTP",
		Long:  "Assemble the application for the selected environment and serve until SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := appOptions()
			if cmd.Flags().Changed("port") {
				opts = append(opts, bootstrap.WithConfigOverride(func(c *config.Config) {
					c.Server.Port = port
				}))
			}

			app, err := bootstrap.Assemble(ctx, envName, opts...)
			if err != nil {
				return err
			}
			defer app.Close()

			if !quiet {
				successColor.Fprintf(cmd.OutOrStdout(), "✓ Assembled %s with modules %v\n", app.Config.Name, app.Modules.Names())
				infoColor.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", app.Config.Server.Addr())
			}

			return app.Serve(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override the configured listen port")

	return cmd
}
