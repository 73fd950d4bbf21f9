package cmd

import (
	"newsportal/bootstrap"
	"newsportal/modules"
	"newsportal/resources"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRoutesCmd creates the 'routes' subcommand. Routes are registered against
// unbound resources, so no backend needs to be reachable.
func newRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the routes registered by the default modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			reg, err := modules.NewRegistry(modules.Default()...)
			if err != nil {
				return err
			}
			router := mux.NewRouter()
			if err := reg.RegisterAll(router, resources.NewSet(cfg, zap.NewNop().Sugar())); err != nil {
				return err
			}

			routes := bootstrap.ListRoutes(router)
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), routes)
			}
			renderRoutes(cmd.OutOrStdout(), routes)
			return nil
		},
	}
}
