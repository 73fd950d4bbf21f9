package cmd

import (
	"fmt"

	"newsportal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newConfigCmd creates the 'config' command group
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration registry",
	}

	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered environments",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := config.Names()
			out := cmd.OutOrStdout()

			if outputJSON {
				return writeJSON(out, map[string]interface{}{
					"active":       envName,
					"environments": names,
				})
			}

			for _, name := range names {
				if name == envName {
					successColor.Fprintf(out, "* %s\n", name)
				} else {
					fmt.Fprintf(out, "  %s\n", name)
				}
			}
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			redacted := cfg.Redacted()
			out := cmd.OutOrStdout()

			if outputJSON {
				return writeJSON(out, redacted)
			}

			if !quiet {
				headerColor.Fprintf(out, "# environment: %s\n", cfg.Name)
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(redacted); err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			return enc.Close()
		},
	}
}
