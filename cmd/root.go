// Package cmd provides the newsportal command-line interface.
package cmd

import (
	"os"

	"newsportal/bootstrap"
	"newsportal/config"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags
var (
	envName    string
	configFile string
	outputJSON bool
	noColor    bool
	quiet      bool
)

// defaultEnvironment is NEWSPORTAL_ENV, or development when unset
func defaultEnvironment() string {
	if env := os.Getenv(config.EnvVar); env != "" {
		return env
	}
	return config.Development
}

// NewRootCmd creates the root command with all subcommands
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "newsportal",
		Short: "News portal application server",
		Long: `Assemble and run the news portal.

The environment selects one of the registered configurations (development,
production, testing). Values can be overlaid by a YAML file and by
NEWSPORTAL_* environment variables; a .env file in the working directory is
loaded first when present.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	root.PersistentFlags().StringVarP(&envName, "env", "e", defaultEnvironment(), "Configuration environment name")
	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML file overlaid on the environment configuration")
	root.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newRoutesCmd())
	root.AddCommand(newHistoryCmd())

	return root
}

// Execute loads .env and runs the root command
func Execute() error {
	// .env is optional
	_ = godotenv.Load()
	return NewRootCmd().Execute()
}

func loadOptions() []config.LoadOption {
	if configFile == "" {
		return nil
	}
	return []config.LoadOption{config.WithFile(configFile)}
}

func appOptions() []bootstrap.Option {
	if configFile == "" {
		return nil
	}
	return []bootstrap.Option{bootstrap.WithConfigFile(configFile)}
}

func loadConfig() (*config.Config, error) {
	return config.Load(envName, loadOptions()...)
}

// PrintError reports a fatal command error on stderr
func PrintError(err error) {
	errorColor.Fprintf(os.Stderr, "Error: %v\n", err)
}
