// Package commands provides the CLI command implementations for orderflow.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orderflow-io/orderflow/cli/styles"
	"github.com/orderflow-io/orderflow/cli/ui"
)

// Version information (set at build time)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// NewRootCommand creates the root command for the orderflow CLI.
func NewRootCommand() *cobra.Command {
	var (
		noColor    bool
		configPath string
	)

	rootCmd := &cobra.Command{
		Use:   "orderflow",
		Short: "Event-sourced order management with saga-based fulfillment",
		Long: ui.SimpleBanner() + `

Orderflow manages e-commerce orders as event-sourced aggregates and
drives fulfillment through a compensating saga.

` + styles.Title.Render("Quick Start:") + `

  ` + styles.Code.Render("orderflow init") + `          Create a configuration file
  ` + styles.Code.Render("orderflow migrate") + `       Create database schemas
  ` + styles.Code.Render("orderflow serve") + `         Run the service
  ` + styles.Code.Render("orderflow sagas list") + `    Inspect fulfillment sagas`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				styles.DisableColors()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to orderflow.yaml")

	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewServeCommand(&configPath))
	rootCmd.AddCommand(NewSagasCommand(&configPath))
	rootCmd.AddCommand(NewMigrateCommand(&configPath))
	rootCmd.AddCommand(NewVersionCommand(Version, Commit, BuildDate))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(styles.FormatError(err.Error()))
		return err
	}
	return nil
}
