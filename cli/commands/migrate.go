package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orderflow-io/orderflow/cli/styles"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the event store and saga schemas",
		Long: `Create the events, snapshots, and sagas tables in the configured
database. Safe to run repeatedly; existing tables are left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if env.Config.Database.Driver == "memory" {
				fmt.Println(styles.FormatInfo("Memory driver needs no migrations"))
				return nil
			}

			if err := env.Store.Initialize(cmd.Context()); err != nil {
				return fmt.Errorf("failed to create event store schema: %w", err)
			}
			fmt.Println(styles.FormatSuccess("Event store schema ready"))

			if init, ok := env.SagaStore.(interface{ Initialize(context.Context) error }); ok {
				if err := init.Initialize(cmd.Context()); err != nil {
					return fmt.Errorf("failed to create saga schema: %w", err)
				}
				fmt.Println(styles.FormatSuccess("Saga schema ready"))
			}

			return nil
		},
	}
}
