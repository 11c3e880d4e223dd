package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orderflow-io/orderflow/cli/styles"
	"github.com/orderflow-io/orderflow/cli/ui"
	"github.com/orderflow-io/orderflow/fulfillment"
)

// NewSagasCommand creates the sagas command group.
func NewSagasCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sagas",
		Short: "Inspect and manage fulfillment sagas",
	}

	cmd.AddCommand(newSagasListCommand(configPath))
	cmd.AddCommand(newSagasShowCommand(configPath))
	cmd.AddCommand(newSagasStatsCommand(configPath))
	cmd.AddCommand(newSagasRetryCommand(configPath))
	cmd.AddCommand(newSagasCleanupCommand(configPath))
	cmd.AddCommand(newSagasWatchCommand(configPath))

	return cmd
}

func newSagasListCommand(configPath *string) *cobra.Command {
	var (
		stateFilter string
		failedOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List fulfillment sagas",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			var states []fulfillment.State
			if failedOnly {
				states = append(states, fulfillment.StateFailed)
			} else if stateFilter != "" {
				states = append(states, fulfillment.State(strings.ToUpper(stateFilter)))
			}

			sagas, err := env.SagaStore.FindByState(cmd.Context(), states...)
			if err != nil {
				return err
			}

			if len(sagas) == 0 {
				fmt.Println(styles.FormatInfo("No sagas found"))
				return nil
			}

			for _, saga := range sagas {
				fmt.Printf("%s  %s  %s  retries=%d  %s\n",
					saga.ID,
					saga.OrderID,
					ui.StatusBadge(string(saga.State)),
					saga.RetryCount,
					styles.Muted.Render(saga.UpdatedAt.Format("2006-01-02 15:04:05")),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&stateFilter, "state", "", "Filter by saga state")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Show only failed sagas")
	return cmd
}

func newSagasShowCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <saga-id>",
		Short: "Show one saga in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			saga, err := env.Manager.GetSaga(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Println(styles.Title.Render("Saga " + saga.ID))
			fmt.Println(styles.FormatKeyValue("Order", saga.OrderID))
			fmt.Println(styles.FormatKeyValue("State", string(saga.State)))
			fmt.Println(styles.FormatKeyValue("Total", saga.TotalAmount.String()))
			fmt.Println(styles.FormatKeyValue("Retries", fmt.Sprintf("%d", saga.RetryCount)))
			fmt.Println(styles.FormatKeyValue("Created", saga.CreatedAt.Format("2006-01-02 15:04:05")))
			fmt.Println(styles.FormatKeyValue("Updated", saga.UpdatedAt.Format("2006-01-02 15:04:05")))
			if saga.CompletedAt != nil {
				fmt.Println(styles.FormatKeyValue("Completed", saga.CompletedAt.Format("2006-01-02 15:04:05")))
			}
			if saga.ReservationID != "" {
				fmt.Println(styles.FormatKeyValue("Reservation", saga.ReservationID))
			}
			if saga.PaymentTransactionID != "" {
				fmt.Println(styles.FormatKeyValue("Transaction", saga.PaymentTransactionID))
			}
			if saga.ShipmentID != "" {
				fmt.Println(styles.FormatKeyValue("Shipment", saga.ShipmentID))
			}
			if saga.LastError != "" {
				fmt.Println(styles.FormatKeyValue("Last error", saga.LastError))
			}
			if len(saga.Compensations) > 0 {
				actions := make([]string, len(saga.Compensations))
				for i, a := range saga.Compensations {
					actions[i] = string(a)
				}
				fmt.Println(styles.FormatKeyValue("Compensations", strings.Join(actions, ", ")))
			}
			return nil
		},
	}
}

func newSagasStatsCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate saga statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			stats, err := env.Manager.GetStats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Println(styles.Title.Render("Saga Statistics"))
			fmt.Println(styles.FormatKeyValue("Total", fmt.Sprintf("%d", stats.Total)))
			fmt.Println(styles.FormatKeyValue("Completed", fmt.Sprintf("%d", stats.Completed)))
			fmt.Println(styles.FormatKeyValue("Failed", fmt.Sprintf("%d", stats.Failed)))
			if stats.AverageCompletionTime > 0 {
				fmt.Println(styles.FormatKeyValue("Avg completion", stats.AverageCompletionTime.String()))
			}
			fmt.Println()
			for state, count := range stats.ByState {
				fmt.Printf("  %s %s\n", ui.StatusBadge(string(state)), styles.Muted.Render(fmt.Sprintf("%d", count)))
			}
			return nil
		},
	}
}

func newSagasRetryCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <saga-id>",
		Short: "Retry a failed saga from the beginning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.Manager.RetrySaga(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Println(styles.FormatSuccess("Saga retried: " + args[0]))
			return nil
		},
	}
}

func newSagasCleanupCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete terminal sagas older than the configured retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			removed, err := env.Manager.Cleanup(cmd.Context(), env.Config.Saga.Retention)
			if err != nil {
				return err
			}

			fmt.Println(styles.FormatSuccess(fmt.Sprintf("Removed %d sagas", removed)))
			return nil
		},
	}
}

func newSagasWatchCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch sagas in an interactive table",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			return ui.RunSagaWatch(func(ctx context.Context) ([]*fulfillment.Saga, error) {
				return env.SagaStore.FindByState(ctx)
			})
		},
	}
}
