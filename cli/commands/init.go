package commands

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/orderflow-io/orderflow/cli/config"
	"github.com/orderflow-io/orderflow/cli/styles"
	"github.com/orderflow-io/orderflow/cli/ui"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var (
		service        string
		driver         string
		nonInteractive bool
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create an orderflow.yaml configuration file",
		Long: `Create an orderflow.yaml configuration file with service, storage,
saga, and publisher settings.

Examples:
  orderflow init                    # Initialize in current directory
  orderflow init deploy/            # Initialize in another directory
  orderflow init --driver=postgres  # Preselect the PostgreSQL driver`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			absDir, err := filepath.Abs(dir)
			if err != nil {
				return err
			}

			if config.Exists(absDir) {
				fmt.Println(styles.FormatWarning(config.ConfigFileName + " already exists in this directory"))
				return nil
			}

			fmt.Println(ui.SimpleBanner())
			fmt.Println()

			cfg := config.DefaultConfig()
			if service != "" {
				cfg.Service = service
			}
			if driver != "" {
				cfg.Database.Driver = driver
			}

			if !nonInteractive {
				form := huh.NewForm(
					huh.NewGroup(
						huh.NewInput().
							Title("Service Name").
							Description("Used in logs, metrics, and traces").
							Value(&cfg.Service),

						huh.NewSelect[string]().
							Title("Storage Driver").
							Description("Where events and sagas are stored").
							Options(
								huh.NewOption("PostgreSQL (recommended for production)", "postgres"),
								huh.NewOption("In-Memory (development only)", "memory"),
							).
							Value(&cfg.Database.Driver),

						huh.NewSelect[string]().
							Title("Event Serializer").
							Options(
								huh.NewOption("JSON", "json"),
								huh.NewOption("MessagePack", "msgpack"),
							).
							Value(&cfg.EventStore.Serializer),
					).Title("Service Configuration"),
				)

				if err := form.Run(); err != nil {
					return err
				}
			}

			if cfg.Database.Driver == "postgres" {
				cfg.Database.URL = "${DATABASE_URL}"
			}

			if err := cfg.Save(absDir); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}
			fmt.Println(styles.FormatSuccess("Created " + config.ConfigFileName))

			fmt.Println()
			if cfg.Database.Driver == "postgres" {
				fmt.Println(styles.FormatInfo("Set DATABASE_URL, then run " + styles.Code.Render("orderflow migrate")))
			}
			fmt.Println(styles.FormatInfo("Start the service with " + styles.Code.Render("orderflow serve")))
			return nil
		},
	}

	cmd.Flags().StringVarP(&service, "service", "s", "", "Service name")
	cmd.Flags().StringVarP(&driver, "driver", "d", "", "Storage driver (postgres, memory)")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Run in non-interactive mode")

	return cmd
}
