package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/orderflow-io/orderflow/cli/styles"
	"github.com/orderflow-io/orderflow/cli/ui"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println()
			fmt.Println(ui.SimpleBanner())
			fmt.Println()

			fmt.Println(styles.FormatKeyValue("Version", version))
			fmt.Println(styles.FormatKeyValue("Commit", commit))
			fmt.Println(styles.FormatKeyValue("Built", date))
			fmt.Println(styles.FormatKeyValue("Go", runtime.Version()))
			fmt.Println(styles.FormatKeyValue("OS/Arch", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)))

			return nil
		},
	}
}
