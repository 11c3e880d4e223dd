// orderflow is the command-line interface for the orderflow service.
//
// Usage:
//
//	orderflow <command> [flags]
//
// Commands:
//
//	init     Create an orderflow.yaml configuration file
//	migrate  Create the event store and saga schemas
//	serve    Run the command bus, event relay, and saga manager
//	sagas    Inspect and manage fulfillment sagas
//	version  Show version information
//
// Examples:
//
//	# Create a configuration file
//	orderflow init
//
//	# Create database schemas
//	orderflow migrate
//
//	# Run the service
//	orderflow serve
//
//	# Watch fulfillment sagas
//	orderflow sagas watch
package main

import (
	"os"

	"github.com/orderflow-io/orderflow/cli/commands"
)

// Build information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.BuildDate = buildDate

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
