// Package cli wires the commands: evaluate the deployment module, lock
// and read state, plan, and hand the plan to the engine.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/picket-io/picket/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "picket",
	Short: "Dependency-graph infrastructure reconciliation",
	Long: `Picket converges declared infrastructure toward a desired dependency
graph. Deployments are written in PKL; picket validates the graph,
schedules independent resources concurrently, and records what it
created in versioned, lockable state.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(outputCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(versionCmd)
}
