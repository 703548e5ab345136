// Package cmd provides the suggestd CLI: a thin cobra wrapper around
// starting, stopping, and inspecting the suggestion daemon.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "suggestd",
	Short: "federated suggestion engine daemon",
	Long: `suggestd hosts the suggestion engine's SessionManager behind a
Unix-socket HTTP service. It is normally spawned on demand by a client and
exits after an idle period with no active sessions.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
