// Package cmdctl provides the suggestctl CLI: a thin cobra client that
// exercises a running suggestd over its Unix-socket protocol (query, click,
// close, stats) the way a shell integration would drive a session.
package cmdctl

import (
	"github.com/spf13/cobra"

	"github.com/runger/suggestengine/internal/config"
	"github.com/runger/suggestengine/internal/engine/sessionid"
)

var sessionID string

var rootCmd = &cobra.Command{
	Use:   "suggestctl",
	Short: "client for the federated suggestion engine daemon",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaultID, err := sessionid.GetSessionID()
	if err != nil || defaultID == "" {
		defaultID = "suggestctl"
	}
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", defaultID, "session id to operate on; defaults to one cached per calling process")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(statsCmd)
}

func socketPath() string {
	return config.DefaultPaths().SocketFile()
}
