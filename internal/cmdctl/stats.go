package cmdctl

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runger/suggestengine/internal/ctlclient"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "show the daemon's active session count and source ranking",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	client := ctlclient.New(socketPath())

	sessions, err := client.Stats(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("active sessions: %d\n", sessions["active_sessions"])

	ranking, err := client.Ranking(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println("source ranking:")
	for i, id := range ranking {
		fmt.Printf("  %d. %s\n", i+1, id)
	}
	return nil
}
