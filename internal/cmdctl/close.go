package cmdctl

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runger/suggestengine/internal/ctlclient"
)

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "close the session and flush its click/impression stats",
	Args:  cobra.NoArgs,
	RunE:  runClose,
}

func runClose(cmd *cobra.Command, args []string) error {
	client := ctlclient.New(socketPath())
	if err := client.CloseSession(cmd.Context(), sessionID); err != nil {
		return err
	}
	fmt.Printf("session %q closed\n", sessionID)
	return nil
}
