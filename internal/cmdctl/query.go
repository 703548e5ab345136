package cmdctl

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runger/suggestengine/internal/ctlclient"
)

var queryJSON bool

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "send one keystroke and print the resulting suggestions",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	client := ctlclient.New(socketPath())

	result, err := client.Query(cmd.Context(), sessionID, args[0])
	if err != nil {
		return err
	}

	if queryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.IsPending {
		fmt.Println("(results pending)")
	}
	for i, s := range result.Suggestions {
		fmt.Printf("%d. %s — %s [%s]\n", i, s.Title, s.Description, s.Source)
	}
	fmt.Printf("cursor: %s\n", result.CursorID)
	return nil
}
