package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runger/suggestengine/internal/daemon"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print suggestd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("suggestd %s\n", daemon.Version)
	},
}
