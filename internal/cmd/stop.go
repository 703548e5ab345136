package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runger/suggestengine/internal/daemon"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "stop the background daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !daemon.IsRunning() {
			fmt.Printf("Daemon: %snot running%s\n", colorDim, colorReset)
			return nil
		}
		if err := daemon.Stop(); err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}
		fmt.Printf("Daemon: %sstopped%s\n", colorGreen, colorReset)
		return nil
	},
}
