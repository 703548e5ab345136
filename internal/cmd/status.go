package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runger/suggestengine/internal/config"
	"github.com/runger/suggestengine/internal/daemon"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "show suggestd status",
	Long: `Show the current status of suggestd, including:
- Daemon status (running/stopped)
- Configuration file location
- Shortcut store location`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	paths := config.DefaultPaths()

	fmt.Printf("%ssuggestd Status%s\n", colorBold, colorReset)
	fmt.Println(strings.Repeat("-", 40))

	fmt.Printf("\n%sDaemon:%s\n", colorBold, colorReset)
	if daemon.IsRunning() {
		fmt.Printf("  Status:  %srunning%s\n", colorGreen, colorReset)
		if data, err := os.ReadFile(paths.PIDFile()); err == nil {
			fmt.Printf("  PID:     %s\n", strings.TrimSpace(string(data)))
		}
		fmt.Printf("  Socket:  %s\n", paths.SocketFile())
	} else {
		fmt.Printf("  Status:  %snot running%s\n", colorDim, colorReset)
	}

	fmt.Printf("\n%sConfiguration:%s\n", colorBold, colorReset)
	configFile := paths.ConfigFile()
	if _, err := os.Stat(configFile); err == nil {
		fmt.Printf("  File:    %s\n", configFile)
	} else {
		fmt.Printf("  File:    %s (not found, using defaults)\n", configFile)
	}

	fmt.Printf("\n%sStorage:%s\n", colorBold, colorReset)
	dbFile := paths.DatabaseFile()
	if info, err := os.Stat(dbFile); err == nil {
		fmt.Printf("  Shortcuts: %s (%s)\n", dbFile, formatSize(info.Size()))
	} else {
		fmt.Printf("  Shortcuts: %s (not created)\n", dbFile)
	}

	return nil
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
