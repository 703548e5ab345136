// suggestd is the suggestion engine's background daemon: it hosts one
// SessionManager behind an HTTP-over-Unix-socket service and exits after an
// idle timeout with no active sessions.
package main

import (
	"os"

	"github.com/runger/suggestengine/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
