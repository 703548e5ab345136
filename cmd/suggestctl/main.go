// suggestctl is a CLI client for suggestd: it drives a session's
// query/click/close protocol over the daemon's Unix socket, the way a
// shell integration would.
package main

import (
	"os"

	"github.com/runger/suggestengine/internal/cmdctl"
)

func main() {
	if err := cmdctl.Execute(); err != nil {
		os.Exit(1)
	}
}
