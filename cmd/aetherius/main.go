// Command aetherius is the operator-facing CLI: one cobra tree covering
// one-shot game commands, the interactive console, component/plugin
// management, and daemon system commands, all talking to aetheriusd over
// its console socket.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var socketPath string

	root := &cobra.Command{
		Use:   "aetherius",
		Short: "Operator CLI for the aetherius game server daemon",
	}
	root.PersistentFlags().StringVar(&socketPath, "socket", defaultSocketPath(), "path to the daemon's console socket")

	root.AddCommand(
		newConsoleCmd(&socketPath),
		newCmdCmd(&socketPath),
		newComponentCmd(&socketPath, "component"),
		newComponentCmd(&socketPath, "plugin"),
		newSystemCmd(&socketPath),
		newServerCmd(&socketPath),
	)
	return root
}

func defaultSocketPath() string {
	if v := os.Getenv("AETHERIUS_SOCKET"); v != "" {
		return v
	}
	return "/tmp/aetherius/aetherius.sock"
}
