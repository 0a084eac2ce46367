package main

import (
	"github.com/spf13/cobra"
)

func newServerCmd(socketPath *string) *cobra.Command {
	root := &cobra.Command{
		Use:   "server",
		Short: "Start, stop, or restart the supervised game server",
	}
	root.AddCommand(
		&cobra.Command{Use: "start", Short: "Start the supervised server", RunE: sendServerVerb(socketPath, "start")},
		&cobra.Command{Use: "stop", Short: "Stop the supervised server", RunE: sendServerVerb(socketPath, "stop")},
		&cobra.Command{Use: "restart", Short: "Restart the supervised server", RunE: sendServerVerb(socketPath, "restart")},
	)
	return root
}

func sendServerVerb(socketPath *string, verb string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return sendSystemLine(socketPath, "server "+verb)(cmd, args)
	}
}
