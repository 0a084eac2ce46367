package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aetherius-core/aetherius/internal/consoleclient"
)

func newSystemCmd(socketPath *string) *cobra.Command {
	root := &cobra.Command{
		Use:   "system",
		Short: "Daemon system commands (status, quit)",
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Print the supervised server's current lifecycle state",
			RunE:  sendSystemLine(socketPath, "status"),
		},
		&cobra.Command{
			Use:   "quit",
			Short: "Shut down the daemon",
			RunE:  sendSystemLine(socketPath, "quit"),
		},
	)
	return root
}

func sendSystemLine(socketPath *string, verb string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		client, err := consoleclient.Dial(*socketPath)
		if err != nil {
			return err
		}
		defer client.Close()

		resp, err := client.Send("!"+verb, 5*time.Second)
		if err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("%s", resp.Error)
		}
		fmt.Println(resp.Output)
		return nil
	}
}
