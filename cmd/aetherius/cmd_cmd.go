package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aetherius-core/aetherius/internal/consoleclient"
)

func newCmdCmd(socketPath *string) *cobra.Command {
	var timeout time.Duration

	c := &cobra.Command{
		Use:   "cmd [line]",
		Short: "Send one command line to the daemon and print its response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := consoleclient.Dial(*socketPath)
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Send(strings.Join(args, " "), timeout)
			if err != nil {
				return err
			}
			consoleclient.Render(resp)
			return nil
		},
	}
	c.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "how long to wait for a response")
	return c
}
