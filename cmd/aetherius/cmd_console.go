package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aetherius-core/aetherius/internal/consoleclient"
	"github.com/aetherius-core/aetherius/internal/daemon"
)

func newConsoleCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Open an interactive console session against the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := consoleclient.Dial(*socketPath)
			if err != nil {
				return err
			}
			defer client.Close()

			client.OnEvent(func(ev daemon.Envelope) {
				consoleclient.RenderEvent(ev)
			})
			client.OnLog(func(ev daemon.Envelope) {
				consoleclient.RenderLog(ev)
			})

			fmt.Println("connected. type /command, $component args, !daemon-command, or plain text for a hint.")
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				line := scanner.Text()
				if line == "" {
					continue
				}
				resp, err := client.Send(line, 5*time.Second)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					continue
				}
				consoleclient.Render(resp)
			}
			return scanner.Err()
		},
	}
}
