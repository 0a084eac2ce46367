package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/aetherius-core/aetherius/internal/arch"
	"github.com/aetherius-core/aetherius/internal/consoleclient"
)

// newComponentCmd builds the component management subtree. It is mounted
// twice under different names ("component" and "plugin") since the
// original tooling grew two names for the same concept; this CLI keeps
// both as aliases of one implementation instead of maintaining two.
func newComponentCmd(socketPath *string, use string) *cobra.Command {
	root := &cobra.Command{
		Use:   use,
		Short: "Manage loaded components",
	}
	root.AddCommand(
		componentVerbCmd(socketPath, "list", "List every discovered component", false),
		componentVerbCmd(socketPath, "info", "Show one component's detailed status", true),
		componentVerbCmd(socketPath, "load", "Load a discovered component", true),
		componentVerbCmd(socketPath, "enable", "Enable a loaded component", true),
		componentVerbCmd(socketPath, "disable", "Disable an enabled component", true),
		componentVerbCmd(socketPath, "unload", "Unload a disabled component", true),
		componentVerbCmd(socketPath, "reload", "Reload a component end to end", true),
	)
	return root
}

func componentVerbCmd(socketPath *string, verb, short string, needsName bool) *cobra.Command {
	args := cobra.ExactArgs(0)
	use := verb
	if needsName {
		args = cobra.ExactArgs(1)
		use = verb + " [name]"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, a []string) error {
			client, err := consoleclient.Dial(*socketPath)
			if err != nil {
				return err
			}
			defer client.Close()

			line := "!component " + verb
			if needsName {
				line += " " + a[0]
			}
			resp, err := client.Send(line, 5*time.Second)
			if err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("%s", resp.Error)
			}
			if verb == "list" {
				return printComponentTable(resp.Output)
			}
			fmt.Println(resp.Output)
			return nil
		},
	}
}

func printComponentTable(jsonOutput string) error {
	var summaries []arch.ComponentSummary
	if err := json.Unmarshal([]byte(jsonOutput), &summaries); err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Version", "State", "Load Order", "Web"})
	for _, c := range summaries {
		web := "no"
		if c.ProvidesWeb {
			web = "yes"
		}
		table.Append([]string{c.Name, c.Version, c.State, fmt.Sprint(c.LoadOrder), web})
	}
	table.Render()
	return nil
}
