package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/omnigate/pkg/cli"
	"github.com/newtron-network/omnigate/pkg/tools"
	"github.com/newtron-network/omnigate/pkg/util"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered operations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ops := tools.DefaultRegistry().Operations()
		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(describeAll(ops))
		}

		t := cli.NewTable("OPERATION", "WRITE", "DESCRIPTION")
		for _, op := range ops {
			write := ""
			if op.Write {
				write = cli.Yellow("yes")
			}
			t.Row(op.Name, write, op.Description)
		}
		t.Flush()
		return nil
	},
}

var toolsShowCmd = &cobra.Command{
	Use:   "show <operation>",
	Short: "Show the parameters of one operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, ok := tools.DefaultRegistry().Lookup(args[0])
		if !ok {
			return fmt.Errorf("operation %q: %w", args[0], util.ErrNotFound)
		}
		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(describe(op))
		}

		fmt.Println(cli.Bold(op.Name))
		fmt.Println(op.Description)
		if op.Write {
			fmt.Println(cli.Yellow("Changes device state."))
		}
		fmt.Println()

		t := cli.NewTable("PARAMETER", "TYPE", "REQUIRED", "DESCRIPTION").WithPrefix("  ")
		for _, p := range op.Params {
			required := ""
			if p.Required {
				required = "yes"
			}
			t.Row(p.Name, string(p.Type), required, p.Description)
		}
		t.Flush()
		return nil
	},
}

// toolInfo is the JSON shape of an operation
type toolInfo struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Write       bool          `json:"write,omitempty"`
	Params      []tools.Param `json:"params"`
}

func describe(op *tools.Operation) toolInfo {
	return toolInfo{Name: op.Name, Description: op.Description, Write: op.Write, Params: op.Params}
}

func describeAll(ops []*tools.Operation) []toolInfo {
	out := make([]toolInfo, 0, len(ops))
	for _, op := range ops {
		out = append(out, describe(op))
	}
	return out
}

func init() {
	addOutputFlags(toolsCmd)
	addOutputFlags(toolsShowCmd)
	toolsCmd.AddCommand(toolsShowCmd)
}
