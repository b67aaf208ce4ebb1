package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/omnigate/pkg/cli"
	"github.com/newtron-network/omnigate/pkg/hostkeys"
)

var hostkeysCmd = &cobra.Command{
	Use:   "hostkeys",
	Short: "Inspect and prune pinned SSH host keys",
	Long: `Inspect and prune the known_hosts file the gateway pins switch keys in.

When a switch is replaced its key changes and strict checking rejects it.
Remove the old entry; the next connection pins the new key.

Examples:
  omnigate hostkeys list
  omnigate hostkeys remove 10.1.0.1`,
}

// hostkeyInfo is the JSON shape of one known_hosts entry
type hostkeyInfo struct {
	Hosts       []string `json:"hosts"`
	Type        string   `json:"type"`
	Fingerprint string   `json:"fingerprint"`
	Marker      string   `json:"marker,omitempty"`
	Line        int      `json:"line"`
}

var hostkeysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pinned host keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := hostkeys.Open(app.cfg.SSH.KnownHostsFile)
		if err != nil {
			return err
		}
		records, err := store.Records()
		if err != nil {
			return fmt.Errorf("reading %s: %w", store.Path(), err)
		}

		infos := make([]hostkeyInfo, 0, len(records))
		for _, r := range records {
			infos = append(infos, hostkeyInfo{
				Hosts:       r.Hosts,
				Type:        r.Key.Type(),
				Fingerprint: r.Fingerprint(),
				Marker:      r.Marker,
				Line:        r.Line,
			})
		}
		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(infos)
		}

		if len(infos) == 0 {
			fmt.Printf("No host keys in %s\n", store.Path())
			return nil
		}
		t := cli.NewTable("LINE", "HOSTS", "TYPE", "FINGERPRINT")
		for _, info := range infos {
			hosts := strings.Join(info.Hosts, ",")
			if info.Marker != "" {
				hosts = cli.Red(info.Marker) + " " + hosts
			}
			t.Row(strconv.Itoa(info.Line), hosts, info.Type, info.Fingerprint)
		}
		t.Flush()
		return nil
	},
}

var hostkeysRemoveCmd = &cobra.Command{
	Use:   "remove <host>",
	Short: "Remove the pinned key for a host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := hostkeys.Open(app.cfg.SSH.KnownHostsFile)
		if err != nil {
			return err
		}
		removed, err := store.Remove(args[0])
		if err != nil {
			return fmt.Errorf("removing %s: %w", args[0], err)
		}
		if !removed {
			fmt.Printf("No key pinned for %s\n", args[0])
			return nil
		}
		fmt.Printf("Removed %s from %s\n", args[0], store.Path())
		return nil
	},
}

func init() {
	addOutputFlags(hostkeysListCmd)
	hostkeysCmd.AddCommand(hostkeysListCmd, hostkeysRemoveCmd)
}
