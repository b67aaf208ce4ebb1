package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/omnigate/pkg/cli"
	"github.com/newtron-network/omnigate/pkg/tools"
)

var (
	invokeSubject       string
	invokeCorrelationID string
	invokeDeadline      time.Duration
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <operation> [key=value...]",
	Short: "Run one operation and print the JSON response",
	Long: `Run one operation through the same policy, credential and SSH path the
MCP endpoint uses, and print the response envelope.

Values are passed as strings; integers and booleans are parsed per the
operation's parameter types (see 'omnigate tools show <operation>').

Examples:
  omnigate invoke aos.diag.poe host=10.1.0.1 slot=1
  omnigate invoke aos.cli.readonly host=sw-core-01 "command=show vlan"
  omnigate invoke aos.poe.restart host=10.1.0.1 port_id=1/1/12 wait_seconds=10`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}

		gw, err := app.openGateway()
		if err != nil {
			return err
		}
		defer gw.Close()

		ctx := cmd.Context()
		if invokeDeadline > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, invokeDeadline)
			defer cancel()
		}

		resp := gw.orch.Invoke(ctx, tools.Request{
			Operation: args[0],
			Args:      params,
			Context: tools.RequestContext{
				Subject:       subjectOrUser(invokeSubject),
				CorrelationID: invokeCorrelationID,
				Client:        "cli",
			},
		})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("encoding response: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s %s (%dms)\n", cli.DotPad(args[0], 40), cli.Status(resp.Status), resp.Meta.DurationMS)

		if resp.Status != tools.StatusOK {
			return fmt.Errorf("%s: %s", resp.Error.Kind, resp.Error.Message)
		}
		return nil
	},
}

// parseAssignments turns key=value words into an argument map. A repeated
// key is an error rather than last-wins.
func parseAssignments(words []string) (map[string]any, error) {
	out := make(map[string]any, len(words))
	for _, w := range words {
		key, value, ok := strings.Cut(w, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q must be key=value", w)
		}
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("argument %q given twice", key)
		}
		out[key] = value
	}
	return out, nil
}

func subjectOrUser(subject string) string {
	if subject != "" {
		return subject
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}

func init() {
	invokeCmd.Flags().StringVar(&invokeSubject, "subject", "", "Caller recorded in the audit log (default: current user)")
	invokeCmd.Flags().StringVar(&invokeCorrelationID, "correlation-id", "", "Correlation id (default: generated)")
	invokeCmd.Flags().DurationVar(&invokeDeadline, "deadline", 0, "Overall deadline for the call (e.g. 2m)")
}
