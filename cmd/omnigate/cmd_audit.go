package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/omnigate/pkg/audit"
	"github.com/newtron-network/omnigate/pkg/cli"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View the invocation audit log",
	Long: `View the audit log of tool invocations.

Each invocation is logged with:
  - Timestamp
  - Caller and client
  - Target switch
  - Operation and the commands sent
  - Outcome and error code

The log is written only when audit.path is set in the config.

Examples:
  omnigate audit list --target 10.1.0.1:22
  omnigate audit list --last 24h
  omnigate audit list --writes --failures`,
}

var (
	auditTarget    string
	auditSubject   string
	auditOperation string
	auditLast      string
	auditLimit     int
	auditFailures  bool
	auditWrites    bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if app.cfg.Audit.Path == "" {
			return fmt.Errorf("audit logging is disabled: set audit.path in the config")
		}

		filter := audit.Filter{
			Target:      auditTarget,
			Subject:     auditSubject,
			Operation:   auditOperation,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
			WriteOnly:   auditWrites,
		}
		if auditLast != "" {
			d, err := parseSince(auditLast)
			if err != nil {
				return err
			}
			filter.StartTime = time.Now().Add(-d)
		}

		logger, err := openAudit(app.cfg.Audit)
		if err != nil {
			return err
		}
		defer logger.Close()
		events, err := logger.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(events)
		}
		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		t := cli.NewTable("TIMESTAMP", "SUBJECT", "TARGET", "OPERATION", "STATUS", "DURATION")
		for _, e := range events {
			status := cli.Green("ok")
			switch {
			case e.Partial:
				status = cli.Yellow("partial")
			case !e.Success:
				status = cli.Red(e.Code)
			}
			t.Row(
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.Subject,
				e.Target,
				e.Operation,
				status,
				strconv.FormatInt(e.DurationMS, 10)+"ms",
			)
		}
		t.Flush()
		return nil
	},
}

// parseSince accepts Go durations plus a day suffix ("7d")
func parseSince(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid duration: %s", s)
	}
	return d, nil
}

func init() {
	auditListCmd.Flags().StringVar(&auditTarget, "target", "", "Filter by target (host:port)")
	auditListCmd.Flags().StringVar(&auditSubject, "subject", "", "Filter by caller")
	auditListCmd.Flags().StringVar(&auditOperation, "operation", "", "Filter by operation")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 24h, 7d)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed invocations")
	auditListCmd.Flags().BoolVar(&auditWrites, "writes", false, "Show only state-changing operations")
	addOutputFlags(auditListCmd)

	auditCmd.AddCommand(auditListCmd)
}
