// Omnigate - policy-gated SSH tool gateway for OmniSwitch devices
//
// Omnigate exposes a fixed catalog of diagnostic operations as MCP tools.
// Every command sent to a switch passes the allow/deny policy first, runs
// over SSH with the credential resolved for that host, and comes back as
// a structured record.
//
// Examples:
//
//	omnigate serve                                        # MCP endpoint
//	omnigate tools                                        # List operations
//	omnigate invoke aos.diag.poe host=10.1.0.1 slot=1     # One-shot call
//	omnigate hostkeys list                                # Pinned host keys
//	omnigate audit list --last 24h                        # Recent invocations
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/omnigate/pkg/audit"
	"github.com/newtron-network/omnigate/pkg/cli"
	"github.com/newtron-network/omnigate/pkg/config"
	"github.com/newtron-network/omnigate/pkg/credentials"
	"github.com/newtron-network/omnigate/pkg/hostkeys"
	"github.com/newtron-network/omnigate/pkg/policy"
	"github.com/newtron-network/omnigate/pkg/session"
	"github.com/newtron-network/omnigate/pkg/tools"
	"github.com/newtron-network/omnigate/pkg/transport"
	"github.com/newtron-network/omnigate/pkg/util"
	"github.com/newtron-network/omnigate/pkg/version"
)

// App holds the state shared by all subcommands
type App struct {
	configPath string
	verbose    bool
	logFormat  string
	jsonOutput bool

	cfg *config.Config
}

var app = &App{}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "omnigate",
	Short:             "Policy-gated SSH tool gateway for OmniSwitch devices",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Omnigate exposes diagnostic operations on Alcatel-Lucent OmniSwitch
devices as MCP tools. Commands are checked against the allow/deny policy
before anything is sent over SSH.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		return app.load()
	},
}

// load reads the config file and configures logging
func (a *App) load() error {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if a.configPath != "" {
		path = a.configPath
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	level := cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	if err := util.SetLogLevel(level); err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	format := cfg.Log.Format
	if a.logFormat != "" {
		format = a.logFormat
	}
	switch format {
	case "json":
		util.SetJSONFormat()
	case "text":
	default:
		return fmt.Errorf("--log-format must be text or json, got %q", format)
	}
	util.SetLogOutput(os.Stderr)

	if path == "" {
		util.Debug("No config file found, using defaults")
	} else {
		util.WithField("path", path).Debug("Loaded config")
	}
	cli.EnableColor(os.Stdout)
	return nil
}

// gateway is the assembled request path from policy to SSH
type gateway struct {
	orch     *tools.Orchestrator
	auditLog *audit.FileLogger
}

// openGateway wires config, policy, credentials, host keys, transport and
// session into a tool orchestrator. When audit.path is set, every
// invocation is also written to the audit log.
func (a *App) openGateway() (*gateway, error) {
	cfg := a.cfg
	pol, err := policy.New(cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	resolver, err := credentials.NewResolver(cfg.Auth, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	if !resolver.HasGlobal() && len(resolver.Zones()) == 0 {
		util.Warn("No credentials configured; every request will fail with no usable credentials")
	}

	store, err := hostkeys.Open(cfg.SSH.KnownHostsFile)
	if err != nil {
		return nil, err
	}
	tcfg, err := transport.FromConfig(cfg.SSH, store.Callback(cfg.SSH.Strict()), os.LookupEnv)
	if err != nil {
		return nil, err
	}
	runner := session.New(resolver, transport.New(tcfg))

	gw := &gateway{}
	var opts []tools.Option
	if cfg.Audit.Path != "" {
		gw.auditLog, err = openAudit(cfg.Audit)
		if err != nil {
			return nil, err
		}
		audit.SetDefaultLogger(gw.auditLog)
		opts = append(opts, tools.WithObserver(audit.Observer(tools.DefaultRegistry())))
	}

	gw.orch, err = tools.New(cfg, pol, runner, opts...)
	if err != nil {
		gw.Close()
		return nil, err
	}
	return gw, nil
}

// Close flushes the audit log, if one is open
func (g *gateway) Close() {
	if g.auditLog == nil {
		return
	}
	audit.SetDefaultLogger(nil)
	if err := g.auditLog.Close(); err != nil {
		util.Warnf("Closing audit log: %v", err)
	}
}

func openAudit(c config.AuditConfig) (*audit.FileLogger, error) {
	logger, err := audit.NewFileLogger(c.Path, audit.RotationConfig{
		MaxSize:    int64(c.MaxSizeMB) * 1024 * 1024,
		MaxBackups: c.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	return logger, nil
}

// addOutputFlags registers --json on commands that print structured output
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&app.jsonOutput, "json", false, "JSON output")
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "Config file (default: search "+config.EnvConfigPath+", ./"+config.FileName+", ...)")
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().StringVar(&app.logFormat, "log-format", "", "Log format: text or json (overrides log.format)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "gateway", Title: "Gateway:"},
		&cobra.Group{ID: "meta", Title: "State & Meta:"},
	)
	for _, cmd := range []*cobra.Command{serveCmd, invokeCmd, toolsCmd} {
		cmd.GroupID = "gateway"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{hostkeysCmd, auditCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version.Version == "dev" {
			fmt.Println("omnigate dev build")
			return
		}
		fmt.Printf("omnigate %s\n", version.Info())
	},
}
