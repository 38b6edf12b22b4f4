// specchain: document chain consistency and change propagation.
//
// specchain validates the cross-references between the documents of a
// design chain (functions list → requirements → designs → test specs),
// scores documentation staleness against code churn, and drives change
// requests through impact analysis and step-by-step propagation.
//
// Usage:
//
//	specchain serve              # Start MCP server (stdio transport)
//	specchain validate           # Check the chain once
//	specchain cr create ...      # Manage change requests
//	specchain watch              # Re-validate on every document change
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/HendryAvila/specchain/internal/config"
	"github.com/HendryAvila/specchain/internal/ledger"
	"github.com/HendryAvila/specchain/internal/metrics"
	"github.com/HendryAvila/specchain/internal/server"
)

const envPrefix = "SPECCHAIN"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// settings are the process-level options, from flags or SPECCHAIN_* env.
type settings struct {
	Config       string
	Workspace    string
	LogLevel     string
	GitTimeout   time.Duration
	LedgerDir    string
	NoLedger     bool
	NoCheckpoint bool
	JSON         bool
}

// app carries what every command needs.
type app struct {
	v      *viper.Viper
	cfg    settings
	logger *slog.Logger
}

func rootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "specchain",
		Short: "Document chain consistency and change propagation",
		Long: `specchain keeps a chain of design documents consistent.

Documents reference each other through identifiers (REQ-001, SCR-003, ...).
specchain reports ids defined upstream but never used downstream (orphaned)
and ids used downstream but never defined upstream (missing), and walks
change requests through impact analysis and propagation.

Every flag can also be set through the environment with the SPECCHAIN_
prefix, e.g. SPECCHAIN_LOG_LEVEL=debug.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringP("config", "c", config.DefaultFileName, "Path to specchain.yaml")
	flags.StringP("workspace", "w", ".", "Workspace root holding workspace-docs/")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.Duration("git-timeout", server.DefaultGitTimeout, "Timeout for each git invocation")
	flags.String("ledger-dir", "", "Directory of the audit ledger (default ~/.specchain)")
	flags.Bool("no-ledger", false, "Do not record history in the audit ledger")
	flags.Bool("no-checkpoint", false, "Skip the git checkpoint before propagation")
	flags.Bool("json", false, "Print JSON instead of markdown")

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	_ = a.v.BindPFlags(flags)

	cmd.AddCommand(
		a.serveCmd(),
		a.validateCmd(),
		a.stalenessCmd(),
		a.impactCmd(),
		a.crCmd(),
		a.watchCmd(),
		a.historyCmd(),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "specchain %s\n", server.Version)
		},
	}
}

// init resolves settings and configures logging on stderr, which keeps
// stdout free for the MCP stdio channel.
func (a *app) init(stderr io.Writer) error {
	a.cfg = settings{
		Config:       a.v.GetString("config"),
		Workspace:    a.v.GetString("workspace"),
		LogLevel:     a.v.GetString("log-level"),
		GitTimeout:   a.v.GetDuration("git-timeout"),
		LedgerDir:    a.v.GetString("ledger-dir"),
		NoLedger:     a.v.GetBool("no-ledger"),
		NoCheckpoint: a.v.GetBool("no-checkpoint"),
		JSON:         a.v.GetBool("json"),
	}

	level, err := parseLevel(a.cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	root, err := filepath.Abs(a.cfg.Workspace)
	if err != nil {
		return fmt.Errorf("resolving workspace: %w", err)
	}
	a.cfg.Workspace = root
	return nil
}

// wire assembles the engine for one command.
func (a *app) wire(m *metrics.Metrics) (*server.Components, func()) {
	return server.Wire(a.options(m))
}

func (a *app) options(m *metrics.Metrics) server.Options {
	opts := server.Options{
		Logger:             a.logger,
		GitTimeout:         a.cfg.GitTimeout,
		DisableLedger:      a.cfg.NoLedger,
		DisableCheckpoints: a.cfg.NoCheckpoint,
		Metrics:            m,
	}
	if a.cfg.LedgerDir != "" {
		opts.Ledger = ledger.Config{DataDir: a.cfg.LedgerDir}
	}
	return opts
}

// configPath resolves --config against the workspace.
func (a *app) configPath() string {
	if filepath.IsAbs(a.cfg.Config) {
		return a.cfg.Config
	}
	return filepath.Join(a.cfg.Workspace, a.cfg.Config)
}

// print writes v as JSON with --json, or markdown otherwise.
func (a *app) print(w io.Writer, v any, markdown func() string) error {
	if a.cfg.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := io.WriteString(w, strings.TrimRight(markdown(), "\n")+"\n")
	return err
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q: must be one of: debug, info, warn, error", s)
}
