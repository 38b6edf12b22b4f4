package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/specchain/internal/chain"
	"github.com/HendryAvila/specchain/internal/config"
	"github.com/HendryAvila/specchain/internal/watch"
)

func (a *app) watchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-validate the chain whenever a document changes",
		Long: `Watch the directories holding chain documents and re-validate after
each burst of changes. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath())
			if err != nil {
				return err
			}

			c, cleanup := a.wire(nil)
			defer cleanup()

			validate := func(ctx context.Context) (*chain.Report, error) {
				return c.Orchestrator.ValidateChain(ctx, a.cfg.Workspace, a.configPath())
			}
			out := cmd.OutOrStdout()
			w, err := watch.New(cfg, validate, func(u watch.Update) { a.printUpdate(out, u) },
				watch.WithDebounce(debounce), watch.WithLogger(a.logger))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(out, "👀 Watching %d directories. Press Ctrl+C to stop.\n", len(w.Dirs()))
			if report, err := validate(ctx); err == nil {
				a.printUpdate(out, watch.Update{Report: report})
			}
			return w.Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before re-validating")
	return cmd
}

// printUpdate writes a one-line summary per run, with the issues listed.
func (a *app) printUpdate(out io.Writer, u watch.Update) {
	stamp := time.Now().Format(time.TimeOnly)
	if u.Err != nil {
		fmt.Fprintf(out, "[%s] ❌ validation failed: %v\n", stamp, u.Err)
		return
	}
	if a.cfg.JSON {
		_ = a.print(out, u, func() string { return "" })
		return
	}

	changed := ""
	if len(u.Changed) > 0 {
		names := make([]string, len(u.Changed))
		for i, p := range u.Changed {
			names[i] = filepath.Base(p)
		}
		changed = fmt.Sprintf(" after %d change(s): %v", len(u.Changed), names)
	}

	r := u.Report
	if r.Issues() == 0 && len(r.StalenessWarnings) == 0 {
		fmt.Fprintf(out, "[%s] ✅ chain consistent%s\n", stamp, changed)
		return
	}
	fmt.Fprintf(out, "[%s] ⚠️ %d issue(s), %d stale pair(s)%s\n", stamp, r.Issues(), len(r.StalenessWarnings), changed)
	for _, o := range r.OrphanedIDs {
		fmt.Fprintf(out, "    orphaned %s: defined in %s, not referenced in %s\n", o.ID, o.DefinedIn, o.ExpectedIn)
	}
	for _, m := range r.MissingIDs {
		fmt.Fprintf(out, "    missing %s: referenced in %s, not defined in %s\n", m.ID, m.ReferencedIn, m.ExpectedFrom)
	}
}
