package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/specchain/internal/ledger"
)

func (a *app) historyCmd() *cobra.Command {
	var (
		crID  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show change request transitions and validation runs",
		Long: `Read the audit ledger. With --cr, list that change request's transitions
oldest first; otherwise list the latest transitions and validation runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.NoLedger {
				return errors.New("history needs the audit ledger; drop --no-ledger")
			}
			c, cleanup := a.wire(nil)
			defer cleanup()
			if c.Ledger == nil {
				return errors.New("audit ledger unavailable, see the warning above")
			}

			events, err := c.Ledger.Events(crID, limit)
			if err != nil {
				return err
			}
			var runs []ledger.ValidationRun
			if crID == "" {
				if runs, err = c.Ledger.RecentRuns(limit); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if a.cfg.JSON {
				return a.print(out, map[string]any{"events": events, "validation_runs": runs}, nil)
			}
			writeEvents(out, events)
			if crID == "" {
				fmt.Fprintln(out)
				writeRuns(out, runs)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&crID, "cr", "", "Only transitions of this change request")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows per table (default 20)")
	return cmd
}

func writeEvents(out io.Writer, events []ledger.Event) {
	if len(events) == 0 {
		fmt.Fprintln(out, "No transitions recorded.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tCR\tFROM\tTO\tREASON")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.CreatedAt, e.CRID, e.FromStatus, e.ToStatus, e.Reason)
	}
	_ = tw.Flush()
}

func writeRuns(out io.Writer, runs []ledger.ValidationRun) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No validation runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tCONFIG\tDOCS\tORPHANED\tMISSING\tSTALE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n", r.CreatedAt, r.ConfigPath, r.Documents, r.OrphanedIDs, r.MissingIDs, r.StalePairs)
	}
	_ = tw.Flush()
}
