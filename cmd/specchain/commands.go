package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/specchain/internal/chain"
	"github.com/HendryAvila/specchain/internal/config"
	"github.com/HendryAvila/specchain/internal/propagation"
	"github.com/HendryAvila/specchain/internal/staleness"
)

// errIssues is returned by --strict runs that found problems.
var errIssues = errors.New("chain has issues")

// exitCode maps command errors to process exit codes: 2 for a strict run
// that found issues, 1 for anything else.
func exitCode(err error) int {
	if errors.Is(err, errIssues) {
		return 2
	}
	return 1
}

func (a *app) validateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the document chain",
		Long: `Check every adjacent document pair for orphaned and missing ids and
report staleness warnings and the traceability matrix.

With --strict, exit with status 2 when any orphaned or missing id is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, cleanup := a.wire(nil)
			defer cleanup()

			report, err := c.Orchestrator.ValidateChain(cmd.Context(), a.cfg.Workspace, a.configPath())
			if err != nil {
				return err
			}
			if err := a.print(cmd.OutOrStdout(), report, func() string { return chain.RenderMarkdown(report) }); err != nil {
				return err
			}
			if strict && report.Issues() > 0 {
				return fmt.Errorf("%w: %d orphaned or missing ids", errIssues, report.Issues())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with status 2 when issues are found")
	return cmd
}

func (a *app) stalenessCmd() *cobra.Command {
	var (
		since     string
		threshold int
		strict    bool
	)

	cmd := &cobra.Command{
		Use:   "staleness",
		Short: "Score documentation staleness per feature",
		Long: `Score each feature of feature_file_map 0-100 from the age of its
documents and the code churn in its files since a reference point.

--since accepts "30d", a git ref, or a YYYY-MM-DD date; the default is the
latest tag, or 30 days when the repository has none.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath())
			if err != nil {
				return err
			}
			detector := staleness.NewDetector(staleness.GitOpener(a.cfg.GitTimeout, a.logger), a.logger)

			report, err := detector.Score(cmd.Context(), cfg, staleness.Options{Since: since, Threshold: threshold})
			if err != nil {
				return err
			}
			if err := a.print(cmd.OutOrStdout(), report, func() string { return staleness.RenderMarkdown(report) }); err != nil {
				return err
			}
			if strict && report.StaleCount > 0 {
				return fmt.Errorf("%w: %d stale features", errIssues, report.StaleCount)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "Reference point: Nd, a git ref, or YYYY-MM-DD")
	cmd.Flags().IntVar(&threshold, "threshold", staleness.DefaultThreshold, "Score at or above which a feature is stale")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with status 2 when any feature is stale")
	return cmd
}

func (a *app) impactCmd() *cobra.Command {
	var (
		ids              []string
		oldFile, newFile string
		origin           string
		maxDepth         int
		skip             []string
	)

	cmd := &cobra.Command{
		Use:   "impact",
		Short: "Simulate the impact of a change (dry run)",
		Long: `List every section across the chain that references the changed ids.
The ids come from --ids, or are detected by comparing --old and --new.
With --origin, the propagation plan is printed as well. Nothing is written.`,
		Example: `  specchain impact --ids REQ-001,REQ-004 --origin requirements
  specchain impact --old requirements.orig.md --new docs/requirements.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			oldContent, err := readOptional(oldFile)
			if err != nil {
				return err
			}
			newContent, err := readOptional(newFile)
			if err != nil {
				return err
			}

			c, cleanup := a.wire(nil)
			defer cleanup()

			res, err := c.Orchestrator.Dispatch(cmd.Context(), propagation.Request{
				Action:        propagation.ActionSimulate,
				WorkspaceRoot: a.cfg.Workspace,
				ConfigPath:    a.configPath(),
				OriginDoc:     origin,
				ChangedIDs:    ids,
				OldContent:    oldContent,
				NewContent:    newContent,
				MaxDepth:      maxDepth,
				SkipDocs:      skip,
			})
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), res, func() string { return propagation.RenderMarkdown(res) })
		},
	}
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "Changed identifiers, comma-separated")
	cmd.Flags().StringVar(&oldFile, "old", "", "File with the previous content of the changed document")
	cmd.Flags().StringVar(&newFile, "new", "", "File with the new content of the changed document")
	cmd.Flags().StringVar(&origin, "origin", "", "Document type the change starts from")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Hops to follow in each direction (0 = unlimited)")
	cmd.Flags().StringSliceVar(&skip, "skip", nil, "Document types to leave out of the plan")
	return cmd
}

// readOptional reads path, or returns "" when path is empty.
func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}
