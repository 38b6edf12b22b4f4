package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/specchain/internal/changes"
	"github.com/HendryAvila/specchain/internal/config"
	"github.com/HendryAvila/specchain/internal/propagation"
)

func (a *app) crCmd() *cobra.Command {
	var (
		req              propagation.Request
		oldFile, newFile string
		statusFilter     string
	)

	actions := make([]string, len(propagation.Actions))
	for i, act := range propagation.Actions {
		actions[i] = string(act)
	}

	cmd := &cobra.Command{
		Use:   "cr ACTION [CR_ID]",
		Short: "Manage change requests",
		Long: `Drive a change request through its lifecycle:

  create → analyze → approve → propagate_next (once per step) → validate → complete

Other actions: status, list, cancel, simulate.
Change requests live under <workspace>/workspace-docs/change-requests/.`,
		Example: `  specchain cr create --origin requirements --description "Add MFA" --ids REQ-001
  specchain cr analyze CR-260223-001
  specchain cr approve CR-260223-001
  specchain cr propagate_next CR-260223-001 --note "updated SCR-001"
  specchain cr list --status PROPAGATING`,
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: actions,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Action = propagation.Action(args[0])
			if err := propagation.ValidateAction(req.Action); err != nil {
				return err
			}
			if len(args) == 2 {
				req.CRID = args[1]
			}

			var err error
			if req.OldContent, err = readOptional(oldFile); err != nil {
				return err
			}
			if req.NewContent, err = readOptional(newFile); err != nil {
				return err
			}
			req.WorkspaceRoot = a.cfg.Workspace
			req.StatusFilter = changes.Status(strings.ToUpper(statusFilter))
			// propagate_next uses the config when present: the checkpoint then
			// covers the output directory and --suggest can read the origin.
			if needsConfig(req.Action) || config.Exists(a.configPath()) {
				req.ConfigPath = a.configPath()
			}

			c, cleanup := a.wire(nil)
			defer cleanup()

			res, err := c.Orchestrator.Dispatch(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), res, func() string { return propagation.RenderMarkdown(res) })
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.OriginDoc, "origin", "", "create/simulate: document type where the change originates")
	flags.StringVar(&req.Description, "description", "", "create: what changed and why")
	flags.StringSliceVar(&req.ChangedIDs, "ids", nil, "create/simulate: changed identifiers, comma-separated")
	flags.StringVar(&oldFile, "old", "", "create/simulate: file with the previous content")
	flags.StringVar(&newFile, "new", "", "create/simulate: file with the new content")
	flags.IntVar(&req.MaxDepth, "max-depth", 0, "analyze/simulate: hops to follow in each direction (0 = unlimited)")
	flags.StringSliceVar(&req.SkipDocs, "skip", nil, "analyze/simulate: document types to leave out")
	flags.StringVar(&req.Note, "note", "", "propagate_next: note recorded on the completed step")
	flags.BoolVar(&req.SuggestContent, "suggest", false, "propagate_next: print origin lines citing the changed ids")
	flags.StringVar(&statusFilter, "status", "", "list: only change requests in this status")
	flags.StringVar(&req.Reason, "reason", "", "cancel: why the change request is abandoned")
	return cmd
}

// needsConfig reports whether action cannot run without specchain.yaml.
func needsConfig(action propagation.Action) bool {
	switch action {
	case propagation.ActionAnalyze, propagation.ActionValidate, propagation.ActionSimulate:
		return true
	}
	return false
}
