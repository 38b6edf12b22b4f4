package propagation

import (
	"fmt"
	"strings"

	"github.com/HendryAvila/specchain/internal/chain"
	"github.com/HendryAvila/specchain/internal/changes"
	"github.com/HendryAvila/specchain/internal/impact"
)

var stepMarker = map[changes.StepStatus]string{
	changes.StepPending: "⬜",
	changes.StepDone:    "✅",
}

// RenderMarkdown formats the result of any action for humans.
func RenderMarkdown(res *Result) string {
	var b strings.Builder

	switch res.Action {
	case ActionList:
		renderList(&b, res.ChangeRequests)
		return b.String()
	case ActionSimulate:
		b.WriteString("# Impact Simulation (dry run)\n\n")
		b.WriteString("Nothing was written.\n\n")
		if res.Impact != nil {
			b.WriteString(strings.TrimPrefix(impact.RenderMarkdown(res.Impact), "# Impact Analysis\n\n"))
			b.WriteString("\n")
		}
		if len(res.Steps) > 0 {
			b.WriteString("\n## Propagation Plan\n\n")
			renderSteps(&b, res.Steps, -1)
		}
		return b.String()
	}

	cr := res.CR
	if cr == nil {
		fmt.Fprintf(&b, "# %s\n\nNo change request returned.\n", res.Action)
		return b.String()
	}

	fmt.Fprintf(&b, "# Change Request %s\n\n", cr.ID)
	fmt.Fprintf(&b, "**Status:** %s\n", cr.Status)
	fmt.Fprintf(&b, "**Origin:** %s\n", cr.OriginDoc)
	fmt.Fprintf(&b, "**Changed IDs:** %s\n", listOrDash(cr.ChangedIDs))
	if cr.Description != "" {
		fmt.Fprintf(&b, "**Description:** %s\n", cr.Description)
	}
	if cr.ImpactSummary != "" {
		fmt.Fprintf(&b, "**Impact:** %s\n", cr.ImpactSummary)
	}
	b.WriteString("\n")

	if res.Checkpoint != nil {
		switch {
		case res.Checkpoint.Created:
			fmt.Fprintf(&b, "📌 Checkpoint commit `%s` created before propagation.\n\n", shortCommit(res.Checkpoint.Commit))
		case res.Checkpoint.Skipped != "":
			fmt.Fprintf(&b, "📌 No checkpoint: %s\n\n", res.Checkpoint.Skipped)
		}
	}

	if len(res.Conflicts) > 0 {
		b.WriteString("## ⚠️ Conflicts\n\n")
		for _, c := range res.Conflicts {
			fmt.Fprintf(&b, "- %s\n", c.Warning())
		}
		b.WriteString("\n")
	}

	if res.Impact != nil {
		b.WriteString(strings.Replace(impact.RenderMarkdown(res.Impact), "# Impact Analysis", "## Impact Analysis", 1))
		b.WriteString("\n")
	}

	if res.Step != nil {
		fmt.Fprintf(&b, "## Step %d/%d: %s (%s)\n\n", res.Step.Number, res.Step.Total, res.Step.DocType, res.Step.Direction)
		fmt.Fprintf(&b, "%s\n\n", res.Step.Instruction)
		if res.Step.SuggestedContent != "" {
			fmt.Fprintf(&b, "### Suggested content\n\n```markdown\n%s\n```\n\n", res.Step.SuggestedContent)
		}
	}
	if res.AllStepsComplete {
		b.WriteString("✅ **All propagation steps complete.** Run `validate` next.\n\n")
	}

	if res.Chain != nil {
		fmt.Fprintf(&b, "## Chain Validation\n\n**Issues:** %d | **Stale pairs:** %d\n\n",
			res.Chain.Issues(), len(res.Chain.StalenessWarnings))
		renderChainIssues(&b, res.Chain)
	}

	if len(cr.PropagationSteps) > 0 {
		b.WriteString("## Propagation Steps\n\n")
		renderSteps(&b, cr.PropagationSteps, cr.PropagationIndex)
	}

	if len(cr.ConflictWarnings) > 0 && len(res.Conflicts) == 0 {
		b.WriteString("## Conflict Warnings\n\n")
		for _, w := range cr.ConflictWarnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	if res.Action == ActionStatus && len(cr.History) > 0 {
		b.WriteString("## History\n\n| Status | Entered | Reason |\n|--------|---------|--------|\n")
		for _, h := range cr.History {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", h.Status, h.Entered, dashIfEmpty(h.Reason))
		}
		b.WriteString("\n")
	}

	if next := nextHint(cr); next != "" {
		fmt.Fprintf(&b, "## Next Step\n\n%s\n", next)
	}
	return b.String()
}

func renderList(b *strings.Builder, crs []changes.ChangeRequest) {
	b.WriteString("# Change Requests\n\n")
	if len(crs) == 0 {
		b.WriteString("No change requests found.\n")
		return
	}
	b.WriteString("| ID | Status | Origin | Changed IDs | Steps |\n")
	b.WriteString("|----|--------|--------|-------------|-------|\n")
	for _, cr := range crs {
		done := len(cr.PropagationSteps) - cr.PendingSteps()
		fmt.Fprintf(b, "| %s | %s | %s | %s | %d/%d |\n",
			cr.ID, cr.Status, cr.OriginDoc, listOrDash(cr.ChangedIDs), done, len(cr.PropagationSteps))
	}
}

// renderSteps lists steps; current marks the step in progress, or -1.
func renderSteps(b *strings.Builder, steps []changes.PropagationStep, current int) {
	for i, s := range steps {
		marker := stepMarker[s.Status]
		if marker == "" {
			marker = "⬜"
		}
		if i == current && s.Status != changes.StepDone {
			marker = "🔄"
		}
		fmt.Fprintf(b, "%d. %s %s (%s)", i+1, marker, s.DocType, s.Direction)
		if s.Note != "" {
			fmt.Fprintf(b, ": %s", s.Note)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func renderChainIssues(b *strings.Builder, r *chain.Report) {
	for _, o := range r.OrphanedIDs {
		fmt.Fprintf(b, "- orphaned %s: defined in %s, not referenced in %s\n", o.ID, o.DefinedIn, o.ExpectedIn)
	}
	for _, m := range r.MissingIDs {
		fmt.Fprintf(b, "- missing %s: referenced in %s, not defined in %s\n", m.ID, m.ReferencedIn, m.ExpectedFrom)
	}
	if r.Issues() > 0 {
		b.WriteString("\n")
	}
}

// nextHint names the action that moves cr forward.
func nextHint(cr *changes.ChangeRequest) string {
	switch cr.Status {
	case changes.StatusInitiated:
		return "Run `analyze` to compute the impact and the propagation plan."
	case changes.StatusImpactAnalyzed:
		return "Review the impact, then run `approve`."
	case changes.StatusApproved:
		return "Run `propagate_next` to start propagation."
	case changes.StatusPropagating:
		if cr.PendingSteps() > 0 {
			return "Apply the step above, then run `propagate_next` again."
		}
		return "Run `validate` to check the chain."
	case changes.StatusValidated:
		return "Run `complete` to close the change request."
	}
	return ""
}

func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}

func listOrDash(items []string) string {
	if len(items) == 0 {
		return "—"
	}
	return strings.Join(items, ", ")
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
