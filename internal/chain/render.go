package chain

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown formats a report for humans.
func RenderMarkdown(r *Report) string {
	var b strings.Builder

	b.WriteString("# Chain Validation Report\n\n")
	fmt.Fprintf(&b, "**Documents:** %d | **Links:** %d | **Issues:** %d | **Stale pairs:** %d\n\n",
		len(r.Documents), len(r.Links), r.Issues(), len(r.StalenessWarnings))

	if len(r.Documents) == 0 {
		b.WriteString("No chain documents found. Check the output paths in the configuration.\n")
		return b.String()
	}

	b.WriteString("## Links\n\n")
	if len(r.Links) == 0 {
		b.WriteString("No pair has both documents present.\n\n")
	} else {
		b.WriteString("| Upstream | Downstream | Defined | Orphaned | Missing |\n")
		b.WriteString("|----------|------------|---------|----------|---------|\n")
		for _, l := range r.Links {
			marker := "✅"
			if len(l.OrphanedIDs)+len(l.MissingIDs) > 0 {
				marker = "⚠️"
			}
			fmt.Fprintf(&b, "| %s %s | %s | %d | %s | %s |\n",
				marker, l.Upstream, l.Downstream, len(l.UpstreamDefined),
				listOrDash(l.OrphanedIDs), listOrDash(l.MissingIDs))
		}
		b.WriteString("\n")
	}

	if len(r.Suggestions) > 0 {
		b.WriteString("## Suggestions\n\n")
		for _, s := range r.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}

	if len(r.StalenessWarnings) > 0 {
		b.WriteString("## Staleness\n\n")
		for _, w := range r.StalenessWarnings {
			fmt.Fprintf(&b, "- **%s → %s**: upstream %s, downstream %s\n",
				w.Upstream, w.Downstream,
				w.UpstreamModified.Format(time.DateOnly), w.DownstreamModified.Format(time.DateOnly))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Traceability Matrix\n\n")
	if len(r.TraceabilityMatrix) == 0 {
		b.WriteString("No identifiers defined.\n")
		return b.String()
	}
	b.WriteString("| ID | Defined in | Referenced by |\n")
	b.WriteString("|----|------------|---------------|\n")
	for _, e := range r.TraceabilityMatrix {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", e.ID, e.DocType, listOrDash(e.DownstreamRefs))
	}
	return b.String()
}

func listOrDash(items []string) string {
	if len(items) == 0 {
		return "—"
	}
	return strings.Join(items, ", ")
}
