package impact

import (
	"fmt"
	"strings"
)

var severityMarker = map[Severity]string{
	SeverityHigh:   "🔴",
	SeverityMedium: "🟡",
	SeverityLow:    "🟢",
}

// RenderMarkdown formats a report for humans.
func RenderMarkdown(r *Report) string {
	var b strings.Builder
	b.WriteString("# Impact Analysis\n\n")
	fmt.Fprintf(&b, "**Changed IDs:** %s\n", strings.Join(r.ChangedIDs, ", "))
	fmt.Fprintf(&b, "**Affected sections:** %d across %d document(s)\n\n", r.TotalAffectedSections, len(r.AffectedDocs))

	if len(r.Entries) == 0 {
		b.WriteString("No section references the changed identifiers.\n")
		return b.String()
	}

	b.WriteString("## Affected Sections\n\n")
	b.WriteString("| Document | Section | IDs | Severity |\n")
	b.WriteString("|----------|---------|-----|----------|\n")
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "| %s | %s | %s | %s %s |\n",
			e.DocType, e.Section, strings.Join(e.ReferencedIDs, ", "), severityMarker[e.Severity], e.Severity)
	}

	b.WriteString("\n## Dependency Graph\n\n```mermaid\n")
	b.WriteString(r.DependencyGraph)
	b.WriteString("\n```\n\n## Suggested Actions\n\n")
	for i, a := range r.SuggestedActions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, a)
	}
	return b.String()
}
