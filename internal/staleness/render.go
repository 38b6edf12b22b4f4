package staleness

import (
	"fmt"
	"strings"
)

// RenderMarkdown formats a scoring report for humans.
func RenderMarkdown(r *Report) string {
	var b strings.Builder
	b.WriteString("# Documentation Staleness\n\n")
	fmt.Fprintf(&b, "**Since:** %s | **Threshold:** %d | **Scanned:** %s\n\n", r.SinceRef, r.Threshold, r.ScanDate)
	fmt.Fprintf(&b, "%s\n", r.Summary)

	if len(r.Features) == 0 {
		return b.String()
	}

	b.WriteString("\n| Feature | Score | Files | Lines | Doc age (days) | Documents |\n")
	b.WriteString("|---------|-------|-------|-------|----------------|-----------|\n")
	for _, f := range r.Features {
		marker := "🟢"
		if f.Stale {
			marker = "🔴"
		}
		name := f.FeatureID
		if f.Label != "" {
			name = fmt.Sprintf("%s (%s)", f.FeatureID, f.Label)
		}
		fmt.Fprintf(&b, "| %s | %s %d | %d | %d | %d | %s |\n",
			name, marker, f.Score, len(f.ChangedFiles), f.LinesChanged,
			f.DaysSinceDocUpdate, strings.Join(f.AffectedDocTypes, ", "))
	}
	return b.String()
}
