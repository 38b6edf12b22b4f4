package impact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/specchain/internal/chain"
)

var docs = chain.Documents{
	"requirements": `Intro mentions REQ-001.

## REQ-001 Login
Users log in.

## REQ-002 Logout
Users log out.
`,
	"basic-design": `# Basic Design

## SCR-001 Login screen
Implements REQ-001, REQ-002 and REQ-003.

### SCR-002 Settings
| Field | Source |
| theme | REQ-002 |
`,
	"glossary": "REQ-003 appears here.\n",
}

var order = []string{"requirements", "basic-design"}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, SeverityLow, SeverityFor(1))
	assert.Equal(t, SeverityMedium, SeverityFor(2))
	assert.Equal(t, SeverityHigh, SeverityFor(3))
	assert.Equal(t, SeverityHigh, SeverityFor(7))
}

func TestFindAffectedSections(t *testing.T) {
	entries := FindAffectedSections([]string{"REQ-001", "REQ-002", "REQ-003"}, docs, order)
	require.Len(t, entries, 6)

	assert.Equal(t, Entry{DocType: "requirements", Section: PreambleSection, ReferencedIDs: []string{"REQ-001"}, Severity: SeverityLow}, entries[0])
	assert.Equal(t, "REQ-001 Login", entries[1].Section)
	assert.Equal(t, "REQ-002 Logout", entries[2].Section)

	assert.Equal(t, "basic-design", entries[3].DocType)
	assert.Equal(t, "SCR-001 Login screen", entries[3].Section)
	assert.Equal(t, []string{"REQ-001", "REQ-002", "REQ-003"}, entries[3].ReferencedIDs)
	assert.Equal(t, SeverityHigh, entries[3].Severity)

	assert.Equal(t, "SCR-002 Settings", entries[4].Section)
	assert.Equal(t, SeverityLow, entries[4].Severity)

	// Documents outside the chain order come last.
	assert.Equal(t, "glossary", entries[5].DocType)
}

func TestFindAffectedSections_ExactIDMatch(t *testing.T) {
	entries := FindAffectedSections([]string{"REQ-00"}, chain.Documents{"r": "REQ-001"}, nil)
	assert.Empty(t, entries)
}

func TestBuildReport(t *testing.T) {
	changed := []string{"REQ-001", "REQ-002"}
	entries := FindAffectedSections(changed, docs, order)
	r := BuildReport(changed, entries)

	assert.Equal(t, len(entries), r.TotalAffectedSections)
	assert.Equal(t, []string{"requirements", "basic-design"}, r.AffectedDocs)
	require.Len(t, r.SuggestedActions, 2)
	assert.True(t, strings.HasPrefix(r.SuggestedActions[1], "Regenerate or review basic-design"))
	assert.Contains(t, r.SuggestedActions[1], "REQ-001, REQ-002")

	g := r.DependencyGraph
	assert.True(t, strings.HasPrefix(g, "flowchart TD"))
	assert.Contains(t, g, `REQ_001["REQ-001 (changed)"]`)
	assert.Equal(t, 1, strings.Count(g, "REQ_001 --> doc_basic_design"), "one edge per id and doc")
	assert.Equal(t, 1, strings.Count(g, "REQ_002 --> doc_basic_design"))
	assert.Equal(t, 1, strings.Count(g, "REQ_001 --> doc_requirements"))

	md := RenderMarkdown(r)
	assert.Contains(t, md, "```mermaid")
	assert.Contains(t, md, "| basic-design | SCR-001 Login screen | REQ-001, REQ-002 | 🟡 medium |")
}

func TestBuildReport_Empty(t *testing.T) {
	r := BuildReport([]string{"REQ-404"}, nil)
	assert.Zero(t, r.TotalAffectedSections)
	assert.NotNil(t, r.Entries)
	assert.Empty(t, r.SuggestedActions)
	assert.Contains(t, RenderMarkdown(r), "No section references")
}
