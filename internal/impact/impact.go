// Package impact finds the document sections touched by a set of changed
// identifiers and summarizes what needs regenerating or reviewing.
package impact

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/HendryAvila/specchain/internal/chain"
	"github.com/HendryAvila/specchain/internal/ids"
)

// PreambleSection names the text before a document's first heading.
const PreambleSection = "_preamble"

var sectionHeading = regexp.MustCompile(`^(#{1,4})\s+(.+)$`)

// Severity grades how strongly a section depends on the change.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityFor maps the number of changed ids a section references to a
// severity: one is low, two is medium, three or more is high.
func SeverityFor(n int) Severity {
	switch {
	case n >= 3:
		return SeverityHigh
	case n == 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Entry is one affected section.
type Entry struct {
	DocType       string   `json:"doc_type"`
	Section       string   `json:"section"`
	ReferencedIDs []string `json:"referenced_ids"`
	Severity      Severity `json:"severity"`
}

// Report aggregates the entries of an analysis.
type Report struct {
	ChangedIDs            []string `json:"changed_ids"`
	Entries               []Entry  `json:"entries"`
	TotalAffectedSections int      `json:"total_affected_sections"`
	AffectedDocs          []string `json:"affected_docs"`
	DependencyGraph       string   `json:"dependency_graph"`
	SuggestedActions      []string `json:"suggested_actions"`
}

// FindAffectedSections splits every document at #-#### headings and
// returns the sections whose identifiers intersect changed. Documents are
// visited in order, then any remaining ones by name.
func FindAffectedSections(changed []string, docs chain.Documents, order []string) []Entry {
	want := make(map[string]bool, len(changed))
	for _, id := range changed {
		want[id] = true
	}

	entries := []Entry{}
	for _, docType := range visitOrder(docs, order) {
		for _, s := range splitSections(docs[docType]) {
			var hits []string
			for _, id := range ids.Extract(s.body).All() {
				if want[id] {
					hits = append(hits, id)
				}
			}
			if len(hits) == 0 {
				continue
			}
			entries = append(entries, Entry{
				DocType:       docType,
				Section:       s.title,
				ReferencedIDs: hits,
				Severity:      SeverityFor(len(hits)),
			})
		}
	}
	return entries
}

// BuildReport aggregates entries into a report with a Mermaid graph and
// one suggested action per affected document.
func BuildReport(changed []string, entries []Entry) *Report {
	r := &Report{
		ChangedIDs:            append([]string{}, changed...),
		Entries:               entries,
		TotalAffectedSections: len(entries),
		AffectedDocs:          []string{},
		SuggestedActions:      []string{},
	}
	if r.Entries == nil {
		r.Entries = []Entry{}
	}

	byDoc := make(map[string][]Entry)
	for _, e := range entries {
		if _, seen := byDoc[e.DocType]; !seen {
			r.AffectedDocs = append(r.AffectedDocs, e.DocType)
		}
		byDoc[e.DocType] = append(byDoc[e.DocType], e)
	}

	for _, docType := range r.AffectedDocs {
		sections := byDoc[docType]
		idSet := ids.Groups{}
		titles := make([]string, 0, len(sections))
		for _, e := range sections {
			titles = append(titles, fmt.Sprintf("%q", e.Section))
			for _, id := range e.ReferencedIDs {
				idSet.Add(id)
			}
		}
		r.SuggestedActions = append(r.SuggestedActions,
			fmt.Sprintf("Regenerate or review %s: sections %s reference %s",
				docType, strings.Join(titles, ", "), strings.Join(idSet.All(), ", ")))
	}

	r.DependencyGraph = dependencyGraph(changed, entries)
	return r
}

// dependencyGraph renders one edge per (changed id, affected doc type).
func dependencyGraph(changed []string, entries []Entry) string {
	lines := []string{"flowchart TD"}
	for _, id := range changed {
		lines = append(lines, fmt.Sprintf("  %s[\"%s (changed)\"]", nodeID(id), id))
	}

	declared := make(map[string]bool)
	edges := make(map[string]bool)
	for _, e := range entries {
		docNode := nodeID("doc_" + e.DocType)
		if !declared[docNode] {
			declared[docNode] = true
			lines = append(lines, fmt.Sprintf("  %s[\"%s\"]", docNode, e.DocType))
		}
		for _, id := range e.ReferencedIDs {
			edge := fmt.Sprintf("  %s --> %s", nodeID(id), docNode)
			if !edges[edge] {
				edges[edge] = true
				lines = append(lines, edge)
			}
		}
	}
	return strings.Join(lines, "\n")
}

var nonNodeChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

func nodeID(s string) string {
	return nonNodeChars.ReplaceAllString(s, "_")
}

type section struct {
	title string
	body  string
}

func splitSections(text string) []section {
	var out []section
	cur := section{title: PreambleSection}
	var body strings.Builder

	flush := func() {
		cur.body = body.String()
		if strings.TrimSpace(cur.body) != "" {
			out = append(out, cur)
		}
		body.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		if m := sectionHeading.FindStringSubmatch(line); m != nil {
			flush()
			cur = section{title: strings.TrimSpace(m[2])}
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	flush()
	return out
}

func visitOrder(docs chain.Documents, order []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, docType := range order {
		if docs.Has(docType) && !seen[docType] {
			seen[docType] = true
			out = append(out, docType)
		}
	}
	var rest []string
	for docType := range docs {
		if !seen[docType] {
			rest = append(rest, docType)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
