// Package ids extracts typed traceability identifiers (REQ-001, SCR-003,
// API-AUTH-012, ...) from markdown documents.
//
// Everything in this package is a pure function of its input text:
// - Extract groups identifiers by prefix
// - Scan reports every occurrence with its position and kind
// - Classify splits identifiers into definitions and references
package ids

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// OtherPrefix is the bucket for identifiers whose prefix is not in the
// known vocabulary (SAL-001, ACC-010, ...).
const OtherPrefix = "OTHER"

// KnownPrefixes is the fixed identifier vocabulary, in chain order.
var KnownPrefixes = []string{
	"F", "REQ", "NFR", "SCR", "TBL", "API", "SEC", "RPT", "CLS",
	"UT", "IT", "ST", "UAT",
}

var knownPrefixes = func() map[string]bool {
	m := make(map[string]bool, len(KnownPrefixes))
	for _, p := range KnownPrefixes {
		m[p] = true
	}
	return m
}()

// idPattern matches PREFIX-(SCOPE-)?NNNN with 1-4 digits.
var idPattern = regexp.MustCompile(`\b([A-Z]{1,5})-(?:[A-Z][A-Z0-9]{1,9}-)?\d{1,4}\b`)

// standardPrefixes name encodings, digests and standards documents
// (UTF-8, SHA-256, ISO-8601, RFC-3339) that share the identifier shape.
var standardPrefixes = map[string]bool{
	"AES": true, "CVE": true, "IEC": true, "ISO": true, "MD": true,
	"RFC": true, "RSA": true, "SHA": true, "UTF": true,
}

// findAll returns the index pairs of the identifiers in s.
func findAll(s string) [][]int {
	matches := idPattern.FindAllStringSubmatchIndex(s, -1)
	out := make([][]int, 0, len(matches))
	for _, m := range matches {
		if standardPrefixes[s[m[2]:m[3]]] {
			continue
		}
		out = append(out, m[:2])
	}
	return out
}

// findAllStrings returns the identifiers in s.
func findAllStrings(s string) []string {
	locs := findAll(s)
	out := make([]string, len(locs))
	for i, m := range locs {
		out[i] = s[m[0]:m[1]]
	}
	return out
}

// IsKnownPrefix reports whether p belongs to the fixed vocabulary.
func IsKnownPrefix(p string) bool {
	return knownPrefixes[p]
}

// Valid reports whether s is a single well-formed identifier.
func Valid(s string) bool {
	locs := findAll(s)
	return len(locs) == 1 && locs[0][0] == 0 && locs[0][1] == len(s)
}

// PrefixOf returns the leading prefix of an identifier ("REQ" for
// "REQ-AUTH-001"), regardless of whether it is known.
func PrefixOf(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// BucketOf returns the grouping bucket for an identifier: its prefix when
// known, OtherPrefix otherwise.
func BucketOf(id string) string {
	p := PrefixOf(id)
	if knownPrefixes[p] {
		return p
	}
	return OtherPrefix
}

// --- Occurrence kinds ---

// Kind tells whether an occurrence introduces an identifier or cites it.
type Kind string

const (
	KindDefinition Kind = "definition"
	KindReference  Kind = "reference"
)

// Occurrence is a single match of an identifier in a text.
type Occurrence struct {
	ID     string `json:"id"`
	Prefix string `json:"prefix"`
	Line   int    `json:"line"`   // 1-based
	Column int    `json:"column"` // rune offset within the line, 0-based
	Kind   Kind   `json:"kind"`
}

// Scan returns every identifier occurrence in text, in document order.
func Scan(text string) []Occurrence {
	var out []Occurrence
	for i, line := range strings.Split(text, "\n") {
		matches := findAll(line)
		if len(matches) == 0 {
			continue
		}
		trimmed := strings.TrimSpace(line)
		heading := strings.HasPrefix(trimmed, "#")
		tableRow := strings.HasPrefix(trimmed, "|")
		length := utf8.RuneCountInString(line)

		for _, m := range matches {
			id := line[m[0]:m[1]]
			col := utf8.RuneCountInString(line[:m[0]])
			kind := KindReference
			if heading || (tableRow && col*3 < length) {
				kind = KindDefinition
			}
			out = append(out, Occurrence{
				ID:     id,
				Prefix: BucketOf(id),
				Line:   i + 1,
				Column: col,
				Kind:   kind,
			})
		}
	}
	return out
}

// Extract returns every identifier in text grouped by bucket.
func Extract(text string) Groups {
	g := Groups{}
	for _, m := range findAllStrings(text) {
		g.Add(m)
	}
	return g
}

// Classification splits the identifiers of a text by role. An identifier
// can appear in both sets when it is defined in one place and cited in
// another.
type Classification struct {
	Defined    Groups `json:"defined"`
	Referenced Groups `json:"referenced"`
}

// Mentioned returns the union of defined and referenced identifiers.
func (c Classification) Mentioned() Groups {
	all := Groups{}
	all.Merge(c.Defined)
	all.Merge(c.Referenced)
	return all
}

// Classify scans text and sorts each identifier into the defined and/or
// referenced sets.
func Classify(text string) Classification {
	c := Classification{Defined: Groups{}, Referenced: Groups{}}
	for _, o := range Scan(text) {
		if o.Kind == KindDefinition {
			c.Defined.Add(o.ID)
		} else {
			c.Referenced.Add(o.ID)
		}
	}
	return c
}

// ChangedIDs compares two versions of a document and returns the
// identifiers that are new in next or whose first containing line differs
// between versions. The result is sorted.
func ChangedIDs(prev, next string) []string {
	before := firstLines(prev)
	after := firstLines(next)

	var changed []string
	for id, line := range after {
		old, ok := before[id]
		if !ok || old != line {
			changed = append(changed, id)
		}
	}
	sort.Strings(changed)
	return changed
}

// firstLines maps each identifier to the trimmed text of the first line
// it occurs on.
func firstLines(text string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		for _, id := range findAllStrings(line) {
			if _, seen := out[id]; !seen {
				out[id] = strings.TrimSpace(line)
			}
		}
	}
	return out
}
