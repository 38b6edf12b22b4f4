package changes

import (
	"fmt"
	"strings"
)

// ConflictKind names what two change requests overlap on.
type ConflictKind string

const (
	ConflictChangedIDs      ConflictKind = "changed_ids"
	ConflictPropagationDocs ConflictKind = "propagation_docs"
)

// Conflict is an overlap between a candidate CR and an active one.
type Conflict struct {
	CRID    string       `json:"cr_id"`
	Kind    ConflictKind `json:"kind"`
	Overlap []string     `json:"overlap"`
}

// Warning renders the conflict as stored in conflict_warnings.
func (c Conflict) Warning() string {
	return fmt.Sprintf("%s overlap with %s: %s", c.Kind, c.CRID, strings.Join(c.Overlap, ", "))
}

// IsActive reports whether a CR is in flight and can collide with others.
func IsActive(s Status) bool {
	return s == StatusApproved || s == StatusPropagating
}

// DetectConflicts compares candidate with every other active CR and
// reports overlapping changed ids and overlapping propagation documents.
// Conflicts are advisory; they never block a transition.
func DetectConflicts(candidate *ChangeRequest, all []ChangeRequest) []Conflict {
	var out []Conflict
	for _, other := range all {
		if other.ID == candidate.ID || !IsActive(other.Status) {
			continue
		}
		if overlap := intersect(candidate.ChangedIDs, other.ChangedIDs); len(overlap) > 0 {
			out = append(out, Conflict{CRID: other.ID, Kind: ConflictChangedIDs, Overlap: overlap})
		}
		if overlap := intersect(stepDocs(candidate), stepDocs(&other)); len(overlap) > 0 {
			out = append(out, Conflict{CRID: other.ID, Kind: ConflictPropagationDocs, Overlap: overlap})
		}
	}
	return out
}

func stepDocs(cr *ChangeRequest) []string {
	docs := make([]string, 0, len(cr.PropagationSteps))
	for _, s := range cr.PropagationSteps {
		docs = append(docs, s.DocType)
	}
	return docs
}

// intersect keeps a's order and drops duplicates.
func intersect(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, x := range b {
		inB[x] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, x := range a {
		if inB[x] && !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}
