// Package changes holds the Change Request (CR) record: the only entity
// the engine persists. A CR tracks one approved edit to a chain document as
// it is analyzed, approved, propagated through the chain and validated.
//
// Design principles:
// - SRP: types, transitions, state changes, ids, conflicts and store in separate files
// - DIP: Store is an interface; the orchestrator depends on the abstraction
// - OCP: new statuses are added to the transition table without touching callers
package changes

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no CR file exists for an id.
	ErrNotFound = errors.New("change request not found")
	// ErrCorrupt is returned when a CR file cannot be parsed.
	ErrCorrupt = errors.New("change request file is corrupt")
	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("invalid change request transition")
)

// --- Status enum ---

// Status is a CR lifecycle state.
type Status string

const (
	StatusInitiated      Status = "INITIATED"
	StatusAnalyzing      Status = "ANALYZING"
	StatusImpactAnalyzed Status = "IMPACT_ANALYZED"
	StatusApproved       Status = "APPROVED"
	StatusPropagating    Status = "PROPAGATING"
	StatusValidated      Status = "VALIDATED"
	StatusCompleted      Status = "COMPLETED"
	StatusCancelled      Status = "CANCELLED"
)

// validStatuses is the set of allowed statuses.
var validStatuses = map[Status]bool{
	StatusInitiated:      true,
	StatusAnalyzing:      true,
	StatusImpactAnalyzed: true,
	StatusApproved:       true,
	StatusPropagating:    true,
	StatusValidated:      true,
	StatusCompleted:      true,
	StatusCancelled:      true,
}

// ValidateStatus returns an error if the status is not recognized.
func ValidateStatus(s Status) error {
	if !validStatuses[s] {
		return fmt.Errorf("invalid status %q: must be one of: INITIATED, ANALYZING, IMPACT_ANALYZED, APPROVED, PROPAGATING, VALIDATED, COMPLETED, CANCELLED", s)
	}
	return nil
}

// --- Propagation step enums ---

// Direction tells whether a step walks up or down the chain.
type Direction string

const (
	// DirectionUpstream steps are advisory.
	DirectionUpstream Direction = "upstream"
	// DirectionDownstream steps are mandatory cascades.
	DirectionDownstream Direction = "downstream"
)

// StepStatus is the progress of one propagation step.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepDone    StepStatus = "done"
)

// --- Core data structures ---

// PropagationStep is one document to revisit during propagation.
type PropagationStep struct {
	DocType   string     `yaml:"doc_type" json:"doc_type"`
	Direction Direction  `yaml:"direction" json:"direction"`
	Status    StepStatus `yaml:"status" json:"status"`
	Note      string     `yaml:"note,omitempty" json:"note,omitempty"`
}

// HistoryEntry records one status the CR entered.
type HistoryEntry struct {
	Status  Status `yaml:"status" json:"status"`
	Entered string `yaml:"entered" json:"entered"` // RFC3339
	Reason  string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// ChangeRequest is the persisted CR record.
type ChangeRequest struct {
	ID               string            `yaml:"id" json:"id"`
	Status           Status            `yaml:"status" json:"status"`
	OriginDoc        string            `yaml:"origin_doc" json:"origin_doc"`
	Description      string            `yaml:"description" json:"description"`
	ChangedIDs       []string          `yaml:"changed_ids" json:"changed_ids"`
	ImpactSummary    string            `yaml:"impact_summary" json:"impact_summary"`
	PropagationSteps []PropagationStep `yaml:"propagation_steps" json:"propagation_steps"`
	PropagationIndex int               `yaml:"propagation_index" json:"propagation_index"`
	ConflictWarnings []string          `yaml:"conflict_warnings" json:"conflict_warnings"`
	Created          string            `yaml:"created" json:"created"`
	Updated          string            `yaml:"updated" json:"updated"`
	History          []HistoryEntry    `yaml:"history" json:"history"`
}

// PendingSteps counts steps not yet done.
func (cr *ChangeRequest) PendingSteps() int {
	n := 0
	for _, s := range cr.PropagationSteps {
		if s.Status != StepDone {
			n++
		}
	}
	return n
}

// IsTerminal reports whether no further transition is possible.
func (cr *ChangeRequest) IsTerminal() bool {
	return IsTerminal(cr.Status)
}

// MaxPropagationSteps bounds the step list of a CR. A chain never yields
// more steps, so a longer list marks a damaged record.
const MaxPropagationSteps = 20

// validateSteps checks the step list and the cursor into it.
func (cr *ChangeRequest) validateSteps() error {
	n := len(cr.PropagationSteps)
	if n > MaxPropagationSteps {
		return fmt.Errorf("%d propagation steps exceed the maximum of %d", n, MaxPropagationSteps)
	}
	if cr.PropagationIndex < 0 || cr.PropagationIndex > n {
		return fmt.Errorf("propagation_index %d out of range for %d steps", cr.PropagationIndex, n)
	}
	return nil
}

// normalize replaces nil slices with empty ones so that a record reads
// back exactly as it was written.
func (cr *ChangeRequest) normalize() {
	if cr.ChangedIDs == nil {
		cr.ChangedIDs = []string{}
	}
	if cr.PropagationSteps == nil {
		cr.PropagationSteps = []PropagationStep{}
	}
	if cr.ConflictWarnings == nil {
		cr.ConflictWarnings = []string{}
	}
	if cr.History == nil {
		cr.History = []HistoryEntry{}
	}
}
