package changes

import (
	"fmt"
	"time"
)

// --- In-memory state changes ---
//
// These functions mutate a record without persisting it. The store (or the
// orchestrator) writes the result in one operation.

// now returns the current time as an RFC3339 UTC string.
func now() string {
	return timeNow().UTC().Format(time.RFC3339)
}

// New builds an INITIATED record with a one-entry history.
func New(id, originDoc, description string, changedIDs []string) *ChangeRequest {
	ts := now()
	cr := &ChangeRequest{
		ID:          id,
		Status:      StatusInitiated,
		OriginDoc:   originDoc,
		Description: description,
		ChangedIDs:  append([]string{}, changedIDs...),
		Created:     ts,
		Updated:     ts,
		History:     []HistoryEntry{{Status: StatusInitiated, Entered: ts}},
	}
	cr.normalize()
	return cr
}

// Transition moves cr to target, appending a history entry. On an invalid
// transition cr is left untouched and a *TransitionError is returned.
func Transition(cr *ChangeRequest, target Status, reason string) error {
	if err := ValidateStatus(target); err != nil {
		return err
	}
	if !CanTransition(cr.Status, target) {
		return &TransitionError{ID: cr.ID, From: cr.Status, To: target}
	}
	ts := now()
	cr.History = append(cr.History, HistoryEntry{Status: target, Entered: ts, Reason: reason})
	cr.Status = target
	cr.Updated = ts
	return nil
}

// CurrentStep returns the step at the propagation cursor, or nil when all
// steps have been handed out.
func CurrentStep(cr *ChangeRequest) *PropagationStep {
	if cr.PropagationIndex < 0 || cr.PropagationIndex >= len(cr.PropagationSteps) {
		return nil
	}
	return &cr.PropagationSteps[cr.PropagationIndex]
}

// AdvanceStep marks the step at the cursor done, attaches note, and moves
// the cursor forward. It returns the completed step.
func AdvanceStep(cr *ChangeRequest, note string) (PropagationStep, error) {
	if cr.Status != StatusPropagating {
		return PropagationStep{}, fmt.Errorf("change request %s is not propagating (status: %s)", cr.ID, cr.Status)
	}
	step := CurrentStep(cr)
	if step == nil {
		return PropagationStep{}, fmt.Errorf("change request %s has no pending propagation step", cr.ID)
	}
	step.Status = StepDone
	if note != "" {
		step.Note = note
	}
	cr.PropagationIndex++
	cr.Updated = now()
	return *step, nil
}
