package changes

import (
	"fmt"
	"strings"
)

// --- Transition table ---
//
// The lifecycle is strictly forward, one step at a time. Any non-terminal
// status may also be cancelled.

// StatusOrder is the happy path.
var StatusOrder = []Status{
	StatusInitiated,
	StatusAnalyzing,
	StatusImpactAnalyzed,
	StatusApproved,
	StatusPropagating,
	StatusValidated,
	StatusCompleted,
}

// transitions maps a status to the statuses reachable from it.
var transitions = map[Status][]Status{
	StatusInitiated:      {StatusAnalyzing, StatusCancelled},
	StatusAnalyzing:      {StatusImpactAnalyzed, StatusCancelled},
	StatusImpactAnalyzed: {StatusApproved, StatusCancelled},
	StatusApproved:       {StatusPropagating, StatusCancelled},
	StatusPropagating:    {StatusValidated, StatusCancelled},
	StatusValidated:      {StatusCompleted, StatusCancelled},
	StatusCompleted:      nil,
	StatusCancelled:      nil,
}

// AllowedTransitions returns the statuses reachable from s.
func AllowedTransitions(s Status) []Status {
	return append([]Status(nil), transitions[s]...)
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing transition.
func IsTerminal(s Status) bool {
	return validStatuses[s] && len(transitions[s]) == 0
}

// TransitionError carries the rejected (current, target) pair.
type TransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	allowed := transitions[e.From]
	if len(allowed) == 0 {
		return fmt.Sprintf("cannot transition %s from %s to %s: %s is terminal", e.ID, e.From, e.To, e.From)
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return fmt.Sprintf("cannot transition %s from %s to %s (allowed: %s)", e.ID, e.From, e.To, strings.Join(names, ", "))
}

// Is lets errors.Is(err, ErrInvalidTransition) match.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
