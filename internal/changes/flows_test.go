package changes

import (
	"errors"
	"testing"
)

var allStatuses = []Status{
	StatusInitiated, StatusAnalyzing, StatusImpactAnalyzed, StatusApproved,
	StatusPropagating, StatusValidated, StatusCompleted, StatusCancelled,
}

func TestCanTransition_HappyPathInSequence(t *testing.T) {
	for i := 0; i+1 < len(StatusOrder); i++ {
		if !CanTransition(StatusOrder[i], StatusOrder[i+1]) {
			t.Errorf("%s → %s should be allowed", StatusOrder[i], StatusOrder[i+1])
		}
	}
}

func TestCanTransition_NoSkipping(t *testing.T) {
	for i := range StatusOrder {
		for j := range StatusOrder {
			if j == i+1 {
				continue
			}
			if CanTransition(StatusOrder[i], StatusOrder[j]) {
				t.Errorf("%s → %s should be rejected", StatusOrder[i], StatusOrder[j])
			}
		}
	}
	if CanTransition(StatusInitiated, StatusApproved) {
		t.Error("INITIATED → APPROVED must be rejected")
	}
}

func TestCanTransition_CancelFromNonTerminal(t *testing.T) {
	for _, s := range StatusOrder[:len(StatusOrder)-1] {
		if !CanTransition(s, StatusCancelled) {
			t.Errorf("%s → CANCELLED should be allowed", s)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusCancelled} {
		if !IsTerminal(from) {
			t.Errorf("%s should be terminal", from)
		}
		for _, to := range allStatuses {
			if CanTransition(from, to) {
				t.Errorf("%s → %s should be rejected", from, to)
			}
		}
	}
	if IsTerminal(StatusValidated) {
		t.Error("VALIDATED is not terminal")
	}
	if IsTerminal("bogus") {
		t.Error("unknown status is not terminal")
	}
}

func TestAllowedTransitions_ReturnsCopy(t *testing.T) {
	got := AllowedTransitions(StatusInitiated)
	got[0] = StatusCompleted
	if !CanTransition(StatusInitiated, StatusAnalyzing) {
		t.Error("mutating the returned slice changed the table")
	}
}

func TestTransitionError(t *testing.T) {
	err := error(&TransitionError{ID: "CR-260223-001", From: StatusInitiated, To: StatusApproved})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Error("TransitionError should match ErrInvalidTransition")
	}
	msg := err.Error()
	for _, want := range []string{"INITIATED", "APPROVED", "allowed: ANALYZING, CANCELLED"} {
		if !containsStr(msg, want) {
			t.Errorf("message %q should contain %q", msg, want)
		}
	}

	terminal := &TransitionError{ID: "x", From: StatusCompleted, To: StatusCancelled}
	if !containsStr(terminal.Error(), "COMPLETED is terminal") {
		t.Errorf("terminal message = %q", terminal.Error())
	}
}
