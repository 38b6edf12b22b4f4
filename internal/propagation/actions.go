package propagation

import (
	"context"
	"errors"
	"fmt"

	"github.com/HendryAvila/specchain/internal/chain"
	"github.com/HendryAvila/specchain/internal/changes"
	"github.com/HendryAvila/specchain/internal/config"
	"github.com/HendryAvila/specchain/internal/gitlog"
	"github.com/HendryAvila/specchain/internal/impact"
)

// ErrInvalidRequest is returned when a request lacks a parameter its
// action needs or carries a malformed one.
var ErrInvalidRequest = errors.New("invalid request")

// --- Action enum ---

// Action names one operation on change requests.
type Action string

const (
	ActionCreate        Action = "create"
	ActionAnalyze       Action = "analyze"
	ActionApprove       Action = "approve"
	ActionPropagateNext Action = "propagate_next"
	ActionValidate      Action = "validate"
	ActionComplete      Action = "complete"
	ActionStatus        Action = "status"
	ActionList          Action = "list"
	ActionCancel        Action = "cancel"
	ActionSimulate      Action = "simulate"
)

// Actions lists every action in lifecycle order.
var Actions = []Action{
	ActionCreate, ActionAnalyze, ActionApprove, ActionPropagateNext,
	ActionValidate, ActionComplete, ActionStatus, ActionList, ActionCancel,
	ActionSimulate,
}

// validActions is the set of allowed actions.
var validActions = map[Action]bool{
	ActionCreate:        true,
	ActionAnalyze:       true,
	ActionApprove:       true,
	ActionPropagateNext: true,
	ActionValidate:      true,
	ActionComplete:      true,
	ActionStatus:        true,
	ActionList:          true,
	ActionCancel:        true,
	ActionSimulate:      true,
}

// ValidateAction returns an error if the action is not recognized.
func ValidateAction(a Action) error {
	if !validActions[a] {
		return fmt.Errorf("%w: unknown action %q: must be one of: create, analyze, approve, propagate_next, validate, complete, status, list, cancel, simulate", ErrInvalidRequest, a)
	}
	return nil
}

// Request carries the parameters of every action. Each action reads the
// fields it needs and ignores the rest.
type Request struct {
	Action        Action
	WorkspaceRoot string
	CRID          string
	ConfigPath    string

	// create / simulate
	OriginDoc   string
	Description string
	ChangedIDs  []string
	OldContent  string
	NewContent  string

	// analyze / simulate
	MaxDepth int
	SkipDocs []string

	// propagate_next
	Note           string
	SuggestContent bool

	// list
	StatusFilter changes.Status

	// cancel
	Reason string
}

// StepInstruction tells the caller what to do for one propagation step.
type StepInstruction struct {
	Number      int               `json:"step"`
	Total       int               `json:"total"`
	DocType     string            `json:"doc_type"`
	Direction   changes.Direction `json:"direction"`
	Instruction string            `json:"instruction"`
	// SuggestedContent holds the origin lines citing the changed ids, for
	// upstream steps when requested.
	SuggestedContent string `json:"suggested_content,omitempty"`
}

// Result is the outcome of an action. Only the fields the action produces
// are set.
type Result struct {
	Action           Action                    `json:"action"`
	CR               *changes.ChangeRequest    `json:"change_request,omitempty"`
	ChangeRequests   []changes.ChangeRequest   `json:"change_requests,omitempty"`
	Impact           *impact.Report            `json:"impact,omitempty"`
	Steps            []changes.PropagationStep `json:"propagation_steps,omitempty"`
	Step             *StepInstruction          `json:"step,omitempty"`
	AllStepsComplete bool                      `json:"all_steps_complete,omitempty"`
	Checkpoint       *gitlog.CheckpointResult  `json:"checkpoint,omitempty"`
	Conflicts        []changes.Conflict        `json:"conflicts,omitempty"`
	Chain            *chain.Report             `json:"chain,omitempty"`
	DryRun           bool                      `json:"dry_run,omitempty"`
}

// Dispatch routes req to the handler of its action.
func (o *Orchestrator) Dispatch(ctx context.Context, req Request) (*Result, error) {
	if err := ValidateAction(req.Action); err != nil {
		return nil, err
	}
	if req.WorkspaceRoot == "" && req.Action != ActionSimulate {
		return nil, fmt.Errorf("%w: workspace root is required", ErrInvalidRequest)
	}

	switch req.Action {
	case ActionCreate:
		return o.Create(ctx, req)
	case ActionAnalyze:
		return o.Analyze(ctx, req)
	case ActionApprove:
		return o.Approve(ctx, req)
	case ActionPropagateNext:
		return o.PropagateNext(ctx, req)
	case ActionValidate:
		return o.Validate(ctx, req)
	case ActionComplete:
		return o.Complete(ctx, req)
	case ActionStatus:
		return o.Status(ctx, req)
	case ActionList:
		return o.List(ctx, req)
	case ActionCancel:
		return o.Cancel(ctx, req)
	case ActionSimulate:
		return o.Simulate(ctx, req)
	}
	return nil, fmt.Errorf("%w: unhandled action %q", ErrInvalidRequest, req.Action)
}

// IsUserError reports whether err stems from the request or the project
// files rather than from the engine. Transports show these to the caller
// instead of failing.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, changes.ErrInvalidTransition) ||
		errors.Is(err, changes.ErrNotFound) ||
		errors.Is(err, changes.ErrCorrupt) ||
		errors.Is(err, config.ErrConfig)
}
