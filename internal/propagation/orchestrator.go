// Package propagation drives change requests through their lifecycle.
//
// The Orchestrator owns every CR action: it loads the record, checks the
// current status, runs the analysis the action needs (impact analysis,
// step planning, chain validation), applies the transition in memory and
// persists the result in one write. Progress lives only in the CR record.
//
// Design principles:
// - SRP: step planning, changelog, observers and action routing in separate files
// - DIP: the store, checkpointer and chain validator are interfaces
// - OCP: observers (ledger, metrics) plug in without touching the actions
package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/HendryAvila/specchain/internal/chain"
	"github.com/HendryAvila/specchain/internal/changes"
	"github.com/HendryAvila/specchain/internal/config"
	"github.com/HendryAvila/specchain/internal/gitlog"
	"github.com/HendryAvila/specchain/internal/ids"
	"github.com/HendryAvila/specchain/internal/impact"
)

// Checkpointer commits the current state of a workspace.
type Checkpointer interface {
	Checkpoint(ctx context.Context, message string, paths ...string) (gitlog.CheckpointResult, error)
}

// CheckpointOpener returns the checkpointer for a workspace root.
type CheckpointOpener func(root string) Checkpointer

// GitCheckpoints opens a gitlog.Git per workspace.
func GitCheckpoints(timeout time.Duration, logger *slog.Logger) CheckpointOpener {
	return func(root string) Checkpointer {
		return gitlog.New(root, gitlog.WithTimeout(timeout), gitlog.WithLogger(logger))
	}
}

// ChainValidator validates the document chain of a project.
type ChainValidator interface {
	Validate(ctx context.Context, cfg *config.Config) (*chain.Report, error)
}

// Orchestrator executes CR actions.
type Orchestrator struct {
	store      changes.Store
	checkpoint CheckpointOpener
	validator  ChainValidator
	observers  observers
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCheckpoints enables the pre-propagation checkpoint.
func WithCheckpoints(open CheckpointOpener) Option {
	return func(o *Orchestrator) { o.checkpoint = open }
}

// WithObserver registers an observer. Nil observers are ignored.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an Orchestrator over store, validating chains with validator.
func New(store changes.Store, validator ChainValidator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		validator: validator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// --- Actions ---

// Create records a new CR. Changed ids come from req.ChangedIDs, or are
// detected by comparing req.OldContent with req.NewContent.
func (o *Orchestrator) Create(_ context.Context, req Request) (*Result, error) {
	if req.OriginDoc == "" {
		return nil, fmt.Errorf("%w: origin_doc required for create", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("%w: description required for create", ErrInvalidRequest)
	}
	changed, err := changedIDs(req)
	if err != nil {
		return nil, err
	}

	cr, err := o.store.Create(req.WorkspaceRoot, req.OriginDoc, req.Description, changed)
	if err != nil {
		return nil, fmt.Errorf("creating change request: %w", err)
	}
	o.logger.Info("change request created", "cr", cr.ID, "origin", cr.OriginDoc, "changed_ids", len(cr.ChangedIDs))
	return &Result{Action: ActionCreate, CR: cr}, nil
}

// Analyze runs impact analysis for an INITIATED CR, plans its propagation
// steps and leaves it IMPACT_ANALYZED.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) (*Result, error) {
	cr, err := o.load(req, accept(changes.StatusInitiated))
	if err != nil {
		return nil, err
	}
	cfg, err := o.loadConfig(req)
	if err != nil {
		return nil, err
	}
	docs, err := chain.LoadDocuments(cfg)
	if err != nil {
		return nil, fmt.Errorf("loading chain documents: %w", err)
	}

	steps := ComputeSteps(cfg.Pairs(), cr.OriginDoc, StepOptions{MaxDepth: req.MaxDepth, SkipDocs: req.SkipDocs})
	if len(steps) > changes.MaxPropagationSteps {
		return nil, fmt.Errorf("%w: %d propagation steps exceed the maximum of %d; narrow with max_depth or skip_docs",
			ErrInvalidRequest, len(steps), changes.MaxPropagationSteps)
	}

	if err := o.transition(req.WorkspaceRoot, cr, changes.StatusAnalyzing, ""); err != nil {
		return nil, err
	}

	report := impact.BuildReport(cr.ChangedIDs, impact.FindAffectedSections(cr.ChangedIDs, docs, cfg.Order()))

	cr.ImpactSummary = fmt.Sprintf("%d affected sections across %d documents",
		report.TotalAffectedSections, len(report.AffectedDocs))
	cr.PropagationSteps = steps
	cr.PropagationIndex = 0
	if err := o.transition(req.WorkspaceRoot, cr, changes.StatusImpactAnalyzed, "impact analysis complete"); err != nil {
		return nil, err
	}

	return &Result{Action: ActionAnalyze, CR: cr, Impact: report, Steps: steps}, nil
}

// Approve moves an IMPACT_ANALYZED CR to APPROVED, recording overlaps with
// other active CRs as conflict warnings. Conflicts never block approval.
func (o *Orchestrator) Approve(_ context.Context, req Request) (*Result, error) {
	cr, err := o.load(req, accept(changes.StatusImpactAnalyzed))
	if err != nil {
		return nil, err
	}
	all, err := o.store.List(req.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("listing change requests: %w", err)
	}

	conflicts := changes.DetectConflicts(cr, all)
	warnings := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		warnings = append(warnings, c.Warning())
	}
	cr.ConflictWarnings = warnings
	if len(conflicts) > 0 {
		o.logger.Warn("change request overlaps active requests", "cr", cr.ID, "conflicts", len(conflicts))
	}

	if err := o.transition(req.WorkspaceRoot, cr, changes.StatusApproved, "approved for propagation"); err != nil {
		return nil, err
	}
	return &Result{Action: ActionApprove, CR: cr, Conflicts: conflicts}, nil
}

// PropagateNext hands out the next pending step. The first call on an
// APPROVED CR checkpoints the workspace and enters PROPAGATING. When every
// step was handed out it reports completion and writes nothing.
func (o *Orchestrator) PropagateNext(ctx context.Context, req Request) (*Result, error) {
	cr, err := o.load(req, accept(changes.StatusApproved, changes.StatusPropagating))
	if err != nil {
		return nil, err
	}
	res := &Result{Action: ActionPropagateNext, CR: cr}

	// config_path is optional here; without it only workspace-docs/ is
	// checkpointed and no content is suggested.
	var cfg *config.Config
	if req.ConfigPath != "" {
		if cfg, err = o.loadConfig(req); err != nil {
			return nil, err
		}
	} else if req.SuggestContent {
		return nil, fmt.Errorf("%w: config_path required when suggest_content is set", ErrInvalidRequest)
	}

	from := cr.Status
	if from == changes.StatusApproved {
		cp := o.checkpointWorkspace(ctx, req.WorkspaceRoot, cr.ID, cfg)
		res.Checkpoint = &cp
		if err := changes.Transition(cr, changes.StatusPropagating, "starting propagation"); err != nil {
			return nil, err
		}
	} else if changes.CurrentStep(cr) == nil {
		res.AllStepsComplete = true
		return res, nil
	}

	if step := changes.CurrentStep(cr); step != nil {
		number := cr.PropagationIndex + 1
		done, err := changes.AdvanceStep(cr, req.Note)
		if err != nil {
			return nil, err
		}
		res.Step = &StepInstruction{
			Number:      number,
			Total:       len(cr.PropagationSteps),
			DocType:     done.DocType,
			Direction:   done.Direction,
			Instruction: Instruction(done),
		}
		if req.SuggestContent && done.Direction == changes.DirectionUpstream {
			res.Step.SuggestedContent = o.suggestedContent(cfg, cr)
		}
	}
	res.AllStepsComplete = changes.CurrentStep(cr) == nil

	if err := o.store.Save(req.WorkspaceRoot, cr); err != nil {
		return nil, fmt.Errorf("saving %s: %w", cr.ID, err)
	}
	if from != cr.Status {
		o.observers.transition(cr, from, "starting propagation")
	}
	return res, nil
}

// Validate re-runs chain validation for a PROPAGATING CR whose steps are
// all done and moves it to VALIDATED with the issue count as reason.
func (o *Orchestrator) Validate(ctx context.Context, req Request) (*Result, error) {
	cr, err := o.load(req, accept(changes.StatusPropagating))
	if err != nil {
		return nil, err
	}
	if pending := pendingDocs(cr); len(pending) > 0 {
		return nil, fmt.Errorf("%w: %d propagation steps still pending: %s",
			ErrInvalidRequest, len(pending), strings.Join(pending, ", "))
	}
	report, err := o.ValidateChain(ctx, req.WorkspaceRoot, req.ConfigPath)
	if err != nil {
		return nil, err
	}

	reason := fmt.Sprintf("chain validation: %d issues", report.Issues())
	if err := o.transition(req.WorkspaceRoot, cr, changes.StatusValidated, reason); err != nil {
		return nil, err
	}
	return &Result{Action: ActionValidate, CR: cr, Chain: report}, nil
}

// Complete closes a VALIDATED CR and appends it to the changelog. A
// changelog failure is logged only.
func (o *Orchestrator) Complete(_ context.Context, req Request) (*Result, error) {
	cr, err := o.load(req, accept(changes.StatusValidated))
	if err != nil {
		return nil, err
	}
	if err := o.transition(req.WorkspaceRoot, cr, changes.StatusCompleted, "change request completed"); err != nil {
		return nil, err
	}

	entry := ChangelogEntry{
		Date:    dateOf(cr.Updated),
		DocType: cr.OriginDoc,
		Changes: cr.Description,
		CRID:    cr.ID,
	}
	if err := AppendChangelog(req.WorkspaceRoot, entry); err != nil {
		o.logger.Warn("changelog not updated", "cr", cr.ID, "error", err)
	}
	return &Result{Action: ActionComplete, CR: cr}, nil
}

// Status returns the CR as stored.
func (o *Orchestrator) Status(_ context.Context, req Request) (*Result, error) {
	cr, err := o.load(req, nil)
	if err != nil {
		return nil, err
	}
	return &Result{Action: ActionStatus, CR: cr}, nil
}

// List returns every CR, optionally only those in req.StatusFilter.
func (o *Orchestrator) List(_ context.Context, req Request) (*Result, error) {
	if req.StatusFilter != "" {
		if err := changes.ValidateStatus(req.StatusFilter); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	all, err := o.store.List(req.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("listing change requests: %w", err)
	}
	out := []changes.ChangeRequest{}
	for _, cr := range all {
		if req.StatusFilter == "" || cr.Status == req.StatusFilter {
			out = append(out, cr)
		}
	}
	return &Result{Action: ActionList, ChangeRequests: out}, nil
}

// Cancel moves any non-terminal CR to CANCELLED.
func (o *Orchestrator) Cancel(_ context.Context, req Request) (*Result, error) {
	cr, err := o.load(req, nil)
	if err != nil {
		return nil, err
	}
	reason := req.Reason
	if reason == "" {
		reason = "cancelled by user"
	}
	if err := o.transition(req.WorkspaceRoot, cr, changes.StatusCancelled, reason); err != nil {
		return nil, err
	}
	return &Result{Action: ActionCancel, CR: cr}, nil
}

// Simulate runs the analysis of Analyze without a CR and without writing
// anything. Steps are planned only when req.OriginDoc is set.
func (o *Orchestrator) Simulate(_ context.Context, req Request) (*Result, error) {
	changed, err := changedIDs(req)
	if err != nil {
		return nil, err
	}
	cfg, err := o.loadConfig(req)
	if err != nil {
		return nil, err
	}
	docs, err := chain.LoadDocuments(cfg)
	if err != nil {
		return nil, fmt.Errorf("loading chain documents: %w", err)
	}

	res := &Result{
		Action: ActionSimulate,
		DryRun: true,
		Impact: impact.BuildReport(changed, impact.FindAffectedSections(changed, docs, cfg.Order())),
		Steps:  []changes.PropagationStep{},
	}
	if req.OriginDoc != "" {
		res.Steps = ComputeSteps(cfg.Pairs(), req.OriginDoc, StepOptions{MaxDepth: req.MaxDepth, SkipDocs: req.SkipDocs})
	}
	return res, nil
}

// ValidateChain validates the project at configPath and notifies
// observers. A relative configPath resolves against workspaceRoot.
func (o *Orchestrator) ValidateChain(ctx context.Context, workspaceRoot, configPath string) (*chain.Report, error) {
	cfg, err := o.loadConfig(Request{WorkspaceRoot: workspaceRoot, ConfigPath: configPath, Action: ActionValidate})
	if err != nil {
		return nil, err
	}
	start := time.Now()
	report, err := o.validator.Validate(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("validating chain: %w", err)
	}
	o.logger.Info("chain validated",
		"config", configPath,
		"issues", report.Issues(),
		"stale_pairs", len(report.StalenessWarnings),
		"elapsed", time.Since(start))
	o.observers.chainValidated(configPath, report)
	return report, nil
}

// Instruction phrases what the caller must do for step. Upstream steps
// are suggestions; downstream steps are mandatory.
func Instruction(step changes.PropagationStep) string {
	if step.Direction == changes.DirectionUpstream {
		return fmt.Sprintf("UPSTREAM SUGGESTION: Review and update %s to include or update the ids referenced in the change. This is a non-destructive suggestion.", step.DocType)
	}
	return fmt.Sprintf("DOWNSTREAM CASCADE: Regenerate %s to reflect the upstream changes.", step.DocType)
}

// --- Helpers ---

// accept builds the set of statuses an action accepts.
func accept(statuses ...changes.Status) []changes.Status { return statuses }

// load validates the CR id, reads the record and checks its status
// against allowed. A nil allowed accepts any status.
func (o *Orchestrator) load(req Request, allowed []changes.Status) (*changes.ChangeRequest, error) {
	if req.CRID == "" {
		return nil, fmt.Errorf("%w: cr_id required for %s", ErrInvalidRequest, req.Action)
	}
	if err := changes.ValidateID(req.CRID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	cr, err := o.store.Load(req.WorkspaceRoot, req.CRID)
	if err != nil {
		return nil, err
	}
	if len(allowed) == 0 {
		return cr, nil
	}
	for _, s := range allowed {
		if cr.Status == s {
			return cr, nil
		}
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return nil, fmt.Errorf("%w: %s requires %s status, got %s",
		changes.ErrInvalidTransition, req.Action, strings.Join(names, " or "), cr.Status)
}

// transition applies target in memory, persists cr and notifies observers.
// On failure the stored record is unchanged.
func (o *Orchestrator) transition(root string, cr *changes.ChangeRequest, target changes.Status, reason string) error {
	from := cr.Status
	if err := changes.Transition(cr, target, reason); err != nil {
		return err
	}
	if err := o.store.Save(root, cr); err != nil {
		return fmt.Errorf("saving %s: %w", cr.ID, err)
	}
	o.logger.Info("change request transitioned", "cr", cr.ID, "from", from, "to", target)
	o.observers.transition(cr, from, reason)
	return nil
}

// loadConfig loads req.ConfigPath, relative to the workspace root.
func (o *Orchestrator) loadConfig(req Request) (*config.Config, error) {
	if req.ConfigPath == "" {
		return nil, fmt.Errorf("%w: config_path required for %s", ErrInvalidRequest, req.Action)
	}
	path := req.ConfigPath
	if !filepath.IsAbs(path) && req.WorkspaceRoot != "" {
		path = filepath.Join(req.WorkspaceRoot, path)
	}
	return config.Load(path)
}

// checkpointWorkspace commits workspace-docs/ and the chain documents
// before propagation starts. Failures are logged only.
func (o *Orchestrator) checkpointWorkspace(ctx context.Context, root, crID string, cfg *config.Config) gitlog.CheckpointResult {
	if o.checkpoint == nil {
		return gitlog.CheckpointResult{Skipped: "checkpoints disabled"}
	}
	paths := []string{changes.WorkspaceDocsPath(root)}
	if cfg != nil {
		paths = append(paths, cfg.CheckpointPaths()...)
	}

	res, err := o.checkpoint(root).Checkpoint(ctx, fmt.Sprintf("chore: pre-%s checkpoint", crID), paths...)
	if err != nil {
		o.logger.Warn("checkpoint failed, propagating without one", "cr", crID, "error", err)
		return gitlog.CheckpointResult{Skipped: err.Error()}
	}
	if res.Created {
		o.logger.Info("checkpoint created", "cr", crID, "commit", res.Commit)
	} else {
		o.logger.Warn("checkpoint skipped", "cr", crID, "reason", res.Skipped)
	}
	return res
}

// suggestedContent returns the lines of the origin document that cite a
// changed id. Load failures yield "".
func (o *Orchestrator) suggestedContent(cfg *config.Config, cr *changes.ChangeRequest) string {
	docs, err := chain.LoadDocuments(cfg)
	if err != nil {
		o.logger.Warn("suggested content unavailable", "cr", cr.ID, "error", err)
		return ""
	}
	var lines []string
	for _, line := range strings.Split(docs[cr.OriginDoc], "\n") {
		for _, id := range cr.ChangedIDs {
			if strings.Contains(line, id) {
				lines = append(lines, line)
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

// changedIDs returns the explicit ids of req, or those detected between
// its old and new content.
func changedIDs(req Request) ([]string, error) {
	var out []string
	for _, id := range req.ChangedIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if !ids.Valid(id) {
			return nil, fmt.Errorf("%w: %q is not an identifier", ErrInvalidRequest, id)
		}
		out = append(out, id)
	}
	if len(out) == 0 && req.OldContent != "" && req.NewContent != "" {
		out = ids.ChangedIDs(req.OldContent, req.NewContent)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: changed_ids required (explicitly or via old_content and new_content)", ErrInvalidRequest)
	}
	return out, nil
}

func pendingDocs(cr *changes.ChangeRequest) []string {
	var out []string
	for _, s := range cr.PropagationSteps {
		if s.Status != changes.StepDone {
			out = append(out, s.DocType)
		}
	}
	return out
}

// dateOf returns the YYYY-MM-DD part of an RFC3339 timestamp.
func dateOf(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}
