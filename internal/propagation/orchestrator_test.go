package propagation

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/specchain/internal/chain"
	"github.com/HendryAvila/specchain/internal/changes"
	"github.com/HendryAvila/specchain/internal/gitlog"
)

const workspaceYAML = `
project:
  name: shop
output:
  directory: docs
chain:
  documents:
    functions-list: {output: docs/functions-list.md}
    requirements: {output: docs/requirements.md}
    basic-design: {output: docs/basic-design.md}
    detail-design: {output: docs/detail-design.md}
`

var workspaceDocs = map[string]string{
	"functions-list.md": "# Functions\n\n## F-001 Login\n",
	"requirements.md":   "# Requirements\n\n## REQ-001 Login\nCovers F-001.\n\n## REQ-002 Logout\nCovers F-001.\n",
	"basic-design.md":   "# Basic design\n\n## SCR-001 Login screen\nImplements REQ-001 and REQ-002.\n",
	"detail-design.md":  "# Detail design\n\n## CLS-001 LoginController\nBacks SCR-001 for REQ-001.\n",
}

// --- Fakes ---

type fakeCheckpointer struct {
	mu       sync.Mutex
	messages []string
	paths    [][]string
	result   gitlog.CheckpointResult
	err      error
}

func (f *fakeCheckpointer) Checkpoint(_ context.Context, message string, paths ...string) (gitlog.CheckpointResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	f.paths = append(f.paths, paths)
	return f.result, f.err
}

func (f *fakeCheckpointer) opener() CheckpointOpener {
	return func(string) Checkpointer { return f }
}

type transitionEvent struct {
	id       string
	from, to changes.Status
	reason   string
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []transitionEvent
	validations []int
}

func (r *recordingObserver) OnTransition(cr *changes.ChangeRequest, from changes.Status, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, transitionEvent{id: cr.ID, from: from, to: cr.Status, reason: reason})
}

func (r *recordingObserver) OnChainValidated(_ string, report *chain.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validations = append(r.validations, report.Issues())
}

// --- Helpers ---

type harness struct {
	root string
	orch *Orchestrator
	cp   *fakeCheckpointer
	obs  *recordingObserver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "specchain.yaml"), []byte(workspaceYAML), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	for name, text := range workspaceDocs {
		require.NoError(t, os.WriteFile(filepath.Join(root, "docs", name), []byte(text), 0o644))
	}

	h := &harness{
		root: root,
		cp:   &fakeCheckpointer{result: gitlog.CheckpointResult{Created: true, Commit: "abc123"}},
		obs:  &recordingObserver{},
	}
	h.orch = New(changes.NewFileStore(), chain.NewLinker(nil, nil),
		WithCheckpoints(h.cp.opener()),
		WithObserver(h.obs),
		WithObserver(nil),
	)
	return h
}

func (h *harness) do(t *testing.T, req Request) *Result {
	t.Helper()
	req.WorkspaceRoot = h.root
	res, err := h.orch.Dispatch(context.Background(), req)
	require.NoError(t, err, "action %s", req.Action)
	return res
}

func (h *harness) fail(t *testing.T, req Request) error {
	t.Helper()
	req.WorkspaceRoot = h.root
	_, err := h.orch.Dispatch(context.Background(), req)
	require.Error(t, err, "action %s should fail", req.Action)
	return err
}

// create + analyze + approve, returning the CR id.
func (h *harness) approved(t *testing.T, changed ...string) string {
	t.Helper()
	id := h.do(t, Request{Action: ActionCreate, OriginDoc: "requirements", Description: "Add MFA", ChangedIDs: changed}).CR.ID
	h.do(t, Request{Action: ActionAnalyze, CRID: id, ConfigPath: "specchain.yaml"})
	h.do(t, Request{Action: ActionApprove, CRID: id})
	return id
}

func (h *harness) crFile(t *testing.T, id string) string {
	t.Helper()
	data, err := os.ReadFile(changes.ChangeRequestPath(h.root, id))
	require.NoError(t, err)
	return string(data)
}

// --- Lifecycle ---

func TestOrchestrator_FullLifecycle(t *testing.T) {
	h := newHarness(t)

	created := h.do(t, Request{Action: ActionCreate, OriginDoc: "requirements", Description: "Add MFA", ChangedIDs: []string{"REQ-001"}})
	id := created.CR.ID
	assert.Equal(t, changes.StatusInitiated, created.CR.Status)

	analyzed := h.do(t, Request{Action: ActionAnalyze, CRID: id, ConfigPath: "specchain.yaml"})
	assert.Equal(t, changes.StatusImpactAnalyzed, analyzed.CR.Status)
	assert.Equal(t, []string{
		"upstream:functions-list",
		"downstream:basic-design",
		"downstream:detail-design",
	}, stepDocs(analyzed.Steps))
	require.NotNil(t, analyzed.Impact)
	assert.Contains(t, analyzed.Impact.AffectedDocs, "basic-design")
	assert.Contains(t, analyzed.CR.ImpactSummary, "affected sections across")

	err := h.fail(t, Request{Action: ActionPropagateNext, CRID: id})
	assert.ErrorIs(t, err, changes.ErrInvalidTransition)
	assert.True(t, IsUserError(err))

	approved := h.do(t, Request{Action: ActionApprove, CRID: id})
	assert.Equal(t, changes.StatusApproved, approved.CR.Status)
	assert.Empty(t, approved.CR.ConflictWarnings)

	first := h.do(t, Request{Action: ActionPropagateNext, CRID: id, ConfigPath: "specchain.yaml", Note: "checked"})
	assert.Equal(t, changes.StatusPropagating, first.CR.Status)
	require.NotNil(t, first.Checkpoint)
	assert.True(t, first.Checkpoint.Created)
	require.NotNil(t, first.Step)
	assert.Equal(t, 1, first.Step.Number)
	assert.Equal(t, 3, first.Step.Total)
	assert.Equal(t, "functions-list", first.Step.DocType)
	assert.True(t, strings.HasPrefix(first.Step.Instruction, "UPSTREAM SUGGESTION"))
	assert.False(t, first.AllStepsComplete)

	require.Len(t, h.cp.messages, 1)
	assert.Equal(t, "chore: pre-"+id+" checkpoint", h.cp.messages[0])
	docs := filepath.Join(h.root, "docs")
	assert.Equal(t, []string{
		changes.WorkspaceDocsPath(h.root),
		filepath.Join(docs, "functions-list.md"),
		filepath.Join(docs, "requirements.md"),
		filepath.Join(docs, "basic-design.md"),
		filepath.Join(docs, "detail-design.md"),
		docs,
	}, h.cp.paths[0])

	err = h.fail(t, Request{Action: ActionValidate, CRID: id, ConfigPath: "specchain.yaml"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "2 propagation steps still pending: basic-design, detail-design")

	second := h.do(t, Request{Action: ActionPropagateNext, CRID: id})
	assert.True(t, strings.HasPrefix(second.Step.Instruction, "DOWNSTREAM CASCADE: Regenerate basic-design"))
	third := h.do(t, Request{Action: ActionPropagateNext, CRID: id})
	assert.Equal(t, "detail-design", third.Step.DocType)
	assert.True(t, third.AllStepsComplete)
	assert.Len(t, h.cp.messages, 1, "checkpoint only on the first call")

	before := h.crFile(t, id)
	done := h.do(t, Request{Action: ActionPropagateNext, CRID: id})
	assert.True(t, done.AllStepsComplete)
	assert.Nil(t, done.Step)
	assert.Equal(t, before, h.crFile(t, id), "completed propagation must not write")

	validated := h.do(t, Request{Action: ActionValidate, CRID: id, ConfigPath: "specchain.yaml"})
	assert.Equal(t, changes.StatusValidated, validated.CR.Status)
	require.NotNil(t, validated.Chain)
	last := validated.CR.History[len(validated.CR.History)-1]
	assert.Equal(t, "chain validation: "+strconv.Itoa(validated.Chain.Issues())+" issues", last.Reason)

	completed := h.do(t, Request{Action: ActionComplete, CRID: id})
	assert.Equal(t, changes.StatusCompleted, completed.CR.Status)
	changelog, err := os.ReadFile(ChangelogPath(h.root))
	require.NoError(t, err)
	assert.Contains(t, string(changelog), "| requirements | Add MFA | "+id+" |")

	err = h.fail(t, Request{Action: ActionCancel, CRID: id})
	assert.ErrorIs(t, err, changes.ErrInvalidTransition)

	stored := h.do(t, Request{Action: ActionStatus, CRID: id}).CR
	var statuses []changes.Status
	for _, e := range stored.History {
		statuses = append(statuses, e.Status)
	}
	assert.Equal(t, changes.StatusOrder, statuses)
	for _, s := range stored.PropagationSteps {
		assert.Equal(t, changes.StepDone, s.Status)
	}
	assert.Equal(t, "checked", stored.PropagationSteps[0].Note)

	h.obs.mu.Lock()
	defer h.obs.mu.Unlock()
	require.Len(t, h.obs.transitions, len(changes.StatusOrder)-1)
	assert.Equal(t, transitionEvent{id: id, from: changes.StatusInitiated, to: changes.StatusAnalyzing}, h.obs.transitions[0])
	assert.Equal(t, changes.StatusApproved, h.obs.transitions[3].from)
	assert.Equal(t, changes.StatusPropagating, h.obs.transitions[3].to)
	assert.Len(t, h.obs.validations, 1)
}

// --- create ---

func TestCreate_DetectsChangedIDsFromContent(t *testing.T) {
	h := newHarness(t)
	res := h.do(t, Request{
		Action:      ActionCreate,
		OriginDoc:   "requirements",
		Description: "Reword login",
		OldContent:  "## REQ-001 Login\n## REQ-002 Logout\n",
		NewContent:  "## REQ-001 Login with MFA\n## REQ-002 Logout\n## REQ-003 Reset\n",
	})
	assert.Equal(t, []string{"REQ-001", "REQ-003"}, res.CR.ChangedIDs)
}

func TestCreate_RequiresParameters(t *testing.T) {
	h := newHarness(t)
	cases := map[string]Request{
		"no origin":      {Action: ActionCreate, Description: "x", ChangedIDs: []string{"REQ-001"}},
		"no description": {Action: ActionCreate, OriginDoc: "requirements", ChangedIDs: []string{"REQ-001"}},
		"no ids":         {Action: ActionCreate, OriginDoc: "requirements", Description: "x"},
		"bad id":         {Action: ActionCreate, OriginDoc: "requirements", Description: "x", ChangedIDs: []string{"login"}},
		"unchanged":      {Action: ActionCreate, OriginDoc: "requirements", Description: "x", OldContent: "REQ-001", NewContent: "REQ-001"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			err := h.fail(t, req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	entries, _ := os.ReadDir(changes.ChangeRequestsPath(h.root))
	assert.Empty(t, entries)
}

// --- analyze ---

func TestAnalyze_MaxDepthAndSkipDocs(t *testing.T) {
	h := newHarness(t)
	id := h.do(t, Request{Action: ActionCreate, OriginDoc: "requirements", Description: "x", ChangedIDs: []string{"REQ-001"}}).CR.ID

	res := h.do(t, Request{Action: ActionAnalyze, CRID: id, ConfigPath: "specchain.yaml", MaxDepth: 1, SkipDocs: []string{"functions-list"}})
	assert.Equal(t, []string{"downstream:basic-design"}, stepDocs(res.CR.PropagationSteps))
}

func TestAnalyze_BadConfigWritesNothing(t *testing.T) {
	h := newHarness(t)
	id := h.do(t, Request{Action: ActionCreate, OriginDoc: "requirements", Description: "x", ChangedIDs: []string{"REQ-001"}}).CR.ID
	before := h.crFile(t, id)

	err := h.fail(t, Request{Action: ActionAnalyze, CRID: id, ConfigPath: "missing.yaml"})
	assert.True(t, IsUserError(err))
	assert.Equal(t, before, h.crFile(t, id))

	err = h.fail(t, Request{Action: ActionAnalyze, CRID: id})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestAnalyze_RejectsOversizedPlan(t *testing.T) {
	h := newHarness(t)
	var yml strings.Builder
	yml.WriteString("chain:\n  order: [")
	for i := 0; i <= changes.MaxPropagationSteps+1; i++ {
		if i > 0 {
			yml.WriteString(", ")
		}
		yml.WriteString("d" + strconv.Itoa(i))
	}
	yml.WriteString("]\n  documents:\n")
	for i := 0; i <= changes.MaxPropagationSteps+1; i++ {
		yml.WriteString("    d" + strconv.Itoa(i) + ": {output: long/d" + strconv.Itoa(i) + ".md}\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "long.yaml"), []byte(yml.String()), 0o644))

	id := h.do(t, Request{Action: ActionCreate, OriginDoc: "d0", Description: "x", ChangedIDs: []string{"REQ-001"}}).CR.ID
	before := h.crFile(t, id)

	err := h.fail(t, Request{Action: ActionAnalyze, CRID: id, ConfigPath: "long.yaml"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "exceed the maximum of 20")
	assert.Equal(t, before, h.crFile(t, id), "nothing is written")

	res := h.do(t, Request{Action: ActionAnalyze, CRID: id, ConfigPath: "long.yaml", MaxDepth: 3})
	assert.Len(t, res.CR.PropagationSteps, 3)
}

// --- approve ---

func TestApprove_RecordsConflictWarnings(t *testing.T) {
	h := newHarness(t)
	firstID := h.approved(t, "REQ-001")

	secondID := h.do(t, Request{Action: ActionCreate, OriginDoc: "requirements", Description: "Tweak login", ChangedIDs: []string{"REQ-001", "REQ-002"}}).CR.ID
	h.do(t, Request{Action: ActionAnalyze, CRID: secondID, ConfigPath: "specchain.yaml"})
	res := h.do(t, Request{Action: ActionApprove, CRID: secondID})

	assert.Equal(t, changes.StatusApproved, res.CR.Status, "conflicts never block approval")
	require.Len(t, res.Conflicts, 2)
	assert.Equal(t, []string{
		"changed_ids overlap with " + firstID + ": REQ-001",
		"propagation_docs overlap with " + firstID + ": functions-list, basic-design, detail-design",
	}, res.CR.ConflictWarnings)

	stored := h.do(t, Request{Action: ActionStatus, CRID: secondID}).CR
	assert.Equal(t, res.CR.ConflictWarnings, stored.ConflictWarnings)
}

// --- propagate_next ---

func TestPropagateNext_CheckpointFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.cp.err = errors.New("git exploded")
	id := h.approved(t, "REQ-001")

	res := h.do(t, Request{Action: ActionPropagateNext, CRID: id})
	assert.Equal(t, changes.StatusPropagating, res.CR.Status)
	require.NotNil(t, res.Checkpoint)
	assert.False(t, res.Checkpoint.Created)
	assert.Equal(t, "git exploded", res.Checkpoint.Skipped)
	assert.Equal(t, []string{changes.WorkspaceDocsPath(h.root)}, h.cp.paths[0], "without a config only workspace-docs is staged")
}

func TestPropagateNext_WithoutCheckpointer(t *testing.T) {
	h := newHarness(t)
	h.orch = New(changes.NewFileStore(), chain.NewLinker(nil, nil))
	id := h.approved(t, "REQ-001")

	res := h.do(t, Request{Action: ActionPropagateNext, CRID: id})
	assert.Equal(t, "checkpoints disabled", res.Checkpoint.Skipped)
}

func TestPropagateNext_SuggestedContent(t *testing.T) {
	h := newHarness(t)
	id := h.approved(t, "REQ-002")

	res := h.do(t, Request{Action: ActionPropagateNext, CRID: id, ConfigPath: "specchain.yaml", SuggestContent: true})
	require.NotNil(t, res.Step)
	assert.Equal(t, changes.DirectionUpstream, res.Step.Direction)
	assert.Equal(t, "## REQ-002 Logout", res.Step.SuggestedContent)

	err := h.fail(t, Request{Action: ActionPropagateNext, CRID: id, SuggestContent: true})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPropagateNext_NoSteps(t *testing.T) {
	h := newHarness(t)
	id := h.do(t, Request{Action: ActionCreate, OriginDoc: "requirements", Description: "x", ChangedIDs: []string{"REQ-001"}}).CR.ID
	h.do(t, Request{Action: ActionAnalyze, CRID: id, ConfigPath: "specchain.yaml", SkipDocs: []string{"functions-list", "basic-design", "detail-design"}})
	h.do(t, Request{Action: ActionApprove, CRID: id})

	res := h.do(t, Request{Action: ActionPropagateNext, CRID: id})
	assert.Equal(t, changes.StatusPropagating, res.CR.Status)
	assert.True(t, res.AllStepsComplete)
	assert.Nil(t, res.Step)

	validated := h.do(t, Request{Action: ActionValidate, CRID: id, ConfigPath: "specchain.yaml"})
	assert.Equal(t, changes.StatusValidated, validated.CR.Status)
}

// --- read-only actions ---

func TestList_FiltersByStatus(t *testing.T) {
	h := newHarness(t)
	approvedID := h.approved(t, "REQ-001")
	initiatedID := h.do(t, Request{Action: ActionCreate, OriginDoc: "requirements", Description: "y", ChangedIDs: []string{"REQ-002"}}).CR.ID

	all := h.do(t, Request{Action: ActionList})
	assert.Len(t, all.ChangeRequests, 2)

	only := h.do(t, Request{Action: ActionList, StatusFilter: changes.StatusInitiated})
	require.Len(t, only.ChangeRequests, 1)
	assert.Equal(t, initiatedID, only.ChangeRequests[0].ID)
	assert.NotEqual(t, approvedID, only.ChangeRequests[0].ID)

	err := h.fail(t, Request{Action: ActionList, StatusFilter: "DONE"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestStatus_Errors(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.fail(t, Request{Action: ActionStatus}), ErrInvalidRequest)
	assert.ErrorIs(t, h.fail(t, Request{Action: ActionStatus, CRID: "../etc"}), ErrInvalidRequest)
	assert.ErrorIs(t, h.fail(t, Request{Action: ActionStatus, CRID: "CR-260101-001"}), changes.ErrNotFound)
}

func TestCancel_DefaultReason(t *testing.T) {
	h := newHarness(t)
	id := h.do(t, Request{Action: ActionCreate, OriginDoc: "requirements", Description: "x", ChangedIDs: []string{"REQ-001"}}).CR.ID

	res := h.do(t, Request{Action: ActionCancel, CRID: id})
	assert.Equal(t, changes.StatusCancelled, res.CR.Status)
	assert.Equal(t, "cancelled by user", res.CR.History[len(res.CR.History)-1].Reason)
	assert.True(t, res.CR.IsTerminal())
}

// --- simulate ---

func TestSimulate_WritesNothing(t *testing.T) {
	h := newHarness(t)
	res := h.do(t, Request{Action: ActionSimulate, ConfigPath: "specchain.yaml", OriginDoc: "requirements", ChangedIDs: []string{"REQ-001"}})

	assert.True(t, res.DryRun)
	assert.Nil(t, res.CR)
	assert.Len(t, res.Steps, 3)
	assert.Contains(t, res.Impact.DependencyGraph, "flowchart TD")
	_, err := os.Stat(changes.WorkspaceDocsPath(h.root))
	assert.True(t, os.IsNotExist(err))
}

func TestSimulate_WithoutOrigin(t *testing.T) {
	h := newHarness(t)
	res := h.do(t, Request{Action: ActionSimulate, ConfigPath: "specchain.yaml", ChangedIDs: []string{"SCR-001"}})
	assert.Empty(t, res.Steps)
	assert.Equal(t, []string{"basic-design", "detail-design"}, res.Impact.AffectedDocs)
}

// --- dispatch ---

func TestDispatch_Rejects(t *testing.T) {
	orch := New(changes.NewFileStore(), chain.NewLinker(nil, nil))

	_, err := orch.Dispatch(context.Background(), Request{Action: "rollback", WorkspaceRoot: t.TempDir()})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "must be one of")

	_, err = orch.Dispatch(context.Background(), Request{Action: ActionList})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestActions_AllValid(t *testing.T) {
	for _, a := range Actions {
		assert.NoError(t, ValidateAction(a))
	}
	assert.Len(t, Actions, len(validActions))
}

func TestIsUserError(t *testing.T) {
	assert.False(t, IsUserError(errors.New("disk on fire")))
	assert.True(t, IsUserError(&changes.TransitionError{From: changes.StatusInitiated, To: changes.StatusApproved}))
}

// Without output.directory the checkpoint must not fall back to the whole
// project directory.
const rootedYAML = `
chain:
  documents:
    requirements: {output: docs/requirements.md}
    basic-design: {output: docs/basic-design.md}
`

func gitIn(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

func TestPropagateNext_CheckpointCommitsOnlyChainFiles(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	root := t.TempDir()
	gitIn(t, root, "init", "-q")
	gitIn(t, root, "config", "user.email", "test@example.com")
	gitIn(t, root, "config", "user.name", "Test")
	gitIn(t, root, "config", "commit.gpgsign", "false")

	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("specchain.yaml", rootedYAML)
	write("docs/requirements.md", workspaceDocs["requirements.md"])
	write("docs/basic-design.md", workspaceDocs["basic-design.md"])
	gitIn(t, root, "add", "-A")
	gitIn(t, root, "commit", "-q", "-m", "init")

	orch := New(changes.NewFileStore(), chain.NewLinker(nil, nil),
		WithCheckpoints(GitCheckpoints(10*time.Second, nil)))
	do := func(req Request) *Result {
		t.Helper()
		req.WorkspaceRoot = root
		req.ConfigPath = "specchain.yaml"
		res, err := orch.Dispatch(context.Background(), req)
		require.NoError(t, err, "action %s", req.Action)
		return res
	}

	id := do(Request{Action: ActionCreate, OriginDoc: "requirements", Description: "Add MFA", ChangedIDs: []string{"REQ-001"}}).CR.ID
	do(Request{Action: ActionAnalyze, CRID: id})
	do(Request{Action: ActionApprove, CRID: id})

	write("docs/requirements.md", workspaceDocs["requirements.md"]+"\n## REQ-003 MFA\n")
	write("src/secret_wip.go", "package src\n")
	write("notes.txt", "unrelated\n")
	gitIn(t, root, "add", "notes.txt")

	res := do(Request{Action: ActionPropagateNext, CRID: id})
	require.NotNil(t, res.Checkpoint)
	require.True(t, res.Checkpoint.Created, res.Checkpoint.Skipped)

	assert.Equal(t, "chore: pre-"+id+" checkpoint", gitIn(t, root, "log", "-1", "--format=%s"))
	committed := strings.Split(gitIn(t, root, "show", "--name-only", "--format=", "HEAD"), "\n")
	assert.ElementsMatch(t, []string{
		"docs/requirements.md",
		"workspace-docs/change-requests/" + id + ".md",
	}, committed)
	assert.Equal(t, "notes.txt", gitIn(t, root, "diff", "--cached", "--name-only"))
}
