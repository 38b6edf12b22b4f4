package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/specchain/internal/changes"
	"github.com/HendryAvila/specchain/internal/propagation"
)

// ManageChangeRequestTool handles the manage_change_request MCP tool.
// It is the single entry point of the change request lifecycle:
// create → analyze → approve → propagate_next* → validate → complete.
type ManageChangeRequestTool struct {
	engine Engine
}

// NewManageChangeRequestTool creates a ManageChangeRequestTool.
func NewManageChangeRequestTool(engine Engine) *ManageChangeRequestTool {
	return &ManageChangeRequestTool{engine: engine}
}

// Definition returns the MCP tool definition for registration.
func (t *ManageChangeRequestTool) Definition() mcp.Tool {
	actions := make([]string, len(propagation.Actions))
	for i, a := range propagation.Actions {
		actions[i] = string(a)
	}
	statuses := make([]string, len(changes.StatusOrder))
	for i, s := range changes.StatusOrder {
		statuses[i] = string(s)
	}
	statuses = append(statuses, string(changes.StatusCancelled))

	return mcp.NewTool("manage_change_request",
		mcp.WithDescription(
			"Drive a change request through its lifecycle: "+
				"create → analyze → approve → propagate_next (once per step) → validate → complete. "+
				"Upstream steps are suggestions; downstream steps must be applied. "+
				"Also: status, list, cancel, and simulate (dry run, writes nothing). "+
				"Change requests are stored as markdown under workspace-docs/change-requests/.",
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("Operation to perform."),
			mcp.Enum(actions...),
		),
		mcp.WithString("workspace_path",
			mcp.Description("Workspace root holding workspace-docs/. Defaults to the project root."),
		),
		mcp.WithString("cr_id",
			mcp.Description("Change request id (CR-YYMMDD-NNN). Required for every action except create, list and simulate."),
		),
		mcp.WithString("config_path",
			mcp.Description("Path to specchain.yaml, relative to the workspace. Required for analyze, validate and simulate."),
		),
		mcp.WithString("origin_doc",
			mcp.Description("create: document type where the change originates."),
		),
		mcp.WithString("description",
			mcp.Description("create: what changed and why."),
		),
		mcp.WithArray("changed_ids",
			mcp.Description("create/simulate: changed identifiers. Detected from old_content/new_content when omitted."),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("old_content",
			mcp.Description("create/simulate: previous content of the origin document."),
		),
		mcp.WithString("new_content",
			mcp.Description("create/simulate: new content of the origin document."),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("analyze/simulate: limit propagation to this many hops in each direction (0 = unlimited)."),
		),
		mcp.WithArray("skip_docs",
			mcp.Description("analyze/simulate: document types to leave out of the propagation plan."),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("note",
			mcp.Description("propagate_next: note recorded on the completed step."),
		),
		mcp.WithBoolean("suggest_content",
			mcp.Description("propagate_next: include origin lines citing the changed ids for upstream steps (needs config_path)."),
		),
		mcp.WithString("status_filter",
			mcp.Description("list: only change requests in this status."),
			mcp.Enum(statuses...),
		),
		mcp.WithString("reason",
			mcp.Description("cancel: why the change request is abandoned."),
		),
	)
}

// Handle processes the manage_change_request tool call.
func (t *ManageChangeRequestTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := propagation.Action(strings.TrimSpace(req.GetString("action", "")))
	if action == "" {
		return mcp.NewToolResultError("'action' is required: one of create, analyze, approve, propagate_next, validate, complete, status, list, cancel, simulate"), nil
	}

	root, err := t.workspaceRoot(req.GetString("workspace_path", ""))
	if err != nil {
		return nil, err
	}

	res, err := t.engine.Dispatch(ctx, propagation.Request{
		Action:         action,
		WorkspaceRoot:  root,
		CRID:           strings.TrimSpace(req.GetString("cr_id", "")),
		ConfigPath:     req.GetString("config_path", ""),
		OriginDoc:      req.GetString("origin_doc", ""),
		Description:    req.GetString("description", ""),
		ChangedIDs:     listArg(req, "changed_ids"),
		OldContent:     req.GetString("old_content", ""),
		NewContent:     req.GetString("new_content", ""),
		MaxDepth:       intArg(req, "max_depth", 0),
		SkipDocs:       listArg(req, "skip_docs"),
		Note:           req.GetString("note", ""),
		SuggestContent: boolArg(req, "suggest_content", false),
		StatusFilter:   changes.Status(strings.ToUpper(req.GetString("status_filter", ""))),
		Reason:         req.GetString("reason", ""),
	})
	if err != nil {
		return engineError(err)
	}
	return mcp.NewToolResultText(propagation.RenderMarkdown(res)), nil
}

// workspaceRoot returns the explicit workspace, made absolute, or the
// project root.
func (t *ManageChangeRequestTool) workspaceRoot(explicit string) (string, error) {
	if explicit == "" {
		root, err := findProjectRoot()
		if err != nil {
			return "", fmt.Errorf("finding project root: %w", err)
		}
		return root, nil
	}
	abs, err := filepath.Abs(explicit)
	if err != nil {
		return "", fmt.Errorf("resolving workspace path: %w", err)
	}
	return abs, nil
}
