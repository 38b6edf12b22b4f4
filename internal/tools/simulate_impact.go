package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/specchain/internal/propagation"
)

// SimulateImpactTool handles the simulate_impact MCP tool.
// It previews which sections a change would touch without creating a
// change request.
type SimulateImpactTool struct {
	engine Engine
}

// NewSimulateImpactTool creates a SimulateImpactTool.
func NewSimulateImpactTool(engine Engine) *SimulateImpactTool {
	return &SimulateImpactTool{engine: engine}
}

// Definition returns the MCP tool definition for registration.
func (t *SimulateImpactTool) Definition() mcp.Tool {
	return mcp.NewTool("simulate_impact",
		mcp.WithDescription(
			"Dry-run impact analysis. Given changed ids (or the old and new content of a "+
				"document, from which they are detected), list every section across the chain "+
				"that references them, with severity, a dependency graph and, when origin_doc is "+
				"given, the propagation plan. Nothing is written.",
		),
		mcp.WithString("config_path",
			mcp.Description("Path to specchain.yaml. Defaults to the one found from the working directory."),
		),
		mcp.WithArray("changed_ids",
			mcp.Description("Changed identifiers, e.g. [\"REQ-001\", \"SCR-003\"]. A comma-separated string also works."),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("old_content",
			mcp.Description("Previous document content. Used with new_content when changed_ids is empty."),
		),
		mcp.WithString("new_content",
			mcp.Description("New document content. Used with old_content when changed_ids is empty."),
		),
		mcp.WithString("origin_doc",
			mcp.Description("Document type the change starts from. When set, the propagation plan is included."),
		),
	)
}

// Handle processes the simulate_impact tool call.
func (t *SimulateImpactTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, path, err := resolveConfig(req.GetString("config_path", ""))
	if err != nil {
		return nil, fmt.Errorf("resolving config: %w", err)
	}

	res, err := t.engine.Dispatch(ctx, propagation.Request{
		Action:        propagation.ActionSimulate,
		WorkspaceRoot: root,
		ConfigPath:    path,
		OriginDoc:     req.GetString("origin_doc", ""),
		ChangedIDs:    listArg(req, "changed_ids"),
		OldContent:    req.GetString("old_content", ""),
		NewContent:    req.GetString("new_content", ""),
	})
	if err != nil {
		return engineError(err)
	}
	return mcp.NewToolResultText(propagation.RenderMarkdown(res)), nil
}
