package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/specchain/internal/chain"
)

// ValidateChainTool handles the validate_chain MCP tool.
// It checks every adjacent document pair for orphaned and missing ids.
type ValidateChainTool struct {
	engine Engine
}

// NewValidateChainTool creates a ValidateChainTool.
func NewValidateChainTool(engine Engine) *ValidateChainTool {
	return &ValidateChainTool{engine: engine}
}

// Definition returns the MCP tool definition for registration.
func (t *ValidateChainTool) Definition() mcp.Tool {
	return mcp.NewTool("validate_chain",
		mcp.WithDescription(
			"Validate the consistency of the document chain. For every adjacent pair "+
				"(upstream → downstream) it reports orphaned ids (defined upstream, never "+
				"referenced downstream) and missing ids (referenced downstream, never defined "+
				"upstream), staleness warnings and a traceability matrix.",
		),
		mcp.WithString("config_path",
			mcp.Description("Path to specchain.yaml. Relative paths resolve against the project root. "+
				"Defaults to the specchain.yaml found from the working directory."),
		),
	)
}

// Handle processes the validate_chain tool call.
func (t *ValidateChainTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, path, err := resolveConfig(req.GetString("config_path", ""))
	if err != nil {
		return nil, fmt.Errorf("resolving config: %w", err)
	}

	report, err := t.engine.ValidateChain(ctx, root, path)
	if err != nil {
		return engineError(err)
	}
	return mcp.NewToolResultText(chain.RenderMarkdown(report)), nil
}
