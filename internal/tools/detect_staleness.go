package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/specchain/internal/config"
	"github.com/HendryAvila/specchain/internal/gitlog"
	"github.com/HendryAvila/specchain/internal/staleness"
)

// Scorer rates documentation staleness per feature.
// *staleness.Detector satisfies it.
type Scorer interface {
	Score(ctx context.Context, cfg *config.Config, opts staleness.Options) (*staleness.Report, error)
}

// DetectStalenessTool handles the detect_staleness MCP tool.
type DetectStalenessTool struct {
	scorer Scorer
}

// NewDetectStalenessTool creates a DetectStalenessTool.
func NewDetectStalenessTool(scorer Scorer) *DetectStalenessTool {
	return &DetectStalenessTool{scorer: scorer}
}

// Definition returns the MCP tool definition for registration.
func (t *DetectStalenessTool) Definition() mcp.Tool {
	return mcp.NewTool("detect_staleness",
		mcp.WithDescription(
			"Score how stale the documentation of each configured feature is (0-100), "+
				"from the age of its documents and the code churn in its files since a "+
				"reference point. Requires a git repository and a feature_file_map in specchain.yaml.",
		),
		mcp.WithString("config_path",
			mcp.Description("Path to specchain.yaml. Defaults to the one found from the working directory."),
		),
		mcp.WithString("since",
			mcp.Description("Reference point: \"30d\", a git ref, or a YYYY-MM-DD date. "+
				"Defaults to the latest tag, or 30 days when there is none."),
		),
		mcp.WithNumber("threshold",
			mcp.Description("Score at or above which a feature counts as stale (default 50)."),
		),
	)
}

// Handle processes the detect_staleness tool call.
func (t *DetectStalenessTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, path, err := resolveConfig(req.GetString("config_path", ""))
	if err != nil {
		return nil, fmt.Errorf("resolving config: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report, err := t.scorer.Score(ctx, cfg, staleness.Options{
		Since:     req.GetString("since", ""),
		Threshold: intArg(req, "threshold", 0),
	})
	if err != nil {
		if errors.Is(err, gitlog.ErrNotRepository) || errors.Is(err, staleness.ErrInvalidSince) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("scoring staleness: %w", err)
	}
	return mcp.NewToolResultText(staleness.RenderMarkdown(report)), nil
}
