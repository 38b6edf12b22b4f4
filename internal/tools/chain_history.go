package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/specchain/internal/ledger"
)

// History reads the audit ledger. *ledger.Store satisfies it.
type History interface {
	Events(crID string, limit int) ([]ledger.Event, error)
	RecentRuns(limit int) ([]ledger.ValidationRun, error)
}

// ChainHistoryTool handles the chain_history MCP tool.
type ChainHistoryTool struct {
	history History
}

// NewChainHistoryTool creates a ChainHistoryTool.
func NewChainHistoryTool(history History) *ChainHistoryTool {
	return &ChainHistoryTool{history: history}
}

// Definition returns the MCP tool definition for registration.
func (t *ChainHistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("chain_history",
		mcp.WithDescription(
			"Show the audit trail: change request transitions and recent chain validation runs. "+
				"With cr_id, shows that change request's transitions oldest first; "+
				"without it, the latest transitions across all change requests and the latest validation runs.",
		),
		mcp.WithString("cr_id",
			mcp.Description("Only transitions of this change request."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum rows per table (default 20)."),
		),
	)
}

// Handle processes the chain_history tool call.
func (t *ChainHistoryTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	crID := strings.TrimSpace(req.GetString("cr_id", ""))
	limit := intArg(req, "limit", 0)

	events, err := t.history.Events(crID, limit)
	if err != nil {
		return nil, fmt.Errorf("reading transitions: %w", err)
	}

	var b strings.Builder
	if crID != "" {
		fmt.Fprintf(&b, "# History of %s\n\n", crID)
	} else {
		b.WriteString("# Chain History\n\n")
	}

	b.WriteString("## Transitions\n\n")
	if len(events) == 0 {
		b.WriteString("No transitions recorded.\n")
	} else {
		b.WriteString("| When | CR | From | To | Reason |\n")
		b.WriteString("|------|----|------|----|--------|\n")
		for _, e := range events {
			reason := e.Reason
			if reason == "" {
				reason = "—"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", e.CreatedAt, e.CRID, e.FromStatus, e.ToStatus, reason)
		}
	}

	if crID != "" {
		return mcp.NewToolResultText(b.String()), nil
	}

	runs, err := t.history.RecentRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("reading validation runs: %w", err)
	}
	b.WriteString("\n## Validation Runs\n\n")
	if len(runs) == 0 {
		b.WriteString("No validation runs recorded.\n")
		return mcp.NewToolResultText(b.String()), nil
	}
	b.WriteString("| When | Config | Documents | Orphaned | Missing | Stale |\n")
	b.WriteString("|------|--------|-----------|----------|---------|-------|\n")
	for _, r := range runs {
		marker := "✅"
		if r.Issues() > 0 {
			marker = "⚠️"
		}
		fmt.Fprintf(&b, "| %s %s | %s | %d | %d | %d | %d |\n",
			marker, r.CreatedAt, r.ConfigPath, r.Documents, r.OrphanedIDs, r.MissingIDs, r.StalePairs)
	}
	return mcp.NewToolResultText(b.String()), nil
}
