// Package prompts implements MCP prompt handlers for change propagation.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// PropagatePrompt handles the specchain-propagate MCP prompt.
// It walks the AI through one change request from creation to completion.
type PropagatePrompt struct{}

// NewPropagatePrompt creates a PropagatePrompt.
func NewPropagatePrompt() *PropagatePrompt {
	return &PropagatePrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *PropagatePrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("specchain-propagate",
		mcp.WithPromptDescription(
			"Propagate a document change through the chain. "+
				"Creates (or resumes) a change request, analyzes its impact, "+
				"and applies each propagation step until the chain validates.",
		),
		mcp.WithArgument("origin_doc",
			mcp.ArgumentDescription("Document type you changed, e.g. requirements"),
		),
		mcp.WithArgument("description",
			mcp.ArgumentDescription("What changed and why"),
		),
		mcp.WithArgument("cr_id",
			mcp.ArgumentDescription("Resume this change request instead of creating one"),
		),
	)
}

// Handle processes the specchain-propagate prompt request.
func (p *PropagatePrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	crID := strings.TrimSpace(args["cr_id"])
	origin := strings.TrimSpace(args["origin_doc"])
	if origin == "" {
		origin = "<the document type you changed>"
	}
	description := strings.TrimSpace(args["description"])
	if description == "" {
		description = "<a one-line summary of the change>"
	}

	var start string
	if crID != "" {
		start = fmt.Sprintf(
			"1. Call `manage_change_request` with action `status` and cr_id `%s`.\n"+
				"2. Continue from its current status using the steps below.\n", crID)
	} else {
		start = fmt.Sprintf(
			"1. Call `manage_change_request` with action `create`, origin_doc `%s`, "+
				"description \"%s\", and either the changed ids or the old and new content.\n"+
				"2. Note the CR id it returns.\n", origin, description)
	}

	return &mcp.GetPromptResult{
		Description: "Change propagation workflow",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"I changed a document in the chain and need the change propagated.\n\n" +
						start +
						"3. Run action `analyze` with config_path `specchain.yaml` and show me the affected sections.\n" +
						"4. Wait for my go-ahead, then run action `approve`. Mention any conflict warnings.\n" +
						"5. Run action `propagate_next` repeatedly. For each step:\n" +
						"   - UPSTREAM SUGGESTION: propose the edit and ask me before applying it\n" +
						"   - DOWNSTREAM CASCADE: update the document so it reflects the change\n" +
						"6. When all steps are complete, run action `validate` and fix any orphaned or missing ids it reports.\n" +
						"7. Run action `complete` and summarize what changed in each document.",
				),
			},
		},
	}, nil
}
