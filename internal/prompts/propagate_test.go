package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func promptText(t *testing.T, args map[string]string) string {
	t.Helper()
	req := mcp.GetPromptRequest{}
	req.Params.Arguments = args

	result, err := NewPropagatePrompt().Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(result.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(result.Messages))
	}
	tc, ok := result.Messages[0].Content.(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T", result.Messages[0].Content)
	}
	return tc.Text
}

func TestPropagatePrompt_Definition(t *testing.T) {
	def := NewPropagatePrompt().Definition()
	if def.Name != "specchain-propagate" {
		t.Errorf("name = %q", def.Name)
	}
	if len(def.Arguments) != 3 {
		t.Errorf("got %d arguments, want 3", len(def.Arguments))
	}
}

func TestPropagatePrompt_Create(t *testing.T) {
	text := promptText(t, map[string]string{"origin_doc": "requirements", "description": "Add MFA"})
	if !strings.Contains(text, "action `create`, origin_doc `requirements`") {
		t.Errorf("prompt should start with create:\n%s", text)
	}
	if !strings.Contains(text, "\"Add MFA\"") {
		t.Error("prompt should carry the description")
	}
	if !strings.Contains(text, "action `complete`") {
		t.Error("prompt should end with complete")
	}
}

func TestPropagatePrompt_Resume(t *testing.T) {
	text := promptText(t, map[string]string{"cr_id": "CR-260223-001"})
	if !strings.Contains(text, "action `status` and cr_id `CR-260223-001`") {
		t.Errorf("prompt should resume the CR:\n%s", text)
	}
	if strings.Contains(text, "action `create`") {
		t.Error("resume should not create a new CR")
	}
}

func TestPropagatePrompt_NoArguments(t *testing.T) {
	text := promptText(t, nil)
	if !strings.Contains(text, "<the document type you changed>") {
		t.Errorf("missing placeholders:\n%s", text)
	}
}
