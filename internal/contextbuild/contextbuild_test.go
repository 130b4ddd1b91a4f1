package contextbuild

import (
	"testing"

	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/testutil"
)

func TestAssemble_AppendsExtraSections(t *testing.T) {
	ctx := Assemble("base prompt", nil, nil, Options{ExtraSystemSections: []string{"project notes"}})
	testutil.RequireStringContains(t, ctx.SystemPrompt, "base prompt", "base prompt kept")
	testutil.RequireStringContains(t, ctx.SystemPrompt, "project notes", "extra section appended")
}

func TestAssemble_RepairsOrphanedToolCall(t *testing.T) {
	history := []event.Message{
		event.NewUserText("run it", 0),
		{Role: event.RoleAssistant, Content: []event.Block{event.ToolCallBlock("call_1", "bash", nil)}, StopReason: event.StopAborted},
		event.NewUserText("what happened?", 0),
	}
	ctx := Assemble("sys", history, nil, Options{})
	testutil.RequireTrue(t, len(ctx.Messages) == 4, "expected a synthetic tool result inserted")
	testutil.RequireTrue(t, ctx.Messages[2].Role == event.RoleToolResult, "expected inserted message to be a tool result")
}

func TestValidateToolSchemas_RejectsInvalidSchema(t *testing.T) {
	tools := []event.Tool{{
		Name:       "broken",
		Parameters: map[string]any{"type": "not-a-real-type"},
	}}
	err := ValidateToolSchemas(tools)
	testutil.RequireTrue(t, err != nil, "expected schema validation to fail")
}

func TestValidateToolSchemas_AcceptsValidSchema(t *testing.T) {
	tools := []event.Tool{{
		Name: "ok",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"path": map[string]any{"type": "string"}},
		},
	}}
	err := ValidateToolSchemas(tools)
	testutil.RequireNoError(t, err, "expected schema validation to pass")
}
