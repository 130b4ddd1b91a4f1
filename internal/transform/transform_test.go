package transform

import (
	"testing"

	"github.com/openclaude/agentcore/internal/event"
)

func TestForTarget_DemotesThinkingForCompletionsAPI(t *testing.T) {
	ctx := event.Context{
		Messages: []event.Message{
			{
				Role:    event.RoleAssistant,
				Content: []event.Block{event.Thought("step one", "sig")},
			},
		},
	}

	out := ForTarget(ctx, "openai-completions")
	blocks := out.Messages[0].Content
	if len(blocks) != 1 || blocks[0].Kind != event.BlockText {
		t.Fatalf("expected demoted text block, got %#v", blocks)
	}
	if blocks[0].Text != "<thinking>\nstep one\n</thinking>" {
		t.Errorf("unexpected demoted text: %q", blocks[0].Text)
	}
}

func TestForTarget_KeepsThinkingForAnthropic(t *testing.T) {
	ctx := event.Context{
		Messages: []event.Message{
			{Role: event.RoleAssistant, Content: []event.Block{event.Thought("step one", "sig")}},
		},
	}

	out := ForTarget(ctx, "anthropic-messages")
	if out.Messages[0].Content[0].Kind != event.BlockThinking {
		t.Fatalf("thinking block should survive for anthropic target")
	}
}

func TestForTarget_DoesNotMutateOriginal(t *testing.T) {
	ctx := event.Context{
		Messages: []event.Message{
			{Role: event.RoleAssistant, Content: []event.Block{event.Thought("step one", "sig")}},
		},
	}
	_ = ForTarget(ctx, "openai-completions")
	if ctx.Messages[0].Content[0].Kind != event.BlockThinking {
		t.Fatalf("original context was mutated")
	}
}

func TestForTarget_InsertsSyntheticResultForOrphanedCall(t *testing.T) {
	ctx := event.Context{
		Messages: []event.Message{
			event.NewUserText("run it", 0),
			{
				Role: event.RoleAssistant,
				Content: []event.Block{
					event.ToolCallBlock("call_1", "bash", map[string]any{"cmd": "ls"}),
				},
			},
		},
	}

	out := ForTarget(ctx, "anthropic-messages")
	if len(out.Messages) != 3 {
		t.Fatalf("expected synthetic tool result inserted, got %d messages", len(out.Messages))
	}
	synth := out.Messages[2]
	if synth.Role != event.RoleToolResult || synth.ToolCallID != "call_1" || !synth.IsError {
		t.Fatalf("unexpected synthetic message: %#v", synth)
	}
}

func TestForTarget_LeavesSatisfiedToolCallsAlone(t *testing.T) {
	ctx := event.Context{
		Messages: []event.Message{
			{
				Role:    event.RoleAssistant,
				Content: []event.Block{event.ToolCallBlock("call_1", "bash", nil)},
			},
			{Role: event.RoleToolResult, ToolCallID: "call_1"},
		},
	}

	out := ForTarget(ctx, "anthropic-messages")
	if len(out.Messages) != 2 {
		t.Fatalf("expected no synthetic insertion, got %d messages", len(out.Messages))
	}
}

func TestForTarget_HandlesMultipleOrphanedCallsInOrder(t *testing.T) {
	ctx := event.Context{
		Messages: []event.Message{
			{
				Role: event.RoleAssistant,
				Content: []event.Block{
					event.ToolCallBlock("call_1", "bash", nil),
					event.ToolCallBlock("call_2", "read", nil),
				},
			},
		},
	}

	out := ForTarget(ctx, "anthropic-messages")
	if len(out.Messages) != 3 {
		t.Fatalf("expected two synthetic results, got %d messages", len(out.Messages))
	}
	if out.Messages[1].ToolCallID != "call_1" || out.Messages[2].ToolCallID != "call_2" {
		t.Fatalf("synthetic results out of order: %#v", out.Messages[1:])
	}
}

func TestSanitizeToolCallID(t *testing.T) {
	if got := SanitizeToolCallID("call-123!@#", 20); got != "call-123" {
		t.Errorf("got %q", got)
	}
	if got := SanitizeToolCallID("!!!", 20); got != "tool_call" {
		t.Errorf("expected fallback id, got %q", got)
	}
	if got := SanitizeToolCallID("abcdefgh", 4); got != "abcd" {
		t.Errorf("expected truncation, got %q", got)
	}
}
