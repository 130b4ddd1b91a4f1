package openaichat

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/openclaude/agentcore/internal/event"
)

func TestBuildMessages_SystemPromptFirst(t *testing.T) {
	ctx := event.Context{SystemPrompt: "be helpful", Messages: []event.Message{event.NewUserText("hi", 0)}}
	msgs := buildMessages(ctx)
	if len(msgs) != 2 || msgs[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("expected system prompt first, got %#v", msgs)
	}
	if msgs[1].Content != "hi" {
		t.Errorf("user content = %q", msgs[1].Content)
	}
}

func TestBuildMessages_AssistantToolCallRoundTrips(t *testing.T) {
	ctx := event.Context{
		Messages: []event.Message{
			{
				Role:    event.RoleAssistant,
				Content: []event.Block{event.ToolCallBlock("call_1", "bash", map[string]any{"cmd": "ls"})},
			},
			{Role: event.RoleToolResult, ToolCallID: "call_1", ToolBlocks: []event.Block{event.Text("ok")}},
		},
	}
	msgs := buildMessages(ctx)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if len(msgs[0].ToolCalls) != 1 || msgs[0].ToolCalls[0].Function.Name != "bash" {
		t.Fatalf("tool call not encoded: %#v", msgs[0])
	}
	if msgs[1].Role != openai.ChatMessageRoleTool || msgs[1].ToolCallID != "call_1" {
		t.Fatalf("tool result not encoded: %#v", msgs[1])
	}
}

func TestBuildMessages_ThinkingDemotedToTaggedText(t *testing.T) {
	ctx := event.Context{
		Messages: []event.Message{
			{Role: event.RoleAssistant, Content: []event.Block{event.Thought("step", "")}},
		},
	}
	msgs := buildMessages(ctx)
	if msgs[0].Content != "<thinking>\nstep\n</thinking>" {
		t.Errorf("got %q", msgs[0].Content)
	}
}

func TestBuildTools_EmptyWhenNoneDeclared(t *testing.T) {
	if tools := buildTools(event.Context{}); tools != nil {
		t.Errorf("expected nil tools, got %#v", tools)
	}
}

func TestMapFinishReason(t *testing.T) {
	cases := map[string]event.StopReason{
		"stop":           event.StopStop,
		"length":         event.StopLength,
		"tool_calls":     event.StopToolUse,
		"content_filter": event.StopSensitive,
		"unknown_shape":  event.StopStop,
	}
	for in, want := range cases {
		if got := mapFinishReason(in); got != want {
			t.Errorf("mapFinishReason(%q) = %q, want %q", in, got, want)
		}
	}
}
