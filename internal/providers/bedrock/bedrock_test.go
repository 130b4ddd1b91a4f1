package bedrock

import (
	"testing"

	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/providers/simpleopts"
)

func TestSupportsPromptCaching_ByModelCost(t *testing.T) {
	m := event.Model{ID: "meta.llama3-70b-instruct-v1:0", Cost: event.ModelCost{CacheRead: 0.1}}
	if !supportsPromptCaching(m) {
		t.Error("expected a model advertising cache pricing to support prompt caching regardless of id")
	}
}

func TestSupportsPromptCaching_ByClaudeGeneration(t *testing.T) {
	cases := map[string]bool{
		"anthropic.claude-3-sonnet-20240229-v1:0": false,
		"anthropic.claude-opus-4-6-20260101-v1:0":  true,
		"anthropic.claude-3-7-sonnet-20250219-v1:0": true,
		"amazon.titan-text-express-v1":              false,
	}
	for id, want := range cases {
		if got := supportsPromptCaching(event.Model{ID: id}); got != want {
			t.Errorf("supportsPromptCaching(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestSupportsAdaptiveThinking(t *testing.T) {
	if !supportsAdaptiveThinking("anthropic.claude-opus-4-6-20260101-v1:0") {
		t.Error("expected opus-4-6 to support adaptive thinking")
	}
	if supportsAdaptiveThinking("anthropic.claude-3-sonnet-20240229-v1:0") {
		t.Error("claude-3 should not support adaptive thinking")
	}
}

func TestNormalizeToolCallID(t *testing.T) {
	got := normalizeToolCallID("call id!with spaces")
	if got != "call_id_with_spaces" {
		t.Errorf("got %q", got)
	}
	long := ""
	for i := 0; i < 80; i++ {
		long += "a"
	}
	if got := normalizeToolCallID(long); len(got) != 64 {
		t.Errorf("expected clamp to 64 chars, got %d", len(got))
	}
}

func TestResolveCacheRetention_DefaultsToShort(t *testing.T) {
	if got := resolveCacheRetention(""); got != "short" {
		t.Errorf("got %q, want short", got)
	}
	if got := resolveCacheRetention("none"); got != "none" {
		t.Errorf("got %q, want none", got)
	}
}

func TestMapStopReason(t *testing.T) {
	if mapStopReason("tool_use") != event.StopToolUse {
		t.Error("expected tool_use to map to StopToolUse")
	}
	if mapStopReason("guardrail_intervened") != event.StopError {
		t.Error("expected guardrail_intervened to map to StopError")
	}
	if mapStopReason("") != event.StopStop {
		t.Error("expected unknown/empty stop reason to default to StopStop")
	}
}

func TestBuildAdditionalFields_SkipsNonAnthropicModels(t *testing.T) {
	model := event.Model{ID: "meta.llama3-70b-instruct-v1:0"}
	opts := simpleopts.StreamOptions{ReasoningLevel: simpleopts.ThinkingHigh}
	if fields := buildAdditionalFields(model, opts); fields != nil {
		t.Error("expected nil additional fields for a non-Anthropic model")
	}
}

func TestBuildMessages_MergesConsecutiveToolResults(t *testing.T) {
	reqCtx := event.Context{
		Messages: []event.Message{
			event.NewUserText("run two tools", 0),
			{
				Role: event.RoleAssistant,
				Content: []event.Block{
					event.ToolCallBlock("call_1", "bash", nil),
					event.ToolCallBlock("call_2", "grep", nil),
				},
			},
			{Role: event.RoleToolResult, ToolCallID: "call_1", ToolName: "bash", ToolBlocks: []event.Block{event.Text("ok1")}},
			{Role: event.RoleToolResult, ToolCallID: "call_2", ToolName: "grep", ToolBlocks: []event.Block{event.Text("ok2")}},
		},
	}
	messages := buildMessages(reqCtx, event.Model{ID: "anthropic.claude-3-sonnet-20240229-v1:0"}, "none")
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages (user, assistant, merged tool results), got %d", len(messages))
	}
	if len(messages[2].Content) != 2 {
		t.Fatalf("expected both tool results merged into one turn, got %d content blocks", len(messages[2].Content))
	}
}
