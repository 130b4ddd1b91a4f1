package google

import (
	"testing"

	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/providers/simpleopts"
)

func TestIsValidThoughtSignature(t *testing.T) {
	cases := map[event.Signature]bool{
		"":          false,
		"abc":       false,       // not a multiple of 4
		"abcd":      true,
		"YWJjZA==":  true,
		"not base64!!": false,
	}
	for sig, want := range cases {
		if got := isValidThoughtSignature(sig); got != want {
			t.Errorf("isValidThoughtSignature(%q) = %v, want %v", sig, got, want)
		}
	}
}

func TestResolveThoughtSignature_RequiresSameTurn(t *testing.T) {
	valid := event.Signature("YWJjZA==")
	if sig := resolveThoughtSignature(false, valid); sig != nil {
		t.Errorf("expected nil signature for different provider/model turn, got %v", sig)
	}
	if sig := resolveThoughtSignature(true, valid); sig == nil {
		t.Errorf("expected decoded signature for same-turn valid base64")
	}
}

func TestRequiresToolCallID(t *testing.T) {
	if !requiresToolCallID("claude-opus-4-6") {
		t.Error("expected claude- prefix to require tool call id")
	}
	if !requiresToolCallID("gpt-oss-120b") {
		t.Error("expected gpt-oss- prefix to require tool call id")
	}
	if requiresToolCallID("gemini-2.5-pro") {
		t.Error("native gemini models should not require an explicit tool call id")
	}
}

func TestMapFinishReason(t *testing.T) {
	cases := map[string]event.StopReason{
		"STOP":       event.StopStop,
		"MAX_TOKENS": event.StopLength,
		"SAFETY":     event.StopError,
		"unknown":    event.StopStop,
	}
	for in, want := range cases {
		if got := mapFinishReason(in); got != want {
			t.Errorf("mapFinishReason(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildContents_MergesConsecutiveToolResults(t *testing.T) {
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
	contents := buildContents(event.Model{ID: "gemini-2.5-pro"}, reqCtx)
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents (user, model, merged tool results), got %d", len(contents))
	}
	if len(contents[2].Parts) != 2 {
		t.Fatalf("expected both tool results merged into one turn, got %d parts", len(contents[2].Parts))
	}
}

func TestBuildConfig_DisablesThinkingWhenNoReasoningRequested(t *testing.T) {
	cfg := buildConfig(event.Context{}, simpleopts.StreamOptions{})
	if cfg.ThinkingConfig == nil || cfg.ThinkingConfig.ThinkingBudget == nil || *cfg.ThinkingConfig.ThinkingBudget != 0 {
		t.Fatalf("expected thinking disabled with budget 0, got %#v", cfg.ThinkingConfig)
	}
	if cfg.ThinkingConfig.IncludeThoughts {
		t.Error("expected IncludeThoughts false when thinking disabled")
	}
}
