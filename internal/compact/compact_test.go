package compact

import (
	"context"
	"testing"

	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/eventstream"
	"github.com/openclaude/agentcore/internal/providers"
	"github.com/openclaude/agentcore/internal/providers/simpleopts"
	"github.com/openclaude/agentcore/internal/testutil"
)

func bigMessage(role event.Role, n int) event.Message {
	text := make([]byte, n)
	for i := range text {
		text[i] = 'x'
	}
	if role == event.RoleUser {
		return event.Message{Role: role, UserText: string(text)}
	}
	return event.Message{Role: role, Content: []event.Block{event.Text(string(text))}}
}

func TestShouldCompact(t *testing.T) {
	cfg := DefaultConfig(1000)
	small := []event.Message{bigMessage(event.RoleUser, 10)}
	testutil.RequireTrue(t, !ShouldCompact(small, cfg), "small history should not trigger compaction")

	large := []event.Message{bigMessage(event.RoleUser, 950*bytesPerToken)}
	testutil.RequireTrue(t, ShouldCompact(large, cfg), "near-full history should trigger compaction")
}

func TestSelectCutPoint_PrefersLatestValidBoundary(t *testing.T) {
	cfg := Config{TargetContextWindow: 1000, FreeFraction: 0.5}
	messages := []event.Message{
		bigMessage(event.RoleUser, 400*bytesPerToken),
		bigMessage(event.RoleAssistant, 400*bytesPerToken),
		bigMessage(event.RoleUser, 50*bytesPerToken),
		bigMessage(event.RoleAssistant, 50*bytesPerToken),
	}
	plan, ok := SelectCutPoint(messages, cfg)
	testutil.RequireTrue(t, ok, "expected a valid cut point")
	testutil.RequireTrue(t, plan.EstimatedFreed >= 500, "expected to free at least half the window")
}

func TestSelectCutPoint_NeverSplitsToolCallFromResult(t *testing.T) {
	messages := []event.Message{
		{Role: event.RoleAssistant, Content: []event.Block{event.ToolCallBlock("call_1", "bash", nil)}},
		{Role: event.RoleToolResult, ToolCallID: "call_1"},
	}
	testutil.RequireTrue(t, !isValidCutPoint(messages, 1), "cutting between a tool call and its result must be invalid")
	testutil.RequireTrue(t, isValidCutPoint(messages, 0), "cutting before everything is always valid")
}

type fakeAdapter struct{ reply string }

func (f fakeAdapter) API() string { return "fake" }
func (f fakeAdapter) Stream(ctx context.Context, model event.Model, reqCtx event.Context, opts simpleopts.StreamOptions) (*providers.Stream, error) {
	out := eventstream.New[event.StreamEvent, event.Message](1)
	out.End(event.Message{Role: event.RoleAssistant, Content: []event.Block{event.Text(f.reply)}})
	return out, nil
}
func (f fakeAdapter) StreamSimple(ctx context.Context, model event.Model, reqCtx event.Context, opts *simpleopts.SimpleStreamOptions, apiKey string) (*providers.Stream, error) {
	return f.Stream(ctx, model, reqCtx, simpleopts.StreamOptions{})
}

func TestRun_ProducesSummaryAndSuffix(t *testing.T) {
	cfg := Config{TargetContextWindow: 1000, FreeFraction: 0.5}
	messages := []event.Message{
		bigMessage(event.RoleUser, 600*bytesPerToken),
		bigMessage(event.RoleUser, 50*bytesPerToken),
	}
	adapter := fakeAdapter{reply: "condensed summary"}
	model := event.Model{ID: "m", Provider: "p", MaxTokens: 4096}

	summary, suffix, _, err := Run(context.Background(), adapter, model, messages, cfg)
	testutil.RequireNoError(t, err, "run compaction")
	testutil.RequireEqual(t, summary.TextContent(), "condensed summary", "summary text")
	testutil.RequireTrue(t, len(suffix) == 1, "expected one surviving message")
}
