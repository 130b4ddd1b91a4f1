package agent

import (
	"context"

	"github.com/openclaude/agentcore/internal/event"
)

// StreamCallbacks wires streaming lifecycle hooks into a Runner.RunStream
// call, mirroring stage-for-stage the LoopEvent kinds internal/agentloop
// emits (agent_start/message_start are implicit; transport/message_end/
// tool_execution_start/tool_execution_end drive the callbacks below).
type StreamCallbacks struct {
	// OnStreamStart fires once before the first provider call.
	OnStreamStart func(model string) error
	// OnStreamEvent receives every canonical transport event as it streams in.
	OnStreamEvent func(event event.StreamEvent) error
	// OnToolCall fires when a tool call begins dispatch.
	OnToolCall func(event ToolEvent) error
	// OnStreamComplete fires after each assistant message is finalized.
	OnStreamComplete func(summary StreamSummary) error
	// OnToolResult fires after a tool result is appended to messages.
	OnToolResult func(event ToolEvent, message event.Message) error
}

// StreamSummary captures metadata for one completed assistant turn.
type StreamSummary struct {
	// Message is the completed assistant message.
	Message event.Message
	// Usage reports token usage when available.
	Usage event.Usage
	// HasUsage reports whether Usage was populated.
	HasUsage bool
	// FinishReason is the canonical stop reason for the turn.
	FinishReason string
	// Model is the model identifier for the call.
	Model string
}

// RunStream executes a single user turn, invoking callbacks as the
// underlying agent loop streams transport events, tool calls, and
// completed assistant turns.
func (r *Runner) RunStream(
	ctx context.Context,
	messages []event.Message,
	systemPrompt string,
	model string,
	toolsEnabled bool,
	callbacks *StreamCallbacks,
) (*RunResult, error) {
	return r.run(ctx, messages, systemPrompt, model, toolsEnabled, callbacks)
}
