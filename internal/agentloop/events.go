package agentloop

import "github.com/openclaude/agentcore/internal/event"

// LoopEventKind tags the agent-level event surface laid over the transport's
// own StreamEvent sequence (spec.md §4.6 "Event surface").
type LoopEventKind string

const (
	LoopAgentStart          LoopEventKind = "agent_start"
	LoopMessageStart        LoopEventKind = "message_start"
	LoopTransport           LoopEventKind = "transport"
	LoopMessageEnd          LoopEventKind = "message_end"
	LoopToolExecutionStart  LoopEventKind = "tool_execution_start"
	LoopToolExecutionUpdate LoopEventKind = "tool_execution_update"
	LoopToolExecutionEnd    LoopEventKind = "tool_execution_end"
	LoopAgentEnd            LoopEventKind = "agent_end"
)

// LoopEvent is the single event type the loop emits; exactly the fields
// relevant to Kind are populated.
type LoopEvent struct {
	Kind LoopEventKind

	// Transport carries the pass-through adapter event when Kind is
	// LoopTransport.
	Transport event.StreamEvent

	// Message carries the finished message when Kind is LoopMessageEnd.
	Message event.Message

	// Tool fields, populated for the three tool_execution_* kinds.
	ToolCallID string
	ToolName   string
	ToolUpdate string
	ToolResult event.Message // RoleToolResult message, populated on *_end

	// Reason and Err populate LoopAgentEnd: Reason is the terminal stop
	// reason (StopStop, StopError, StopAborted, ...); Err carries the cause
	// when Reason is StopError or StopAborted.
	Reason event.StopReason
	Err    error
}
