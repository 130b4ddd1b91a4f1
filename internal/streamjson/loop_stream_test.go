package streamjson

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/testutil"
)

// TestLoopStreamEmitterText verifies text streaming events flatten correctly
// into stream-json output.
func TestLoopStreamEmitterText(t *testing.T) {
	var buffer bytes.Buffer
	writer := NewWriter(&buffer)
	emitter := NewLoopStreamEmitter(writer, true, "session-1")
	emitter.Begin("model-x")

	events := []event.StreamEvent{
		{Kind: event.EventStart},
		{Kind: event.EventTextStart, ContentIndex: 0},
		{Kind: event.EventTextDelta, ContentIndex: 0, Delta: "Hello "},
		{Kind: event.EventTextDelta, ContentIndex: 0, Delta: "world"},
		{Kind: event.EventTextEnd, ContentIndex: 0, Content: "Hello world"},
		{
			Kind: event.EventDone,
			Message: event.Message{
				Role:       event.RoleAssistant,
				Content:    []event.Block{event.Text("Hello world")},
				StopReason: event.StopStop,
			},
		},
	}
	for _, e := range events {
		testutil.RequireNoError(t, emitter.Handle(e), "handle stream event")
	}

	msg, ok, err := emitter.Finalize()
	testutil.RequireNoError(t, err, "finalize stream")
	testutil.RequireTrue(t, ok, "expected a finalized message")
	testutil.RequireEqual(t, msg.Role, "assistant", "assistant role")

	lines := decodeLines(t, buffer.Bytes())
	testutil.RequireTrue(t, len(lines) >= 5, "expected message_start/block_start/delta/block_stop/message_stop lines")
	testutil.RequireEqual(t, lines[0]["type"], "stream_event", "first line is a stream_event")
}

// TestLoopStreamEmitterTool verifies a tool-call stream finalizes into a
// single tool_use block with the tool_use stop reason.
func TestLoopStreamEmitterTool(t *testing.T) {
	var buffer bytes.Buffer
	writer := NewWriter(&buffer)
	emitter := NewLoopStreamEmitter(writer, true, "session-1")
	emitter.Begin("model-x")

	events := []event.StreamEvent{
		{Kind: event.EventStart},
		{Kind: event.EventToolStart, ContentIndex: 0, ToolCall: event.ToolCallBlock("call_1", "read", nil)},
		{Kind: event.EventToolDelta, ContentIndex: 0, Delta: `{"path":`},
		{Kind: event.EventToolDelta, ContentIndex: 0, Delta: `"README.md"}`},
		{Kind: event.EventToolEnd, ContentIndex: 0},
		{
			Kind: event.EventDone,
			Message: event.Message{
				Role:       event.RoleAssistant,
				Content:    []event.Block{event.ToolCallBlock("call_1", "read", map[string]any{"path": "README.md"})},
				StopReason: event.StopToolUse,
			},
		},
	}
	for _, e := range events {
		testutil.RequireNoError(t, emitter.Handle(e), "handle tool stream event")
	}

	msg, ok, err := emitter.Finalize()
	testutil.RequireNoError(t, err, "finalize tool stream")
	testutil.RequireTrue(t, ok, "expected a finalized tool message")
	testutil.RequireEqual(t, msg.StopReason, "tool_use", "tool_use stop reason")

	blocks, ok := msg.Content.([]ContentBlock)
	testutil.RequireTrue(t, ok, "expected content block slice")
	testutil.RequireTrue(t, len(blocks) == 1, "expected a single content block")
	testutil.RequireEqual(t, blocks[0].Name, "read", "tool name carried through")
}

func decodeLines(t *testing.T, payload []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var decoded map[string]any
		testutil.RequireNoError(t, json.Unmarshal([]byte(line), &decoded), "parse emitted line")
		out = append(out, decoded)
	}
	testutil.RequireNoError(t, scanner.Err(), "scan lines")
	return out
}
