// Package transform converts a Context between provider wire conventions:
// demoting thinking blocks to text for APIs that can't carry them natively,
// and repairing tool calls left orphaned by a truncated or cancelled turn.
//
// Grounded on original_source/packages/ai/src/pi_ai/providers/transform_messages.py.
package transform

import "github.com/openclaude/agentcore/internal/event"

// orphanedResultText is inserted as the synthetic ToolResult content when a
// tool call has no matching result before the next non-result message.
const orphanedResultText = "[Tool result missing — orphaned tool call]"

// apisRequiringThinkingAsText lists target APIs with no native thinking
// block — thinking content must be demoted to a <thinking> text wrapper.
var apisRequiringThinkingAsText = map[string]bool{
	"openai-completions":  true,
	"openai-responses":    true,
	"google-generative-ai": true,
}

// RequiresThinkingAsText reports whether target requires thinking content
// to be rendered as a plain text block rather than a native thinking block.
func RequiresThinkingAsText(targetAPI string) bool {
	return apisRequiringThinkingAsText[targetAPI]
}

// ForTarget returns a Context adapted for targetAPI. The input Context and
// its Messages slice are never mutated; the result is built over a fresh
// backing array (event.Context.Clone), and blocks themselves are value
// types so rewriting Content in place on the copy cannot alias the caller.
func ForTarget(ctx event.Context, targetAPI string) event.Context {
	out := ctx.Clone()

	demoteThinking := RequiresThinkingAsText(targetAPI)
	for i, msg := range out.Messages {
		if msg.Role != event.RoleAssistant {
			continue
		}
		out.Messages[i].Content = demoteThinkingBlocks(msg.Content, demoteThinking)
	}

	out.Messages = repairOrphanedToolCalls(out.Messages)
	return out
}

func demoteThinkingBlocks(content []event.Block, demote bool) []event.Block {
	newContent := make([]event.Block, 0, len(content))
	for _, b := range content {
		if b.Kind == event.BlockThinking && demote {
			newContent = append(newContent, event.Text("<thinking>\n"+b.Thinking+"\n</thinking>"))
			continue
		}
		newContent = append(newContent, b)
	}
	return newContent
}

// repairOrphanedToolCalls inserts a synthetic error ToolResult message for
// every assistant tool call that isn't followed (before the next
// non-toolResult message) by a matching ToolResult, in the order the calls
// appeared.
func repairOrphanedToolCalls(messages []event.Message) []event.Message {
	result := make([]event.Message, len(messages))
	copy(result, messages)

	i := 0
	for i < len(result) {
		msg := result[i]
		if msg.Role != event.RoleAssistant {
			i++
			continue
		}
		calls := msg.ToolCalls()
		if len(calls) == 0 {
			i++
			continue
		}

		existing := map[string]bool{}
		j := i + 1
		for j < len(result) && result[j].Role == event.RoleToolResult {
			existing[result[j].ToolCallID] = true
			j++
		}

		insertPos := i + 1
		for _, tc := range calls {
			if existing[tc.ToolCallID] {
				continue
			}
			synthetic := event.Message{
				Role:       event.RoleToolResult,
				ToolCallID: tc.ToolCallID,
				ToolName:   tc.ToolCallName,
				ToolBlocks: []event.Block{event.Text(orphanedResultText)},
				IsError:    true,
				Timestamp:  msg.Timestamp,
			}
			result = append(result, event.Message{})
			copy(result[insertPos+1:], result[insertPos:])
			result[insertPos] = synthetic
			insertPos++
		}
		i++
	}

	return result
}

// SanitizeToolCallID clamps a provider-issued tool-call ID to characters
// safe to echo back across providers (alphanumeric, dash, underscore),
// truncating to maxLen. Some providers reject IDs containing other bytes.
func SanitizeToolCallID(id string, maxLen int) string {
	out := make([]byte, 0, len(id))
	for i := 0; i < len(id) && len(out) < maxLen; i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return "tool_call"
	}
	return string(out)
}
