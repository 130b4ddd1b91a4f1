package responses

import (
	"testing"

	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/providers/simpleopts"
)

func TestEncodeDecodeToolID_RoundTrips(t *testing.T) {
	id := encodeToolID("call_abc", "item_123")
	callID, itemID := decodeToolID(id)
	if callID != "call_abc" || itemID != "item_123" {
		t.Fatalf("round trip failed: %q %q", callID, itemID)
	}
}

func TestDecodeToolID_NoSeparatorKeepsWholeAsCallID(t *testing.T) {
	callID, itemID := decodeToolID("bare_id")
	if callID != "bare_id" || itemID != "" {
		t.Fatalf("got %q %q", callID, itemID)
	}
}

func TestBuildRequestBody_EncodesReasoningAsItem(t *testing.T) {
	ctx := event.Context{
		Messages: []event.Message{
			{Role: event.RoleAssistant, Content: []event.Block{event.Thought("because", "opaque-sig")}},
		},
	}
	body := buildRequestBody(event.Model{ID: "gpt-x"}, ctx, simpleopts.StreamOptions{})
	if len(body.Input) != 1 || body.Input[0].Type != "reasoning" {
		t.Fatalf("expected reasoning item, got %#v", body.Input)
	}
	if body.Input[0].EncryptedContent != "opaque-sig" {
		t.Errorf("signature not preserved: %q", body.Input[0].EncryptedContent)
	}
}

func TestBuildRequestBody_ToolCallUsesEncodedID(t *testing.T) {
	ctx := event.Context{
		Messages: []event.Message{
			{
				Role:    event.RoleAssistant,
				Content: []event.Block{event.ToolCallBlock(encodeToolID("call_1", "item_1"), "bash", nil)},
			},
		},
	}
	body := buildRequestBody(event.Model{ID: "gpt-x"}, ctx, simpleopts.StreamOptions{})
	if body.Input[0].CallID != "call_1" || body.Input[0].ID != "item_1" {
		t.Fatalf("tool call id not split correctly: %#v", body.Input[0])
	}
}
