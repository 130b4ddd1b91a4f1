// Package responses implements the OpenAI Responses API wire protocol,
// shared by OpenAI, Azure OpenAI, Codex, and GitHub Copilot. No library in
// the example corpus speaks this item-based SSE format (they all speak
// either Chat Completions or Anthropic Messages), so this adapter talks to
// it directly over net/http the way the teacher's internal/llm/openai
// client does for Chat Completions — same bufio SSE reader shape, same
// APIError type, generalised to item events instead of delta choices.
package responses

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/eventstream"
	"github.com/openclaude/agentcore/internal/jsonutil"
	"github.com/openclaude/agentcore/internal/providers/simpleopts"
)

// APIError reports a non-2xx response from a Responses-API gateway.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("responses api error: status %d: %s", e.StatusCode, e.Body)
}

// idSeparator joins a tool call's call_id and item_id into the single
// ToolCallID string the rest of the system carries around, since the wire
// protocol needs both to resume a conversation.
const idSeparator = "|"

func encodeToolID(callID, itemID string) string { return callID + idSeparator + itemID }

func decodeToolID(id string) (callID, itemID string) {
	if i := strings.IndexByte(id, idSeparator[0]); i >= 0 {
		return id[:i], id[i+1:]
	}
	return id, ""
}

// Adapter implements providers.Adapter for the Responses API family.
type Adapter struct {
	api        string
	httpClient *http.Client
}

// New builds a Responses adapter for the given API identifier
// ("openai-responses", "azure-responses", "codex-responses", ...).
func New(api string) *Adapter {
	return &Adapter{api: api, httpClient: &http.Client{Timeout: 10 * time.Minute}}
}

func (a *Adapter) API() string { return a.api }

func (a *Adapter) StreamSimple(ctx context.Context, model event.Model, reqCtx event.Context, opts *simpleopts.SimpleStreamOptions, apiKey string) (*eventstream.EventStream[event.StreamEvent, event.Message], error) {
	resolved := simpleopts.BuildBaseOptions(model, opts, apiKey)
	return a.Stream(ctx, model, reqCtx, resolved)
}

func (a *Adapter) Stream(ctx context.Context, model event.Model, reqCtx event.Context, opts simpleopts.StreamOptions) (*eventstream.EventStream[event.StreamEvent, event.Message], error) {
	payload := buildRequestBody(model, reqCtx, opts)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal responses request: %w", err)
	}

	url := strings.TrimRight(model.BaseURL, "/") + "/responses"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create responses request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if opts.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+opts.APIKey)
	}
	for k, v := range opts.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send responses request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	out := eventstream.New[event.StreamEvent, event.Message](32)
	go runStream(ctx, resp.Body, model, out)
	return out, nil
}

type requestBody struct {
	Model       string         `json:"model"`
	Input       []wireItem     `json:"input"`
	Instructions string        `json:"instructions,omitempty"`
	Tools       []wireTool     `json:"tools,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_output_tokens,omitempty"`
	Stream      bool           `json:"stream"`
	ServiceTier string         `json:"service_tier,omitempty"`
}

type wireItem struct {
	Type    string `json:"type"`
	Role    string `json:"role,omitempty"`
	Content any    `json:"content,omitempty"`
	CallID  string `json:"call_id,omitempty"`
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output  string `json:"output,omitempty"`
	Summary []string `json:"summary,omitempty"`
	EncryptedContent string `json:"encrypted_content,omitempty"`
}

type wireTool struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

func buildRequestBody(model event.Model, reqCtx event.Context, opts simpleopts.StreamOptions) requestBody {
	body := requestBody{
		Model:        model.ID,
		Instructions: jsonutil.SanitizeSurrogates(reqCtx.SystemPrompt),
		Stream:       true,
		Temperature:  opts.Temperature,
		MaxTokens:    opts.MaxTokens,
	}
	if tier, ok := opts.Metadata["service_tier"]; ok {
		body.ServiceTier = tier
	}

	for _, msg := range reqCtx.Messages {
		switch msg.Role {
		case event.RoleUser:
			body.Input = append(body.Input, wireItem{Type: "message", Role: "user", Content: userContent(msg)})

		case event.RoleAssistant:
			for _, b := range msg.Content {
				switch b.Kind {
				case event.BlockText:
					body.Input = append(body.Input, wireItem{Type: "message", Role: "assistant", Content: jsonutil.SanitizeSurrogates(b.Text)})
				case event.BlockThinking:
					// Reasoning items round-trip via their serialised form,
					// carried opaquely in ThinkingSignature.
					body.Input = append(body.Input, wireItem{Type: "reasoning", EncryptedContent: string(b.ThinkingSignature), Summary: []string{b.Thinking}})
				case event.BlockToolCall:
					callID, itemID := decodeToolID(b.ToolCallID)
					body.Input = append(body.Input, wireItem{
						Type: "function_call", CallID: callID, ID: itemID,
						Name: b.ToolCallName, Arguments: jsonutil.MarshalArgumentsOrEmpty(b.ToolCallArguments),
					})
				}
			}

		case event.RoleToolResult:
			callID, _ := decodeToolID(msg.ToolCallID)
			body.Input = append(body.Input, wireItem{Type: "function_call_output", CallID: callID, Output: toolResultText(msg)})
		}
	}

	for _, t := range reqCtx.Tools {
		body.Tools = append(body.Tools, wireTool{Type: "function", Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	return body
}

func userContent(msg event.Message) string {
	if msg.UserText != "" {
		return jsonutil.SanitizeSurrogates(msg.UserText)
	}
	var text strings.Builder
	for _, b := range msg.UserBlocks {
		if b.Kind == event.BlockText {
			text.WriteString(jsonutil.SanitizeSurrogates(b.Text))
		}
	}
	return text.String()
}

func toolResultText(msg event.Message) string {
	var text strings.Builder
	for _, b := range msg.ToolBlocks {
		if b.Kind == event.BlockText {
			text.WriteString(jsonutil.SanitizeSurrogates(b.Text))
		}
	}
	return text.String()
}

// sseEvent is one decoded "event: ...\ndata: ..." frame.
type sseEvent struct {
	Type string          `json:"type"`
	Item json.RawMessage `json:"item,omitempty"`
	Delta string         `json:"delta,omitempty"`
	ItemID string        `json:"item_id,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

func runStream(ctx context.Context, body io.ReadCloser, model event.Model, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	defer body.Close()

	builder := event.NewMessageBuilder(model.API, model.Provider, model.ID)
	out.Push(event.StreamEvent{Kind: event.EventStart, Partial: builder.Snapshot(false)})

	itemBlockIndex := map[string]int{}
	toolArgBuffers := map[string]string{}
	reader := bufio.NewReader(body)

	for {
		if ctx.Err() != nil {
			handleError(builder, ctx.Err(), true, out)
			return
		}
		line, err := readSSELine(reader)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			handleError(builder, err, false, out)
			return
		}
		if line == "" {
			continue
		}

		var ev sseEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}

		switch {
		case strings.HasSuffix(ev.Type, ".output_item.added"):
			handleItemAdded(builder, itemBlockIndex, toolArgBuffers, ev, out)
		case strings.HasSuffix(ev.Type, ".output_text.delta"):
			handleTextDelta(builder, itemBlockIndex, ev, out)
		case strings.HasSuffix(ev.Type, ".reasoning_summary_text.delta"):
			handleReasoningDelta(builder, itemBlockIndex, ev, out)
		case strings.HasSuffix(ev.Type, ".function_call_arguments.delta"):
			handleToolDelta(builder, itemBlockIndex, toolArgBuffers, ev, out)
		case strings.HasSuffix(ev.Type, ".output_item.done"):
			handleItemDone(builder, itemBlockIndex, toolArgBuffers, ev, out)
		case ev.Type == "response.completed", ev.Type == "response.incomplete":
			builder.SetStopReason(event.StopStop)
		}
	}

	final := builder.Snapshot(true)
	final.Timestamp = time.Now().UnixMilli()
	out.Push(event.StreamEvent{Kind: event.EventDone, Reason: final.StopReason, Message: final})
	out.End(final)
}

func readSSELine(r *bufio.Reader) (string, error) {
	for {
		line, err := r.ReadString('\n')
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "data:") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "data:")), nil
		}
		if err != nil {
			return "", err
		}
	}
}

type wireOutputItem struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	CallID           string `json:"call_id"`
	Name             string `json:"name"`
	Arguments        string `json:"arguments"`
	EncryptedContent string `json:"encrypted_content"`
}

func handleItemAdded(b *event.MessageBuilder, itemBlockIndex map[string]int, toolArgBuffers map[string]string, ev sseEvent, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	var item wireOutputItem
	if err := json.Unmarshal(ev.Item, &item); err != nil {
		return
	}
	switch item.Type {
	case "message":
		idx := b.StartText()
		itemBlockIndex[item.ID] = idx
		out.Push(event.StreamEvent{Kind: event.EventTextStart, ContentIndex: idx, Partial: b.Snapshot(false)})
	case "reasoning":
		idx := b.StartThinking()
		itemBlockIndex[item.ID] = idx
		out.Push(event.StreamEvent{Kind: event.EventThinkingStart, ContentIndex: idx, Partial: b.Snapshot(false)})
	case "function_call":
		idx := b.StartToolCall(encodeToolID(item.CallID, item.ID), item.Name)
		itemBlockIndex[item.ID] = idx
		toolArgBuffers[item.ID] = ""
		out.Push(event.StreamEvent{Kind: event.EventToolStart, ContentIndex: idx, Partial: b.Snapshot(false)})
	}
}

func handleTextDelta(b *event.MessageBuilder, itemBlockIndex map[string]int, ev sseEvent, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	idx, ok := itemBlockIndex[ev.ItemID]
	if !ok {
		return
	}
	text := jsonutil.SanitizeSurrogates(ev.Delta)
	b.AppendText(idx, text)
	out.Push(event.StreamEvent{Kind: event.EventTextDelta, ContentIndex: idx, Delta: text, Partial: b.Snapshot(false)})
}

// handleReasoningDelta concatenates successive reasoning-summary deltas with
// a double-newline separator, matching the Responses API's own
// summary-paragraph framing.
func handleReasoningDelta(b *event.MessageBuilder, itemBlockIndex map[string]int, ev sseEvent, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	idx, ok := itemBlockIndex[ev.ItemID]
	if !ok {
		return
	}
	delta := ev.Delta
	if b.Block(idx).Thinking != "" {
		delta = "\n\n" + delta
	}
	b.AppendThinking(idx, delta)
	out.Push(event.StreamEvent{Kind: event.EventThinkingDelta, ContentIndex: idx, Delta: delta, Partial: b.Snapshot(false)})
}

func handleToolDelta(b *event.MessageBuilder, itemBlockIndex map[string]int, toolArgBuffers map[string]string, ev sseEvent, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	idx, ok := itemBlockIndex[ev.ItemID]
	if !ok {
		return
	}
	toolArgBuffers[ev.ItemID] += ev.Delta
	out.Push(event.StreamEvent{Kind: event.EventToolDelta, ContentIndex: idx, Delta: ev.Delta, Partial: b.Snapshot(false)})
}

func handleItemDone(b *event.MessageBuilder, itemBlockIndex map[string]int, toolArgBuffers map[string]string, ev sseEvent, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	var item wireOutputItem
	if err := json.Unmarshal(ev.Item, &item); err != nil {
		return
	}
	idx, ok := itemBlockIndex[item.ID]
	if !ok {
		return
	}
	switch item.Type {
	case "message":
		blk := b.Block(idx)
		out.Push(event.StreamEvent{Kind: event.EventTextEnd, ContentIndex: idx, Content: blk.Text, Partial: b.Snapshot(false)})
	case "reasoning":
		// The encrypted_content blob, when the gateway returns one, is the
		// opaque signature threaded back in on the next turn.
		if item.EncryptedContent != "" {
			b.SetSignature(idx, event.Signature(item.EncryptedContent))
		}
		blk := b.Block(idx)
		out.Push(event.StreamEvent{Kind: event.EventThinkingEnd, ContentIndex: idx, Content: blk.Thinking, Partial: b.Snapshot(false)})
	case "function_call":
		raw := toolArgBuffers[item.ID]
		args, _ := jsonutil.ParsePartialJSON(raw)
		b.SetToolArguments(idx, args)
		out.Push(event.StreamEvent{Kind: event.EventToolEnd, ContentIndex: idx, ToolCall: b.Block(idx), Partial: b.Snapshot(false)})
	}
}

func handleError(b *event.MessageBuilder, err error, aborted bool, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	stop := event.StopError
	if aborted {
		stop = event.StopAborted
	}
	b.SetStopReason(stop)
	b.SetError(err.Error())
	final := b.Snapshot(true)
	final.Timestamp = time.Now().UnixMilli()
	out.Push(event.StreamEvent{Kind: event.EventError, Reason: stop, Err: err, Message: final})
	out.Fail(err)
}
