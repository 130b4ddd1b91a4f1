// Package openaichat implements the OpenAI Chat Completions wire protocol
// (also served by most "OpenAI-compatible" gateways: OpenRouter, Groq,
// xAI, local llama.cpp/LM Studio servers). Adapted from the teacher's
// hand-rolled internal/llm/openai client onto the real
// github.com/sashabaranov/go-openai SDK, the library goadesign-goa-ai's own
// OpenAI adapter and haasonsaas-nexus's OpenRouter/Venice providers use for
// this exact wire format.
package openaichat

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/eventstream"
	"github.com/openclaude/agentcore/internal/jsonutil"
	"github.com/openclaude/agentcore/internal/providers/simpleopts"
)

// StreamClient is the subset of go-openai's client this adapter depends on.
type StreamClient interface {
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// Adapter implements providers.Adapter for OpenAI-compatible Chat
// Completions gateways.
type Adapter struct {
	newClient func(apiKey, baseURL string) StreamClient
}

// New builds the adapter with the real go-openai client factory.
func New() *Adapter {
	return &Adapter{newClient: defaultClientFactory}
}

// NewWithClientFactory lets tests inject a stub StreamClient.
func NewWithClientFactory(factory func(apiKey, baseURL string) StreamClient) *Adapter {
	return &Adapter{newClient: factory}
}

func defaultClientFactory(apiKey, baseURL string) StreamClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func (a *Adapter) API() string { return "openai-completions" }

func (a *Adapter) StreamSimple(ctx context.Context, model event.Model, reqCtx event.Context, opts *simpleopts.SimpleStreamOptions, apiKey string) (*eventstream.EventStream[event.StreamEvent, event.Message], error) {
	resolved := simpleopts.BuildBaseOptions(model, opts, apiKey)
	return a.Stream(ctx, model, reqCtx, resolved)
}

func (a *Adapter) Stream(ctx context.Context, model event.Model, reqCtx event.Context, opts simpleopts.StreamOptions) (*eventstream.EventStream[event.StreamEvent, event.Message], error) {
	client := a.newClient(opts.APIKey, model.BaseURL)

	req := openai.ChatCompletionRequest{
		Model:       model.ID,
		Messages:    buildMessages(reqCtx),
		Stream:      true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = float32(*opts.Temperature)
	}
	if tools := buildTools(reqCtx); tools != nil {
		req.Tools = tools
	}

	sdkStream, err := client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}

	out := eventstream.New[event.StreamEvent, event.Message](32)
	go runStream(ctx, sdkStream, model, out)
	return out, nil
}

func buildMessages(reqCtx event.Context) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(reqCtx.Messages)+1)
	if reqCtx.SystemPrompt != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: jsonutil.SanitizeSurrogates(reqCtx.SystemPrompt)})
	}
	for _, msg := range reqCtx.Messages {
		switch msg.Role {
		case event.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userText(msg)})

		case event.RoleAssistant:
			m := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
			var text strings.Builder
			for _, b := range msg.Content {
				switch b.Kind {
				case event.BlockText:
					text.WriteString(jsonutil.SanitizeSurrogates(b.Text))
				case event.BlockThinking:
					text.WriteString("<thinking>\n" + b.Thinking + "\n</thinking>")
				case event.BlockToolCall:
					m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
						ID:   b.ToolCallID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      b.ToolCallName,
							Arguments: jsonutil.MarshalArgumentsOrEmpty(b.ToolCallArguments),
						},
					})
				}
			}
			m.Content = text.String()
			out = append(out, m)

		case event.RoleToolResult:
			var text strings.Builder
			for _, b := range msg.ToolBlocks {
				if b.Kind == event.BlockText {
					text.WriteString(jsonutil.SanitizeSurrogates(b.Text))
				}
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    text.String(),
				ToolCallID: msg.ToolCallID,
			})
		}
	}
	return out
}

func userText(msg event.Message) string {
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

func buildTools(reqCtx event.Context) []openai.Tool {
	if len(reqCtx.Tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(reqCtx.Tools))
	for _, t := range reqCtx.Tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

var stopReasonMap = map[string]event.StopReason{
	"stop":           event.StopStop,
	"length":         event.StopLength,
	"tool_calls":     event.StopToolUse,
	"content_filter": event.StopSensitive,
}

func mapFinishReason(r string) event.StopReason {
	if mapped, ok := stopReasonMap[r]; ok {
		return mapped
	}
	return event.StopStop
}

// runStream accumulates Chat Completions tool-call deltas by index (the
// wire format never names a block, only numbers it) and opens a single
// text block for the message's plain content, since Completions has no
// concept of interleaved content blocks the way Anthropic does.
func runStream(ctx context.Context, sdkStream *openai.ChatCompletionStream, model event.Model, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	defer sdkStream.Close()

	builder := event.NewMessageBuilder(model.API, model.Provider, model.ID)
	out.Push(event.StreamEvent{Kind: event.EventStart, Partial: builder.Snapshot(false)})

	textIndex := -1
	toolIndexByOrdinal := map[int]int{}
	toolArgBuffers := map[int]string{}
	stop := event.StopStop

	for {
		resp, err := sdkStream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			handleStreamError(ctx, builder, err, out)
			return
		}

		if resp.Usage != nil {
			builder.SetUsage(event.Usage{
				Input:  resp.Usage.PromptTokens,
				Output: resp.Usage.CompletionTokens,
				Total:  resp.Usage.TotalTokens,
			})
		}

		for _, choice := range resp.Choices {
			if choice.Index != 0 {
				continue
			}
			delta := choice.Delta

			if delta.Content != "" {
				if textIndex < 0 {
					textIndex = builder.StartText()
					out.Push(event.StreamEvent{Kind: event.EventTextStart, ContentIndex: textIndex, Partial: builder.Snapshot(false)})
				}
				text := jsonutil.SanitizeSurrogates(delta.Content)
				builder.AppendText(textIndex, text)
				out.Push(event.StreamEvent{Kind: event.EventTextDelta, ContentIndex: textIndex, Delta: text, Partial: builder.Snapshot(false)})
			}

			for _, tc := range delta.ToolCalls {
				idx, seen := toolIndexByOrdinal[tc.Index]
				if !seen {
					idx = builder.StartToolCall(tc.ID, tc.Function.Name)
					toolIndexByOrdinal[tc.Index] = idx
					toolArgBuffers[idx] = ""
					out.Push(event.StreamEvent{Kind: event.EventToolStart, ContentIndex: idx, Partial: builder.Snapshot(false)})
				}
				if tc.Function.Arguments != "" {
					toolArgBuffers[idx] += tc.Function.Arguments
					out.Push(event.StreamEvent{Kind: event.EventToolDelta, ContentIndex: idx, Delta: tc.Function.Arguments, Partial: builder.Snapshot(false)})
				}
			}

			if choice.FinishReason != "" {
				stop = mapFinishReason(string(choice.FinishReason))
				builder.SetStopReason(stop)
			}
		}
	}

	if textIndex >= 0 {
		blk := builder.Block(textIndex)
		out.Push(event.StreamEvent{Kind: event.EventTextEnd, ContentIndex: textIndex, Content: blk.Text, Partial: builder.Snapshot(false)})
	}
	for ordinal, idx := range toolIndexByOrdinal {
		_ = ordinal
		args, _ := jsonutil.ParsePartialJSON(toolArgBuffers[idx])
		builder.SetToolArguments(idx, args)
		out.Push(event.StreamEvent{Kind: event.EventToolEnd, ContentIndex: idx, ToolCall: builder.Block(idx), Partial: builder.Snapshot(false)})
	}
	builder.CloseOpen()

	final := builder.Snapshot(true)
	final.Timestamp = time.Now().UnixMilli()
	out.Push(event.StreamEvent{Kind: event.EventDone, Reason: final.StopReason, Message: final})
	out.End(final)
}

func handleStreamError(ctx context.Context, builder *event.MessageBuilder, err error, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	stop := event.StopError
	if ctx.Err() != nil {
		stop = event.StopAborted
	}
	builder.SetStopReason(stop)
	builder.SetError(err.Error())
	final := builder.Snapshot(true)
	final.Timestamp = time.Now().UnixMilli()
	out.Push(event.StreamEvent{Kind: event.EventError, Reason: stop, Err: err, Message: final})
	out.Fail(err)
}
