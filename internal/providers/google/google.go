// Package google implements the Google Generative AI wire protocol shared by
// the Gemini API and Vertex AI families. Grounded on
// _examples/haasonsaas-nexus/internal/agent/providers/google.go for the
// google.golang.org/genai client/streaming idiom, and on the original
// Python google_shared.py/google.py providers for thought-signature
// validation, thinking-budget mapping, and stop-reason classification.
package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"
	"regexp"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/eventstream"
	"github.com/openclaude/agentcore/internal/jsonutil"
	"github.com/openclaude/agentcore/internal/providers/simpleopts"
)

// ContentClient is the subset of genai this adapter depends on.
type ContentClient interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// Adapter implements providers.Adapter for Google Generative AI family models.
type Adapter struct {
	api       string
	newClient func(ctx context.Context, apiKey, baseURL string) (ContentClient, error)
}

// New builds a Google adapter for the given API identifier
// ("google-generative-ai" or "google-vertex").
func New(api string) *Adapter {
	return &Adapter{api: api, newClient: defaultClientFactory}
}

// NewWithClientFactory lets tests inject a stub ContentClient.
func NewWithClientFactory(api string, factory func(ctx context.Context, apiKey, baseURL string) (ContentClient, error)) *Adapter {
	return &Adapter{api: api, newClient: factory}
}

func defaultClientFactory(ctx context.Context, apiKey, baseURL string) (ContentClient, error) {
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

func (a *Adapter) API() string { return a.api }

func (a *Adapter) StreamSimple(ctx context.Context, model event.Model, reqCtx event.Context, opts *simpleopts.SimpleStreamOptions, apiKey string) (*eventstream.EventStream[event.StreamEvent, event.Message], error) {
	resolved := simpleopts.BuildBaseOptions(model, opts, apiKey)
	return a.Stream(ctx, model, reqCtx, resolved)
}

func (a *Adapter) Stream(ctx context.Context, model event.Model, reqCtx event.Context, opts simpleopts.StreamOptions) (*eventstream.EventStream[event.StreamEvent, event.Message], error) {
	client, err := a.newClient(ctx, opts.APIKey, model.BaseURL)
	if err != nil {
		return nil, err
	}

	contents := buildContents(model, reqCtx)
	config := buildConfig(reqCtx, opts)

	out := eventstream.New[event.StreamEvent, event.Message](32)
	streamIter := client.GenerateContentStream(ctx, model.ID, contents, config)
	go runStream(ctx, streamIter, model, out)
	return out, nil
}

// ---------------------------------------------------------------------------
// Thought signature helpers — a Gemini "thoughtSignature" is only safe to
// echo back when the history turn it came from was produced by this same
// provider/model combination, and only if it still looks like base64 (the
// model may be swapped mid-session, which invalidates any prior signature).
// ---------------------------------------------------------------------------

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]+=*$`)

func isValidThoughtSignature(sig event.Signature) bool {
	s := string(sig)
	if s == "" || len(s)%4 != 0 {
		return false
	}
	return base64Pattern.MatchString(s)
}

func resolveThoughtSignature(sameProviderAndModel bool, sig event.Signature) []byte {
	if !sameProviderAndModel || !isValidThoughtSignature(sig) {
		return nil
	}
	decoded, err := base64.StdEncoding.DecodeString(string(sig))
	if err != nil {
		return nil
	}
	return decoded
}

// requiresToolCallIDPrefixes lists model-ID prefixes for third-party models
// accessed through a Google-compatible endpoint that, unlike native Gemini
// models, need an explicit tool-call id round-tripped through functionCall
// and functionResponse parts.
var requiresToolCallIDPrefixes = []string{"claude-", "gpt-oss-"}

func requiresToolCallID(modelID string) bool {
	for _, p := range requiresToolCallIDPrefixes {
		if strings.HasPrefix(modelID, p) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Request construction
// ---------------------------------------------------------------------------

func buildContents(model event.Model, reqCtx event.Context) []*genai.Content {
	out := make([]*genai.Content, 0, len(reqCtx.Messages))
	for _, msg := range reqCtx.Messages {
		switch msg.Role {
		case event.RoleUser:
			if parts := userParts(msg); len(parts) > 0 {
				out = append(out, &genai.Content{Role: genai.RoleUser, Parts: parts})
			}

		case event.RoleAssistant:
			sameTurn := msg.Provider == model.Provider && msg.Model == model.ID
			if parts := assistantParts(msg, model, sameTurn); len(parts) > 0 {
				out = append(out, &genai.Content{Role: genai.RoleModel, Parts: parts})
			}

		case event.RoleToolResult:
			part := toolResultPart(model, msg)
			// Merge consecutive tool results into the same user turn, matching
			// Gemini's expectation that all function responses for one round
			// of parallel calls live in a single Content.
			if n := len(out); n > 0 && out[n-1].Role == genai.RoleUser && hasFunctionResponse(out[n-1]) {
				out[n-1].Parts = append(out[n-1].Parts, part)
			} else {
				out = append(out, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
			}
		}
	}
	return out
}

func hasFunctionResponse(c *genai.Content) bool {
	for _, p := range c.Parts {
		if p.FunctionResponse != nil {
			return true
		}
	}
	return false
}

func userParts(msg event.Message) []*genai.Part {
	if msg.UserText != "" {
		return []*genai.Part{{Text: jsonutil.SanitizeSurrogates(msg.UserText)}}
	}
	var parts []*genai.Part
	for _, b := range msg.UserBlocks {
		switch b.Kind {
		case event.BlockText:
			parts = append(parts, &genai.Part{Text: jsonutil.SanitizeSurrogates(b.Text)})
		case event.BlockImage:
			data, _ := base64.StdEncoding.DecodeString(b.ImageData)
			parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: b.ImageMIME, Data: data}})
		}
	}
	return parts
}

func assistantParts(msg event.Message, model event.Model, sameTurn bool) []*genai.Part {
	var parts []*genai.Part
	for _, b := range msg.Content {
		switch b.Kind {
		case event.BlockText:
			if strings.TrimSpace(b.Text) == "" {
				continue
			}
			part := &genai.Part{Text: jsonutil.SanitizeSurrogates(b.Text)}
			if sig := resolveThoughtSignature(sameTurn, b.TextSignature); sig != nil {
				part.ThoughtSignature = sig
			}
			parts = append(parts, part)

		case event.BlockThinking:
			if strings.TrimSpace(b.Thinking) == "" {
				continue
			}
			if !sameTurn {
				// A thinking block from a different provider/model turn carries
				// no valid signature and can't be replayed as a thought part —
				// fold it back to plain text so the turn still round-trips.
				parts = append(parts, &genai.Part{Text: jsonutil.SanitizeSurrogates(b.Thinking)})
				continue
			}
			part := &genai.Part{Text: jsonutil.SanitizeSurrogates(b.Thinking), Thought: true}
			if sig := resolveThoughtSignature(sameTurn, b.ThinkingSignature); sig != nil {
				part.ThoughtSignature = sig
			}
			parts = append(parts, part)

		case event.BlockToolCall:
			fc := &genai.FunctionCall{Name: b.ToolCallName, Args: b.ToolCallArguments}
			if requiresToolCallID(model.ID) {
				fc.ID = b.ToolCallID
			}
			part := &genai.Part{FunctionCall: fc}
			if sig := resolveThoughtSignature(sameTurn, b.ToolThoughtSignature); sig != nil {
				part.ThoughtSignature = sig
			}
			parts = append(parts, part)
		}
	}
	return parts
}

func toolResultPart(model event.Model, msg event.Message) *genai.Part {
	var text strings.Builder
	for _, b := range msg.ToolBlocks {
		if b.Kind == event.BlockText {
			if text.Len() > 0 {
				text.WriteString(" ")
			}
			text.WriteString(b.Text)
		}
	}
	response := map[string]any{"output": jsonutil.SanitizeSurrogates(text.String())}
	if msg.IsError {
		response = map[string]any{"error": jsonutil.SanitizeSurrogates(text.String())}
	}
	fr := &genai.FunctionResponse{Name: msg.ToolName, Response: response}
	if requiresToolCallID(model.ID) {
		fr.ID = msg.ToolCallID
	}
	return &genai.Part{FunctionResponse: fr}
}

// thinkingBudgets mirrors the original provider's per-level token budget for
// Gemini's thinking_config; callers that don't request reasoning get a
// budget of 0, which disables thinking on models that support it and is
// silently ignored on ones that don't.
var thinkingBudgets = map[simpleopts.ThinkingLevel]int32{
	simpleopts.ThinkingMinimal: 512,
	simpleopts.ThinkingLow:     2048,
	simpleopts.ThinkingMedium:  8192,
	simpleopts.ThinkingHigh:    24576,
	simpleopts.ThinkingXHigh:   32768,
}

func buildConfig(reqCtx event.Context, opts simpleopts.StreamOptions) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if reqCtx.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: jsonutil.SanitizeSurrogates(reqCtx.SystemPrompt)}}}
	}
	if opts.Temperature != nil {
		t := float32(*opts.Temperature)
		cfg.Temperature = &t
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if tools := buildTools(reqCtx); tools != nil {
		cfg.Tools = tools
	}

	budget := int32(0)
	if opts.ReasoningLevel != "" {
		level := simpleopts.ClampReasoning(opts.ReasoningLevel)
		if b, ok := thinkingBudgets[level]; ok {
			budget = b
		} else {
			budget = thinkingBudgets[simpleopts.ThinkingMedium]
		}
	}
	includeThoughts := budget > 0
	cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: &budget, IncludeThoughts: includeThoughts}

	return cfg
}

func buildTools(reqCtx event.Context) []*genai.Tool {
	if len(reqCtx.Tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(reqCtx.Tools))
	for _, t := range reqCtx.Tools {
		params := make(map[string]any, len(t.Parameters))
		for k, v := range t.Parameters {
			if k == "$schema" {
				continue
			}
			params[k] = v
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schemaFromMap(params),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// schemaFromMap is a best-effort translation of a JSON-Schema map into
// genai's typed Schema; unknown/unsupported keywords are dropped rather than
// rejected. Arguments are not validated against the schema here; each tool
// checks its own input when it runs.
func schemaFromMap(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{Type: genai.TypeObject}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = map[string]*genai.Schema{}
		for name, raw := range props {
			if propMap, ok := raw.(map[string]any); ok {
				s.Properties[name] = schemaFromMap(propMap)
			}
		}
	}
	if req, ok := m["required"].([]any); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	return s
}

// ---------------------------------------------------------------------------
// Response streaming
// ---------------------------------------------------------------------------

func runStream(ctx context.Context, streamIter iter.Seq2[*genai.GenerateContentResponse, error], model event.Model, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	builder := event.NewMessageBuilder(model.API, model.Provider, model.ID)
	out.Push(event.StreamEvent{Kind: event.EventStart, Partial: builder.Snapshot(false)})

	textIndex := -1
	thinkingIndex := -1
	toolIndex := 0

	for resp, err := range streamIter {
		if ctx.Err() != nil {
			handleError(builder, ctx.Err(), true, out)
			return
		}
		if err != nil {
			handleError(builder, err, false, out)
			return
		}
		if resp == nil {
			continue
		}
		if resp.UsageMetadata != nil {
			u := resp.UsageMetadata
			builder.SetUsage(event.Usage{
				Input:  int(u.PromptTokenCount),
				Output: int(u.CandidatesTokenCount),
				Total:  int(u.TotalTokenCount),
			})
		}
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				switch {
				case part.Text != "" && part.Thought:
					if thinkingIndex < 0 {
						thinkingIndex = builder.StartThinking()
						out.Push(event.StreamEvent{Kind: event.EventThinkingStart, ContentIndex: thinkingIndex, Partial: builder.Snapshot(false)})
					}
					builder.AppendThinking(thinkingIndex, part.Text)
					if len(part.ThoughtSignature) > 0 {
						builder.SetSignature(thinkingIndex, encodeSignature(part.ThoughtSignature))
					}
					out.Push(event.StreamEvent{Kind: event.EventThinkingDelta, ContentIndex: thinkingIndex, Delta: part.Text, Partial: builder.Snapshot(false)})

				case part.Text != "":
					if textIndex < 0 {
						textIndex = builder.StartText()
						out.Push(event.StreamEvent{Kind: event.EventTextStart, ContentIndex: textIndex, Partial: builder.Snapshot(false)})
					}
					text := jsonutil.SanitizeSurrogates(part.Text)
					builder.AppendText(textIndex, text)
					out.Push(event.StreamEvent{Kind: event.EventTextDelta, ContentIndex: textIndex, Delta: text, Partial: builder.Snapshot(false)})

				case part.FunctionCall != nil:
					fc := part.FunctionCall
					id := fc.ID
					if id == "" {
						id = fmt.Sprintf("call_%d_%s", toolIndex, fc.Name)
					}
					toolIndex++
					idx := builder.StartToolCall(id, fc.Name)
					builder.SetToolArguments(idx, fc.Args)
					if len(part.ThoughtSignature) > 0 {
						builder.SetSignature(idx, encodeSignature(part.ThoughtSignature))
					}
					out.Push(event.StreamEvent{Kind: event.EventToolStart, ContentIndex: idx, Partial: builder.Snapshot(false)})
					out.Push(event.StreamEvent{Kind: event.EventToolEnd, ContentIndex: idx, ToolCall: builder.Block(idx), Partial: builder.Snapshot(false)})
				}
			}
			if candidate.FinishReason != "" {
				builder.SetStopReason(mapFinishReason(string(candidate.FinishReason)))
			}
		}
	}

	if textIndex >= 0 {
		blk := builder.Block(textIndex)
		out.Push(event.StreamEvent{Kind: event.EventTextEnd, ContentIndex: textIndex, Content: blk.Text, Partial: builder.Snapshot(false)})
	}
	if thinkingIndex >= 0 {
		blk := builder.Block(thinkingIndex)
		out.Push(event.StreamEvent{Kind: event.EventThinkingEnd, ContentIndex: thinkingIndex, Content: blk.Thinking, Partial: builder.Snapshot(false)})
	}

	final := builder.Snapshot(true)
	final.Timestamp = time.Now().UnixMilli()
	out.Push(event.StreamEvent{Kind: event.EventDone, Reason: final.StopReason, Message: final})
	out.End(final)
}

func encodeSignature(raw []byte) event.Signature {
	return event.Signature(base64.StdEncoding.EncodeToString(raw))
}

// finishReasonErrorSet mirrors the original provider's classification of
// FinishReason values that represent a refusal or safety block rather than a
// normal stop.
var finishReasonErrorSet = map[string]bool{
	"BLOCKLIST": true, "PROHIBITED_CONTENT": true, "SPII": true, "SAFETY": true,
	"IMAGE_SAFETY": true, "IMAGE_PROHIBITED_CONTENT": true, "IMAGE_RECITATION": true,
	"IMAGE_OTHER": true, "RECITATION": true, "FINISH_REASON_UNSPECIFIED": true,
	"OTHER": true, "LANGUAGE": true, "MALFORMED_FUNCTION_CALL": true,
	"UNEXPECTED_TOOL_CALL": true, "NO_IMAGE": true,
}

func mapFinishReason(r string) event.StopReason {
	switch strings.ToUpper(r) {
	case "STOP":
		return event.StopStop
	case "MAX_TOKENS":
		return event.StopLength
	}
	if finishReasonErrorSet[strings.ToUpper(r)] {
		return event.StopError
	}
	return event.StopStop
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
