// Package bedrock implements the AWS Bedrock Converse Stream wire protocol,
// the one adapter in this module fronted by an AWS SDK client rather than a
// provider-specific HTTP client. Grounded on
// _examples/haasonsaas-nexus/internal/agent/providers/bedrock.go and
// internal/agent/toolconv/bedrock.go for the bedrockruntime client and
// Converse event-stream idiom, and on
// original_source/packages/ai/src/pi_ai/providers/amazon_bedrock.py for cache
// points, prompt-caching model detection, adaptive-vs-budget thinking, and
// tool-call-id normalisation.
package bedrock

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/eventstream"
	"github.com/openclaude/agentcore/internal/jsonutil"
	"github.com/openclaude/agentcore/internal/providers/simpleopts"
)

// ConverseStreamClient is the subset of bedrockruntime this adapter depends
// on, so tests can substitute a stub.
type ConverseStreamClient interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Adapter implements providers.Adapter for the AWS Bedrock Converse Stream
// API, fronting Anthropic, Amazon, Meta, Mistral, and Cohere models hosted on
// Bedrock behind one wire protocol.
type Adapter struct {
	newClient func(ctx context.Context, region string) (ConverseStreamClient, error)
}

// New builds the adapter with the real bedrockruntime client factory,
// resolving AWS credentials from the default SDK chain (environment, shared
// config, IAM role).
func New() *Adapter {
	return &Adapter{newClient: defaultClientFactory}
}

// NewWithClientFactory lets tests inject a stub ConverseStreamClient.
func NewWithClientFactory(factory func(ctx context.Context, region string) (ConverseStreamClient, error)) *Adapter {
	return &Adapter{newClient: factory}
}

func defaultClientFactory(ctx context.Context, region string) (ConverseStreamClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
	}
	return bedrockruntime.NewFromConfig(cfg), nil
}

func (a *Adapter) API() string { return "bedrock-converse-stream" }

func (a *Adapter) StreamSimple(ctx context.Context, model event.Model, reqCtx event.Context, opts *simpleopts.SimpleStreamOptions, apiKey string) (*eventstream.EventStream[event.StreamEvent, event.Message], error) {
	resolved := simpleopts.BuildBaseOptions(model, opts, apiKey)
	return a.Stream(ctx, model, reqCtx, resolved)
}

// regionOf resolves the AWS region to call: the model's Compat["region"]
// override, then AWS_REGION/AWS_DEFAULT_REGION, then us-east-1 — Bedrock has
// no API-key concept, so unlike every other adapter opts.APIKey plays no
// part here; credentials instead come from the SDK's own chain.
func regionOf(model event.Model) string {
	if r, ok := model.Compat["region"].(string); ok && r != "" {
		return r
	}
	if r := os.Getenv("AWS_REGION"); r != "" {
		return r
	}
	if r := os.Getenv("AWS_DEFAULT_REGION"); r != "" {
		return r
	}
	return "us-east-1"
}

func (a *Adapter) Stream(ctx context.Context, model event.Model, reqCtx event.Context, opts simpleopts.StreamOptions) (*eventstream.EventStream[event.StreamEvent, event.Message], error) {
	client, err := a.newClient(ctx, regionOf(model))
	if err != nil {
		return nil, err
	}

	retention := resolveCacheRetention(opts.CacheRetention)
	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(model.ID),
		Messages: buildMessages(reqCtx, model, retention),
	}
	if system := buildSystem(reqCtx, model, retention); system != nil {
		input.System = system
	}
	inference := &types.InferenceConfiguration{}
	if opts.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(int32(opts.MaxTokens))
	}
	if opts.Temperature != nil {
		t := float32(*opts.Temperature)
		inference.Temperature = &t
	}
	input.InferenceConfig = inference
	if toolConfig := buildToolConfig(reqCtx.Tools); toolConfig != nil {
		input.ToolConfig = toolConfig
	}
	if fields := buildAdditionalFields(model, opts); fields != nil {
		input.AdditionalModelRequestFields = fields
	}

	out := eventstream.New[event.StreamEvent, event.Message](32)
	stream, err := client.ConverseStream(ctx, input)
	if err != nil {
		return nil, wrapError(err)
	}
	go runStream(ctx, stream, model, out)
	return out, nil
}

// ---------------------------------------------------------------------------
// Model-family detection and cache/thinking policy
// ---------------------------------------------------------------------------

func isAnthropicModel(modelID string) bool {
	return strings.Contains(modelID, "anthropic.claude") || strings.Contains(modelID, "anthropic/claude")
}

// supportsPromptCaching mirrors the original provider's heuristic: trust
// the model's own advertised cache pricing first, falling back to an
// id-pattern match for the Claude generations known to support Bedrock
// prompt caching.
func supportsPromptCaching(model event.Model) bool {
	if model.Cost.CacheRead > 0 || model.Cost.CacheWrite > 0 {
		return true
	}
	id := strings.ToLower(model.ID)
	if !strings.Contains(id, "claude") {
		return false
	}
	if strings.Contains(id, "-4-") || strings.Contains(id, "-4.") {
		return true
	}
	return strings.Contains(id, "claude-3-7-sonnet") || strings.Contains(id, "claude-3-5-haiku")
}

func supportsAdaptiveThinking(modelID string) bool {
	return strings.Contains(modelID, "opus-4-6") || strings.Contains(modelID, "opus-4.6")
}

// supportsThinkingSignature reports whether a model echoes back a signature
// alongside reasoning text — only the Anthropic-on-Bedrock family does.
func supportsThinkingSignature(modelID string) bool {
	return isAnthropicModel(modelID)
}

func resolveCacheRetention(retention string) string {
	if retention != "" {
		return retention
	}
	if os.Getenv("PI_CACHE_RETENTION") == "long" {
		return "long"
	}
	return "short"
}

// cachePoint builds the cache-point content block appended to the final
// user/system block for models that support prompt caching. The pinned
// bedrockruntime types expose only CachePointBlock{Type: default}; the
// extended one-hour TTL the original provider requests for "long" retention
// has no field on this SDK's CachePointBlock, so "long" and "short" resolve
// to the same wire shape here.
func cachePoint() types.CachePointBlock {
	return types.CachePointBlock{Type: types.CachePointTypeDefault}
}

var toolCallIDPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// normalizeToolCallID replaces characters Bedrock's toolUseId rejects and
// clamps to its 64-character limit.
func normalizeToolCallID(id string) string {
	sanitized := toolCallIDPattern.ReplaceAllString(id, "_")
	if len(sanitized) > 64 {
		sanitized = sanitized[:64]
	}
	return sanitized
}

// ---------------------------------------------------------------------------
// Request construction
// ---------------------------------------------------------------------------

func buildMessages(reqCtx event.Context, model event.Model, retention string) []types.Message {
	var out []types.Message

	messages := reqCtx.Messages
	for i := 0; i < len(messages); i++ {
		msg := messages[i]
		switch msg.Role {
		case event.RoleUser:
			if content := userContentBlocks(msg); len(content) > 0 {
				out = append(out, types.Message{Role: types.ConversationRoleUser, Content: content})
			}

		case event.RoleAssistant:
			if content := assistantContentBlocks(msg, model); len(content) > 0 {
				out = append(out, types.Message{Role: types.ConversationRoleAssistant, Content: content})
			}

		case event.RoleToolResult:
			var results []types.ContentBlock
			results = append(results, toolResultBlock(msg))
			for i+1 < len(messages) && messages[i+1].Role == event.RoleToolResult {
				i++
				results = append(results, toolResultBlock(messages[i]))
			}
			out = append(out, types.Message{Role: types.ConversationRoleUser, Content: results})
		}
	}

	if retention != "none" && supportsPromptCaching(model) && len(out) > 0 {
		last := &out[len(out)-1]
		if last.Role == types.ConversationRoleUser {
			last.Content = append(last.Content, &types.ContentBlockMemberCachePoint{Value: cachePoint()})
		}
	}

	return out
}

func userContentBlocks(msg event.Message) []types.ContentBlock {
	var out []types.ContentBlock
	if msg.UserText != "" {
		text := jsonutil.SanitizeSurrogates(msg.UserText)
		if strings.TrimSpace(text) != "" {
			out = append(out, &types.ContentBlockMemberText{Value: text})
		}
		return out
	}
	for _, b := range msg.UserBlocks {
		switch b.Kind {
		case event.BlockText:
			text := jsonutil.SanitizeSurrogates(b.Text)
			if strings.TrimSpace(text) != "" {
				out = append(out, &types.ContentBlockMemberText{Value: text})
			}
		case event.BlockImage:
			if img, ok := imageBlock(b.ImageMIME, b.ImageData); ok {
				out = append(out, img)
			}
		}
	}
	return out
}

func assistantContentBlocks(msg event.Message, model event.Model) []types.ContentBlock {
	var out []types.ContentBlock
	for _, b := range msg.Content {
		switch b.Kind {
		case event.BlockText:
			text := jsonutil.SanitizeSurrogates(b.Text)
			if text == "" {
				continue
			}
			out = append(out, &types.ContentBlockMemberText{Value: text})

		case event.BlockToolCall:
			out = append(out, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(normalizeToolCallID(b.ToolCallID)),
					Name:      aws.String(b.ToolCallName),
					Input:     document.NewLazyDocument(b.ToolCallArguments),
				},
			})

		case event.BlockThinking:
			thinking := strings.TrimSpace(b.Thinking)
			if thinking == "" {
				continue
			}
			reasoning := types.ReasoningTextBlock{Text: aws.String(jsonutil.SanitizeSurrogates(b.Thinking))}
			if supportsThinkingSignature(model.ID) && !b.ThinkingSignature.IsEmpty() {
				sig := string(b.ThinkingSignature)
				reasoning.Signature = &sig
			}
			out = append(out, &types.ContentBlockMemberReasoningContent{
				Value: &types.ReasoningContentBlockMemberReasoningText{Value: reasoning},
			})
		}
	}
	return out
}

func toolResultBlock(msg event.Message) types.ContentBlock {
	var content []types.ToolResultContentBlock
	for _, b := range msg.ToolBlocks {
		switch b.Kind {
		case event.BlockImage:
			if img, ok := toolResultImageBlock(b.ImageMIME, b.ImageData); ok {
				content = append(content, img)
			}
		default:
			content = append(content, &types.ToolResultContentBlockMemberText{Value: jsonutil.SanitizeSurrogates(b.Text)})
		}
	}
	status := types.ToolResultStatusSuccess
	if msg.IsError {
		status = types.ToolResultStatusError
	}
	return &types.ContentBlockMemberToolResult{
		Value: types.ToolResultBlock{
			ToolUseId: aws.String(normalizeToolCallID(msg.ToolCallID)),
			Content:   content,
			Status:    status,
		},
	}
}

func imageFormat(mime string) (types.ImageFormat, bool) {
	switch strings.ToLower(mime) {
	case "image/png":
		return types.ImageFormatPng, true
	case "image/jpeg", "image/jpg":
		return types.ImageFormatJpeg, true
	case "image/gif":
		return types.ImageFormatGif, true
	case "image/webp":
		return types.ImageFormatWebp, true
	default:
		return "", false
	}
}

func imageBlock(mime, base64Data string) (*types.ContentBlockMemberImage, bool) {
	format, ok := imageFormat(mime)
	if !ok {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return nil, false
	}
	return &types.ContentBlockMemberImage{Value: types.ImageBlock{Format: format, Source: &types.ImageSourceMemberBytes{Value: data}}}, true
}

func toolResultImageBlock(mime, base64Data string) (*types.ToolResultContentBlockMemberImage, bool) {
	format, ok := imageFormat(mime)
	if !ok {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return nil, false
	}
	return &types.ToolResultContentBlockMemberImage{Value: types.ImageBlock{Format: format, Source: &types.ImageSourceMemberBytes{Value: data}}}, true
}

func buildSystem(reqCtx event.Context, model event.Model, retention string) []types.SystemContentBlock {
	if reqCtx.SystemPrompt == "" {
		return nil
	}
	blocks := []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: jsonutil.SanitizeSurrogates(reqCtx.SystemPrompt)}}
	if retention != "none" && supportsPromptCaching(model) {
		blocks = append(blocks, &types.SystemContentBlockMemberCachePoint{Value: cachePoint()})
	}
	return blocks
}

func buildToolConfig(tools []event.Tool) *types.ToolConfiguration {
	if len(tools) == 0 {
		return nil
	}
	out := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		params := make(map[string]any, len(t.Parameters))
		for k, v := range t.Parameters {
			if k == "$schema" {
				continue
			}
			params[k] = v
		}
		out = append(out, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(params)},
			},
		})
	}
	return &types.ToolConfiguration{Tools: out, ToolChoice: &types.ToolChoiceMemberAuto{Value: types.AutoToolChoice{}}}
}

// bedrockThinkingBudgets are token budgets for non-adaptive Anthropic-on-
// Bedrock models; mirrors anthropic.thinkingBudgets since both sit on the
// same underlying Claude thinking mechanism.
var bedrockThinkingBudgets = simpleopts.ThinkingBudgets{
	simpleopts.ThinkingMinimal: 1024,
	simpleopts.ThinkingLow:     4096,
	simpleopts.ThinkingMedium:  8192,
	simpleopts.ThinkingHigh:    16000,
	simpleopts.ThinkingXHigh:   32000,
}

var bedrockEffortMap = map[simpleopts.ThinkingLevel]string{
	simpleopts.ThinkingMinimal: "low",
	simpleopts.ThinkingLow:     "low",
	simpleopts.ThinkingMedium:  "medium",
	simpleopts.ThinkingHigh:    "high",
	simpleopts.ThinkingXHigh:   "max",
}

// buildAdditionalFields constructs the additionalModelRequestFields document
// carrying Anthropic's thinking configuration; every other model family on
// Bedrock passes no additional fields, matching the original provider which
// only ever populates this for the anthropic.claude/anthropic/claude id
// prefixes.
func buildAdditionalFields(model event.Model, opts simpleopts.StreamOptions) document.Interface {
	if opts.ReasoningLevel == "" || !isAnthropicModel(model.ID) {
		return nil
	}

	if supportsAdaptiveThinking(model.ID) {
		effort := bedrockEffortMap[opts.ReasoningLevel]
		if effort == "" {
			effort = "high"
		}
		return document.NewLazyDocument(map[string]any{
			"thinking": map[string]any{"type": "adaptive", "effort": effort},
		})
	}

	budget, ok := bedrockThinkingBudgets[opts.ReasoningLevel]
	if !ok {
		budget = bedrockThinkingBudgets[simpleopts.ThinkingMedium]
	}
	return document.NewLazyDocument(map[string]any{
		"thinking": map[string]any{"type": "enabled", "budget_tokens": budget},
	})
}

// ---------------------------------------------------------------------------
// Response streaming
// ---------------------------------------------------------------------------

func runStream(ctx context.Context, stream *bedrockruntime.ConverseStreamOutput, model event.Model, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	builder := event.NewMessageBuilder(model.API, model.Provider, model.ID)
	out.Push(event.StreamEvent{Kind: event.EventStart, Partial: builder.Snapshot(false)})

	eventChan := stream.GetStream()
	defer eventChan.Close()

	blockIndex := map[int32]int{}

	for {
		select {
		case <-ctx.Done():
			handleError(builder, ctx.Err(), true, out)
			return

		case wireEvent, ok := <-eventChan.Events():
			if !ok {
				if err := eventChan.Err(); err != nil {
					handleError(builder, err, false, out)
					return
				}
				finish(builder, out)
				return
			}
			handleWireEvent(builder, blockIndex, wireEvent, out)
		}
	}
}

func handleWireEvent(b *event.MessageBuilder, blockIndex map[int32]int, wireEvent types.ConverseStreamOutput, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	switch ev := wireEvent.(type) {
	case *types.ConverseStreamOutputMemberContentBlockStart:
		handleBlockStart(b, blockIndex, ev.Value, out)

	case *types.ConverseStreamOutputMemberContentBlockDelta:
		handleBlockDelta(b, blockIndex, ev.Value, out)

	case *types.ConverseStreamOutputMemberContentBlockStop:
		handleBlockStop(b, blockIndex, ev.Value, out)

	case *types.ConverseStreamOutputMemberMessageStop:
		b.SetStopReason(mapStopReason(ev.Value.StopReason))

	case *types.ConverseStreamOutputMemberMetadata:
		handleMetadata(b, ev.Value)
	}
}

func handleBlockStart(b *event.MessageBuilder, blockIndex map[int32]int, ev types.ContentBlockStartEvent, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	idx := int32(0)
	if ev.ContentBlockIndex != nil {
		idx = *ev.ContentBlockIndex
	}
	toolUse, ok := ev.Start.(*types.ContentBlockStartMemberToolUse)
	if !ok {
		return
	}
	blk := b.StartToolCall(aws.ToString(toolUse.Value.ToolUseId), aws.ToString(toolUse.Value.Name))
	blockIndex[idx] = blk
	out.Push(event.StreamEvent{Kind: event.EventToolStart, ContentIndex: blk, Partial: b.Snapshot(false)})
}

func handleBlockDelta(b *event.MessageBuilder, blockIndex map[int32]int, ev types.ContentBlockDeltaEvent, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	wireIdx := int32(0)
	if ev.ContentBlockIndex != nil {
		wireIdx = *ev.ContentBlockIndex
	}
	idx, hasBlock := blockIndex[wireIdx]

	switch delta := ev.Delta.(type) {
	case *types.ContentBlockDeltaMemberText:
		if !hasBlock {
			idx = b.StartText()
			blockIndex[wireIdx] = idx
			out.Push(event.StreamEvent{Kind: event.EventTextStart, ContentIndex: idx, Partial: b.Snapshot(false)})
		}
		text := jsonutil.SanitizeSurrogates(delta.Value)
		b.AppendText(idx, text)
		out.Push(event.StreamEvent{Kind: event.EventTextDelta, ContentIndex: idx, Delta: text, Partial: b.Snapshot(false)})

	case *types.ContentBlockDeltaMemberToolUse:
		if !hasBlock || delta.Value.Input == nil {
			return
		}
		args, _ := jsonutil.ParsePartialJSON(*delta.Value.Input)
		b.SetToolArguments(idx, args)
		out.Push(event.StreamEvent{Kind: event.EventToolDelta, ContentIndex: idx, Delta: *delta.Value.Input, Partial: b.Snapshot(false)})

	case *types.ContentBlockDeltaMemberReasoningContent:
		if !hasBlock {
			idx = b.StartThinking()
			blockIndex[wireIdx] = idx
			out.Push(event.StreamEvent{Kind: event.EventThinkingStart, ContentIndex: idx, Partial: b.Snapshot(false)})
		}
		switch rc := delta.Value.(type) {
		case *types.ReasoningContentBlockDeltaMemberText:
			b.AppendThinking(idx, rc.Value)
			out.Push(event.StreamEvent{Kind: event.EventThinkingDelta, ContentIndex: idx, Delta: rc.Value, Partial: b.Snapshot(false)})
		case *types.ReasoningContentBlockDeltaMemberSignature:
			current := b.Block(idx)
			b.SetSignature(idx, current.ThinkingSignature+event.Signature(rc.Value))
		}
	}
}

func handleBlockStop(b *event.MessageBuilder, blockIndex map[int32]int, ev types.ContentBlockStopEvent, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	wireIdx := int32(0)
	if ev.ContentBlockIndex != nil {
		wireIdx = *ev.ContentBlockIndex
	}
	idx, ok := blockIndex[wireIdx]
	if !ok {
		return
	}
	blk := b.Block(idx)
	switch blk.Kind {
	case event.BlockText:
		out.Push(event.StreamEvent{Kind: event.EventTextEnd, ContentIndex: idx, Content: blk.Text, Partial: b.Snapshot(false)})
	case event.BlockThinking:
		out.Push(event.StreamEvent{Kind: event.EventThinkingEnd, ContentIndex: idx, Content: blk.Thinking, Partial: b.Snapshot(false)})
	case event.BlockToolCall:
		out.Push(event.StreamEvent{Kind: event.EventToolEnd, ContentIndex: idx, ToolCall: blk, Partial: b.Snapshot(false)})
	}
	b.CloseOpen()
}

func handleMetadata(b *event.MessageBuilder, ev types.ConverseStreamMetadataEvent) {
	if ev.Usage == nil {
		return
	}
	u := ev.Usage
	usage := event.Usage{Input: int(u.InputTokens), Output: int(u.OutputTokens), Total: int(u.TotalTokens)}
	if u.CacheReadInputTokens != nil {
		usage.CacheRead = int(*u.CacheReadInputTokens)
	}
	if u.CacheWriteInputTokens != nil {
		usage.CacheWrite = int(*u.CacheWriteInputTokens)
	}
	b.SetUsage(usage)
}

var stopReasonMap = map[types.StopReason]event.StopReason{
	types.StopReasonEndTurn:           event.StopStop,
	types.StopReasonToolUse:           event.StopToolUse,
	types.StopReasonMaxTokens:         event.StopLength,
	types.StopReasonStopSequence:      event.StopStop,
	types.StopReasonGuardrailIntervened: event.StopError,
	types.StopReasonContentFiltered:   event.StopError,
}

func mapStopReason(r types.StopReason) event.StopReason {
	if mapped, ok := stopReasonMap[r]; ok {
		return mapped
	}
	return event.StopStop
}

func finish(b *event.MessageBuilder, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	final := b.Snapshot(true)
	final.Timestamp = time.Now().UnixMilli()
	if final.StopReason == event.StopError || final.StopReason == event.StopAborted {
		err := fmt.Errorf("bedrock: %s", "an unknown error occurred")
		out.Push(event.StreamEvent{Kind: event.EventError, Reason: final.StopReason, Err: err, Message: final})
		out.Fail(err)
		return
	}
	out.Push(event.StreamEvent{Kind: event.EventDone, Reason: final.StopReason, Message: final})
	out.End(final)
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

func wrapError(err error) error {
	return fmt.Errorf("bedrock: %w", err)
}
