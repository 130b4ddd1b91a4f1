// Package anthropic implements the Anthropic Messages wire protocol
// adapter: request construction (cache control, beta headers, OAuth
// identity, thinking configuration) and canonical stream-event translation.
//
// Grounded on original_source/packages/ai/src/pi_ai/providers/anthropic.py
// for exact semantics and on
// _examples/goadesign-goa-ai/features/model/anthropic/{client,stream}.go
// for the adapter/streamer split and the MessagesClient seam.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/eventstream"
	"github.com/openclaude/agentcore/internal/jsonutil"
	"github.com/openclaude/agentcore/internal/providers/simpleopts"
)

const (
	betaFineGrained = "fine-grained-tool-streaming-2025-05-14"
	betaInterleaved = "interleaved-thinking-2025-05-14"
	betaOAuth       = "oauth-2025-04-20"
	betaClaudeCode  = "claude-code-20250219"

	claudeCodeVersion  = "2.1.2"
	claudeCodeIdentity = "You are Claude Code, Anthropic's official CLI for Claude."
)

// claudeCodeTools is the fixed canonical-casing lookup OAuth (stealth-mode)
// sessions must present tool names as.
var claudeCodeTools = []string{
	"Read", "Write", "Edit", "Bash", "Grep", "Glob",
	"AskUserQuestion", "EnterPlanMode", "ExitPlanMode", "KillShell",
	"NotebookEdit", "Skill", "Task", "TaskOutput", "TodoWrite",
	"WebFetch", "WebSearch",
}

var claudeCodeLookup = func() map[string]string {
	m := make(map[string]string, len(claudeCodeTools))
	for _, t := range claudeCodeTools {
		m[strings.ToLower(t)] = t
	}
	return m
}()

func toClaudeCodeName(name string) string {
	if canon, ok := claudeCodeLookup[strings.ToLower(name)]; ok {
		return canon
	}
	return name
}

func fromClaudeCodeName(name string, tools []event.Tool) string {
	lower := strings.ToLower(name)
	for _, t := range tools {
		if strings.ToLower(t.Name) == lower {
			return t.Name
		}
	}
	return name
}

func isOAuthToken(apiKey string) bool { return strings.Contains(apiKey, "sk-ant-oat") }

var stopReasonMap = map[sdk.StopReason]event.StopReason{
	sdk.StopReasonEndTurn:      event.StopStop,
	sdk.StopReasonMaxTokens:    event.StopLength,
	sdk.StopReasonToolUse:      event.StopToolUse,
	sdk.StopReasonPauseTurn:    event.StopPauseTurn,
	sdk.StopReasonStopSequence: event.StopStop,
	sdk.StopReasonRefusal:      event.StopRefusal,
}

func mapStopReason(r sdk.StopReason) event.StopReason {
	if mapped, ok := stopReasonMap[r]; ok {
		return mapped
	}
	return event.StopStop
}

// thinkingBudgets are token budgets for non-adaptive (pre-Opus-4.6) models.
var thinkingBudgets = simpleopts.ThinkingBudgets{
	simpleopts.ThinkingMinimal: 1024,
	simpleopts.ThinkingLow:     4096,
	simpleopts.ThinkingMedium:  8192,
	simpleopts.ThinkingHigh:    16000,
	simpleopts.ThinkingXHigh:   32000,
}

var effortMap = map[simpleopts.ThinkingLevel]string{
	simpleopts.ThinkingMinimal: "low",
	simpleopts.ThinkingLow:     "low",
	simpleopts.ThinkingMedium:  "medium",
	simpleopts.ThinkingHigh:    "high",
	simpleopts.ThinkingXHigh:   "max",
}

func supportsAdaptiveThinking(modelID string) bool {
	return strings.Contains(modelID, "opus-4-6") || strings.Contains(modelID, "opus-4.6")
}

// cacheControl builds the Anthropic cache_control marker. Empty retention
// defaults to "short" (still ephemeral, no extended TTL); "none" disables
// caching outright; "long" only gets the 1h TTL against the canonical host.
func cacheControl(baseURL, retention string) *sdk.CacheControlEphemeralParam {
	if retention == "" {
		retention = "short"
	}
	if retention == "none" {
		return nil
	}
	cc := &sdk.CacheControlEphemeralParam{}
	if retention == "long" && strings.Contains(baseURL, "api.anthropic.com") {
		cc.TTL = sdk.CacheControlEphemeralTTL1h
	}
	return cc
}

// MessagesClient is the subset of the Anthropic SDK surface this adapter
// depends on, so tests can substitute a stub.
type MessagesClient interface {
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Adapter implements providers.Adapter for the Anthropic Messages API.
type Adapter struct {
	newClient func(apiKey, baseURL string, headers map[string]string, oauth bool) MessagesClient
}

// New builds the adapter with the real anthropic-sdk-go client factory.
func New() *Adapter {
	return &Adapter{newClient: defaultClientFactory}
}

// NewWithClientFactory lets tests inject a stub MessagesClient.
func NewWithClientFactory(factory func(apiKey, baseURL string, headers map[string]string, oauth bool) MessagesClient) *Adapter {
	return &Adapter{newClient: factory}
}

func defaultClientFactory(apiKey, baseURL string, headers map[string]string, oauth bool) MessagesClient {
	betas := []string{betaFineGrained, betaInterleaved}
	opts := []option.RequestOption{}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	for k, v := range headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	if oauth {
		opts = append(opts, option.WithAuthToken(apiKey))
		opts = append(opts, option.WithHeader("anthropic-beta", strings.Join(append([]string{betaClaudeCode, betaOAuth}, betas...), ",")))
		opts = append(opts, option.WithHeader("user-agent", fmt.Sprintf("claude-cli/%s (external, cli)", claudeCodeVersion)))
		opts = append(opts, option.WithHeader("x-app", "cli"))
	} else {
		opts = append(opts, option.WithAPIKey(apiKey))
		opts = append(opts, option.WithHeader("anthropic-beta", strings.Join(betas, ",")))
	}
	c := sdk.NewClient(opts...)
	return &c.Messages
}

func (a *Adapter) API() string { return "anthropic-messages" }

func (a *Adapter) StreamSimple(ctx context.Context, model event.Model, reqCtx event.Context, opts *simpleopts.SimpleStreamOptions, apiKey string) (*eventstream.EventStream[event.StreamEvent, event.Message], error) {
	resolved := simpleopts.BuildBaseOptions(model, opts, apiKey)
	return a.Stream(ctx, model, reqCtx, resolved)
}

func (a *Adapter) Stream(ctx context.Context, model event.Model, reqCtx event.Context, opts simpleopts.StreamOptions) (*eventstream.EventStream[event.StreamEvent, event.Message], error) {
	oauth := isOAuthToken(opts.APIKey)
	cc := cacheControl(model.BaseURL, opts.CacheRetention)

	headers := map[string]string{}
	for k, v := range model.Headers {
		headers[k] = v
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}

	client := a.newClient(opts.APIKey, model.BaseURL, headers, oauth)

	params, err := buildParams(model, reqCtx, opts, oauth, cc)
	if err != nil {
		return nil, err
	}

	stream := eventstream.New[event.StreamEvent, event.Message](32)
	go runStream(ctx, client, params, model, reqCtx.Tools, oauth, stream)
	return stream, nil
}

func buildParams(model event.Model, reqCtx event.Context, opts simpleopts.StreamOptions, oauth bool, cc *sdk.CacheControlEphemeralParam) (sdk.MessageNewParams, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = model.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model.ID),
		MaxTokens: int64(maxTokens),
		Messages:  buildMessages(reqCtx, oauth, cc),
		Stream:    sdk.Bool(true),
	}
	if system := buildSystem(reqCtx, oauth, cc); system != nil {
		params.System = system
	}
	if tools := buildTools(reqCtx, oauth); tools != nil {
		params.Tools = tools
	}
	if opts.Temperature != nil {
		params.Temperature = sdk.Float(*opts.Temperature)
	}
	applyThinking(&params, model.ID, oauth, opts.ReasoningLevel, nil)
	return params, nil
}

func buildMessages(reqCtx event.Context, oauth bool, cc *sdk.CacheControlEphemeralParam) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(reqCtx.Messages))
	last := len(reqCtx.Messages) - 1

	for i, msg := range reqCtx.Messages {
		isLast := i == last
		switch msg.Role {
		case event.RoleUser:
			blocks := userContentBlocks(msg)
			if isLast && cc != nil && len(blocks) > 0 {
				blocks[len(blocks)-1] = withCacheControl(blocks[len(blocks)-1], cc)
			}
			if len(blocks) > 0 {
				out = append(out, sdk.NewUserMessage(blocks...))
			}

		case event.RoleAssistant:
			blocks := assistantContentBlocks(msg, oauth)
			if len(blocks) > 0 {
				out = append(out, sdk.NewAssistantMessage(blocks...))
			}

		case event.RoleToolResult:
			content := toolResultBlocks(msg)
			out = append(out, sdk.NewUserMessage(sdk.NewToolResultBlock(msg.ToolCallID, content, msg.IsError)))
		}
	}
	return out
}

func userContentBlocks(msg event.Message) []sdk.ContentBlockParamUnion {
	var blocks []sdk.ContentBlockParamUnion
	if msg.UserText != "" {
		text := jsonutil.SanitizeSurrogates(msg.UserText)
		if strings.TrimSpace(text) != "" {
			blocks = append(blocks, sdk.NewTextBlock(text))
		}
		return blocks
	}
	for _, b := range msg.UserBlocks {
		switch b.Kind {
		case event.BlockText:
			text := jsonutil.SanitizeSurrogates(b.Text)
			if strings.TrimSpace(text) != "" {
				blocks = append(blocks, sdk.NewTextBlock(text))
			}
		case event.BlockImage:
			blocks = append(blocks, sdk.NewImageBlockBase64(b.ImageMIME, b.ImageData))
		}
	}
	return blocks
}

func assistantContentBlocks(msg event.Message, oauth bool) []sdk.ContentBlockParamUnion {
	var blocks []sdk.ContentBlockParamUnion
	for _, b := range msg.Content {
		switch b.Kind {
		case event.BlockText:
			text := jsonutil.SanitizeSurrogates(b.Text)
			if text != "" {
				blocks = append(blocks, sdk.NewTextBlock(text))
			}
		case event.BlockThinking:
			blocks = append(blocks, sdk.ContentBlockParamUnion{
				OfThinking: &sdk.ThinkingBlockParam{
					Thinking:  b.Thinking,
					Signature: string(b.ThinkingSignature),
				},
			})
		case event.BlockToolCall:
			name := b.ToolCallName
			if oauth {
				name = toClaudeCodeName(name)
			}
			blocks = append(blocks, sdk.NewToolUseBlock(b.ToolCallID, b.ToolCallArguments, name))
		}
	}
	return blocks
}

func toolResultBlocks(msg event.Message) []sdk.ToolResultBlockParamContentUnion {
	var out []sdk.ToolResultBlockParamContentUnion
	for _, b := range msg.ToolBlocks {
		switch b.Kind {
		case event.BlockText:
			out = append(out, sdk.ToolResultBlockParamContentUnion{OfText: &sdk.TextBlockParam{Text: jsonutil.SanitizeSurrogates(b.Text)}})
		case event.BlockImage:
			img := sdk.NewImageBlockBase64(b.ImageMIME, b.ImageData)
			out = append(out, sdk.ToolResultBlockParamContentUnion{OfImage: img.OfImage})
		}
	}
	return out
}

func withCacheControl(block sdk.ContentBlockParamUnion, cc *sdk.CacheControlEphemeralParam) sdk.ContentBlockParamUnion {
	if block.OfText != nil {
		block.OfText.CacheControl = *cc
	}
	return block
}

func buildTools(reqCtx event.Context, oauth bool) []sdk.ToolUnionParam {
	if len(reqCtx.Tools) == 0 {
		return nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(reqCtx.Tools))
	for _, t := range reqCtx.Tools {
		name := t.Name
		if oauth {
			name = toClaudeCodeName(name)
		}
		out = append(out, sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{
			Properties: t.Parameters["properties"],
		}, name))
	}
	return out
}

func buildSystem(reqCtx event.Context, oauth bool, cc *sdk.CacheControlEphemeralParam) []sdk.TextBlockParam {
	var blocks []sdk.TextBlockParam
	if oauth {
		b := sdk.TextBlockParam{Text: claudeCodeIdentity}
		if cc != nil {
			b.CacheControl = *cc
		}
		blocks = append(blocks, b)
	}
	if reqCtx.SystemPrompt != "" {
		b := sdk.TextBlockParam{Text: jsonutil.SanitizeSurrogates(reqCtx.SystemPrompt)}
		if cc != nil {
			b.CacheControl = *cc
		}
		blocks = append(blocks, b)
	}
	if len(blocks) == 0 {
		return nil
	}
	return blocks
}

// effortBudgets approximates each adaptive effort level as a token budget.
// The pinned anthropic-sdk-go release exposes thinking only as the
// budget_tokens shape (ThinkingConfigParamOfEnabled); it has no typed field
// for the newer "adaptive"/output_config.effort request shape the Opus-4.6
// family also accepts, so Opus-4.6/OAuth sessions get the budget closest to
// their resolved effort level rather than the native effort-string control.
var effortBudgets = map[string]int{"low": 4096, "medium": 8192, "high": 16000, "max": 32000}

// applyThinking mutates params to request thinking, choosing a budget for
// Opus-4.6-family/OAuth sessions from their resolved effort level and an
// explicit per-level token budget otherwise, widening MaxTokens when the
// budget would otherwise crowd out all output.
func applyThinking(params *sdk.MessageNewParams, modelID string, oauth bool, level simpleopts.ThinkingLevel, custom simpleopts.ThinkingBudgets) {
	if level == "" {
		return
	}

	var budget int
	if supportsAdaptiveThinking(modelID) || oauth {
		effort := effortMap[level]
		if effort == "" {
			effort = "high"
		}
		budget = effortBudgets[effort]
	} else {
		var ok bool
		budget, ok = custom[level]
		if !ok {
			budget, ok = thinkingBudgets[level]
		}
		if !ok {
			budget = thinkingBudgets[simpleopts.ThinkingMedium]
		}
	}

	params.Thinking = sdk.ThinkingConfigParamOfEnabled(int64(budget))
	if budget > 0 && int64(budget) >= params.MaxTokens {
		params.MaxTokens = int64(budget) + params.MaxTokens
	}
}
