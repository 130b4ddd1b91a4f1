// Package agent adapts cmd/claude's Claude-Code-compatible request/response
// shape onto internal/agentloop's provider-agnostic state machine. The
// teacher's Runner drove a single OpenAI-compatible chat-completions client
// directly; this Runner instead resolves a model onto whichever
// internal/providers adapter the caller registered and drives it through
// one internal/agentloop.Loop per call, translating LoopEvents back into the
// same RunResult/ToolEvent/StreamCallbacks shape cmd/claude already expects.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openclaude/agentcore/internal/agentloop"
	"github.com/openclaude/agentcore/internal/config"
	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/providers"
	"github.com/openclaude/agentcore/internal/providers/simpleopts"
	"github.com/openclaude/agentcore/internal/tools"
)

var (
	// ErrMaxTurns signals that the agent exceeded the allowed turn count.
	ErrMaxTurns = errors.New("max turns exceeded")
	// ErrMaxBudget signals that the cost limit was exceeded.
	ErrMaxBudget = errors.New("max budget exceeded")
	// ErrToolDenied signals a user denied a tool call.
	ErrToolDenied = errors.New("tool denied")
	// ErrPlanMode signals that tools are disabled in plan mode.
	ErrPlanMode = errors.New("tools are disabled in plan mode")
)

// ToolEvent captures tool call/result events for streaming output.
type ToolEvent struct {
	// Type is either "tool_call" or "tool_result".
	Type string `json:"type"`
	// ToolName is the function name, if available.
	ToolName string `json:"tool_name,omitempty"`
	// ToolID associates tool results with calls.
	ToolID string `json:"tool_id,omitempty"`
	// Arguments stores serialized tool arguments.
	Arguments json.RawMessage `json:"arguments,omitempty"`
	// Result stores tool output content.
	Result string `json:"result,omitempty"`
	// IsError indicates whether the tool result represents a failure.
	IsError bool `json:"is_error,omitempty"`
}

// RunResult captures the outcome of a single user turn.
type RunResult struct {
	// Messages is the full conversation history, including tool results.
	Messages []event.Message
	// Final is the last assistant message in the turn.
	Final event.Message
	// Usage reports token counts for the last assistant message.
	Usage event.Usage
	// TotalUsage accumulates usage across all assistant messages in the turn.
	TotalUsage event.Usage
	// ModelUsage aggregates usage by model identifier.
	ModelUsage map[string]event.Usage
	// Events contains tool call and result events in call order.
	Events []ToolEvent
	// CostUSD is the accumulated cost for the run.
	CostUSD float64
	// NumTurns counts the number of assistant turns executed.
	NumTurns int
	// Duration is the total runtime for the run.
	Duration time.Duration
	// APIDuration is the cumulative time spent in the provider stream.
	APIDuration time.Duration
}

// ToolAuthorizer controls interactive permission prompts.
type ToolAuthorizer func(toolName string, args json.RawMessage) (bool, error)

// Runner drives one agent-loop conversation per Run/RunStream call.
type Runner struct {
	// Registry resolves a model onto the providers.Adapter that serves it.
	Registry *providers.Registry
	// Models resolves a bare model id string into its full descriptor
	// (pricing, context window, wire API). Falls back to a minimal
	// Model built from Provider/API/DefaultMaxTokens when a lookup misses.
	Models *event.Registry
	// Provider and API seed the fallback Model when Models has no entry.
	Provider         string
	API              string
	DefaultMaxTokens int

	// ToolRunner dispatches tool calls.
	ToolRunner *tools.Runner
	// ToolContext provides filesystem/session context to tools.
	ToolContext tools.ToolContext
	// Permissions defines how tool approval works.
	Permissions tools.Permissions
	// AuthorizeTool prompts user approval when required.
	AuthorizeTool ToolAuthorizer
	// MaxTurns limits the number of assistant turns per call.
	MaxTurns int
	// Pricing provides per-model costs for budget tracking.
	Pricing map[string]config.ModelPricing
	// MaxBudgetUSD enforces a ceiling on estimated cost.
	MaxBudgetUSD float64
}

// Run executes a single user turn with tool handling. messages is the full
// conversation so far, ending in the new user turn to send.
func (r *Runner) Run(
	ctx context.Context,
	messages []event.Message,
	systemPrompt string,
	model string,
	toolsEnabled bool,
) (*RunResult, error) {
	return r.run(ctx, messages, systemPrompt, model, toolsEnabled, nil)
}

// resolveModel looks up model's full descriptor, falling back to a minimal
// one seeded from Provider/API/DefaultMaxTokens when Models has no entry.
func (r *Runner) resolveModel(modelID string) event.Model {
	if r.Models != nil {
		if m, ok := r.Models.Lookup(event.ModelKey(r.Provider, modelID)); ok {
			return m
		}
	}
	maxTokens := r.DefaultMaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return event.Model{ID: modelID, Provider: r.Provider, API: r.API, MaxTokens: maxTokens}
}

// buildToolRegistry adapts r.ToolRunner's tools onto an agentloop.ToolRegistry,
// wrapping each with the authorization/event-recording decorator. Returns
// ErrPlanMode immediately if tools are requested under plan mode.
func (r *Runner) buildToolRegistry(toolsEnabled bool, record func(ToolEvent)) (*agentloop.ToolRegistry, error) {
	registry := agentloop.NewToolRegistry()
	if !toolsEnabled || r.ToolRunner == nil {
		return registry, nil
	}
	if r.Permissions.Mode == tools.PermissionPlan {
		return nil, ErrPlanMode
	}
	for name, tool := range r.ToolRunner.Tools {
		registry.Register(authorizingTool{
			name:        name,
			inner:       tools.AsAgentTool(tool, r.ToolContext),
			permissions: r.Permissions,
			authorize:   r.AuthorizeTool,
			record:      record,
		})
	}
	return registry, nil
}

// run is the shared implementation behind Run and RunStream; callbacks is
// nil for the non-streaming path.
func (r *Runner) run(
	ctx context.Context,
	messages []event.Message,
	systemPrompt string,
	modelID string,
	toolsEnabled bool,
	callbacks *StreamCallbacks,
) (*RunResult, error) {
	if r.Registry == nil {
		return nil, errors.New("provider registry is required")
	}
	if r.MaxTurns <= 0 {
		r.MaxTurns = 8
	}

	history := append([]event.Message(nil), messages...)
	var newMsg event.Message
	if len(history) > 0 {
		newMsg = history[len(history)-1]
		history = history[:len(history)-1]
	}

	var events []ToolEvent
	toolRegistry, err := r.buildToolRegistry(toolsEnabled, func(e ToolEvent) { events = append(events, e) })
	if err != nil {
		return nil, err
	}

	cfg := agentloop.DefaultConfig()
	cfg.MaxIterations = r.MaxTurns
	loop := agentloop.New(r.Registry, toolRegistry, agentloop.NoopStore{}, cfg)

	model := r.resolveModel(modelID)
	reqCtx := event.Context{SystemPrompt: systemPrompt, Messages: history}

	if callbacks != nil && callbacks.OnStreamStart != nil {
		if err := callbacks.OnStreamStart(modelID); err != nil {
			return nil, fmt.Errorf("stream start callback: %w", err)
		}
	}

	startTime := time.Now()
	streamRun, err := loop.Prompt(ctx, r.ToolContext.SessionID, model, reqCtx, newMsg, simpleopts.StreamOptions{MaxTokens: model.MaxTokens})
	if err != nil {
		return nil, err
	}

	result := &RunResult{Messages: append([]event.Message(nil), messages...), ModelUsage: map[string]event.Usage{}}
	callStart := time.Now()
	rangeErr := streamRun.Range(func(evt agentloop.LoopEvent) bool {
		switch evt.Kind {
		case agentloop.LoopTransport:
			if callbacks != nil && callbacks.OnStreamEvent != nil {
				_ = callbacks.OnStreamEvent(evt.Transport)
			}

		case agentloop.LoopMessageEnd:
			result.NumTurns++
			result.Usage = evt.Message.Usage
			result.TotalUsage.Add(evt.Message.Usage)
			accumulateUsageMap(result.ModelUsage, modelID, evt.Message.Usage)
			result.CostUSD += estimateCost(modelID, evt.Message.Usage, r.Pricing)
			result.Messages = append(result.Messages, evt.Message)
			result.Final = evt.Message
			if callbacks != nil && callbacks.OnStreamComplete != nil {
				_ = callbacks.OnStreamComplete(StreamSummary{
					Message:      evt.Message,
					Usage:        evt.Message.Usage,
					HasUsage:     evt.Message.Usage.Total > 0,
					FinishReason: string(evt.Message.StopReason),
					Model:        modelID,
				})
			}

		case agentloop.LoopToolExecutionStart:
			if callbacks != nil && callbacks.OnToolCall != nil {
				_ = callbacks.OnToolCall(ToolEvent{Type: "tool_call", ToolName: evt.ToolName, ToolID: evt.ToolCallID})
			}

		case agentloop.LoopToolExecutionEnd:
			result.Messages = append(result.Messages, evt.ToolResult)
			if callbacks != nil && callbacks.OnToolResult != nil {
				_ = callbacks.OnToolResult(ToolEvent{
					Type:     "tool_result",
					ToolName: evt.ToolName,
					ToolID:   evt.ToolCallID,
					Result:   evt.ToolResult.ToolBlocks[0].Text,
					IsError:  evt.ToolResult.IsError,
				}, evt.ToolResult)
			}
		}
		return true
	})
	result.APIDuration = time.Since(callStart)
	result.Duration = time.Since(startTime)
	result.Events = events

	if rangeErr != nil {
		return nil, rangeErr
	}
	if r.MaxBudgetUSD > 0 && result.CostUSD > r.MaxBudgetUSD {
		return nil, fmt.Errorf("%w: %.4f > %.4f", ErrMaxBudget, result.CostUSD, r.MaxBudgetUSD)
	}
	if result.NumTurns >= r.MaxTurns {
		return result, ErrMaxTurns
	}
	return result, nil
}

// authorizingTool wraps an agentloop.Tool with the permission-prompt and
// tool-event-recording behavior the teacher's Runner applied inline around
// every ToolRunner.Run call.
type authorizingTool struct {
	name        string
	inner       agentloop.Tool
	permissions tools.Permissions
	authorize   ToolAuthorizer
	record      func(ToolEvent)
}

func (a authorizingTool) Name() string        { return a.name }
func (a authorizingTool) Description() string { return a.inner.Description() }
func (a authorizingTool) Parameters() map[string]any {
	return a.inner.Parameters()
}

func (a authorizingTool) Execute(ctx context.Context, callID string, args map[string]any, onUpdate agentloop.UpdateFunc) (agentloop.ToolOutput, error) {
	raw, _ := json.Marshal(args)
	if a.record != nil {
		a.record(ToolEvent{Type: "tool_call", ToolName: a.name, ToolID: callID, Arguments: raw})
	}

	if a.authorize != nil && a.permissions.ShouldPrompt(a.name) {
		allowed, err := a.authorize(a.name, raw)
		if err != nil {
			return agentloop.ToolOutput{}, err
		}
		if !allowed {
			out := agentloop.ToolOutput{Content: fmt.Sprintf("%s: %s", ErrToolDenied, a.name), IsError: true}
			if a.record != nil {
				a.record(ToolEvent{Type: "tool_result", ToolName: a.name, ToolID: callID, Result: out.Content, IsError: true})
			}
			return out, nil
		}
	}

	out, err := a.inner.Execute(ctx, callID, args, onUpdate)
	if err != nil {
		out = agentloop.ToolOutput{Content: err.Error(), IsError: true}
	}
	if a.record != nil {
		a.record(ToolEvent{Type: "tool_result", ToolName: a.name, ToolID: callID, Result: out.Content, IsError: out.IsError})
	}
	return out, nil
}

// estimateCost computes cost using pricing per million tokens.
func estimateCost(model string, usage event.Usage, pricing map[string]config.ModelPricing) float64 {
	if pricing == nil {
		return 0
	}
	price, ok := pricing[model]
	if !ok {
		return 0
	}
	input := float64(usage.Input) / 1_000_000
	output := float64(usage.Output) / 1_000_000
	return input*price.InputPer1M + output*price.OutputPer1M
}

// accumulateUsageMap adds usage counts into a per-model map.
func accumulateUsageMap(target map[string]event.Usage, model string, usage event.Usage) {
	current := target[model]
	current.Add(usage)
	target[model] = current
}
