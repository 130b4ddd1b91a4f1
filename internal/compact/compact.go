// Package compact implements the conversation compactor (spec.md §4.9): an
// O(total-content-bytes) token-estimate heuristic picks a valid cut point in
// a session's message history, a summarization call replaces the messages
// before the cut with a synthetic summary message, and the caller persists
// the result as a single compaction entry.
//
// Grounded on original_source/packages/ai/src/pi_ai/core/compaction.py (the
// heuristic and cut-point rules) and
// _examples/dm-vev-OpenClaude/internal/agent/agent.go (the completion-call
// shape a summarization request reuses).
package compact

import (
	"context"
	"fmt"
	"strings"

	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/providers"
	"github.com/openclaude/agentcore/internal/providers/simpleopts"
)

// bytesPerToken approximates provider tokenizers closely enough to size a
// compaction trigger without a real tokenizer dependency; spec.md permits
// the heuristic explicitly in place of exact counting.
const bytesPerToken = 4

// DefaultSummaryPrompt is the system instruction attached to the
// summarization call issued against the conversation prefix being dropped.
const DefaultSummaryPrompt = "Summarize the conversation so far in a few dense paragraphs, preserving every decision, file path, and open thread a continuation would need. Do not mention that this is a summary."

// Config tunes when and how much compaction reclaims.
type Config struct {
	// TargetContextWindow is the model's context window in tokens.
	TargetContextWindow int
	// TriggerFraction is the occupied-context fraction (0..1) that triggers
	// compaction; spec.md's reference default is 0.92.
	TriggerFraction float64
	// FreeFraction is the fraction of TargetContextWindow compaction tries
	// to free by choosing the latest cut point that frees at least this
	// much; spec.md's reference default is 0.5.
	FreeFraction float64
	// SummaryPrompt overrides DefaultSummaryPrompt when non-empty.
	SummaryPrompt string
}

// DefaultConfig returns spec.md's reference thresholds for contextWindow.
func DefaultConfig(contextWindow int) Config {
	return Config{
		TargetContextWindow: contextWindow,
		TriggerFraction:     0.92,
		FreeFraction:        0.5,
	}
}

// EstimateTokens approximates the token count of a message list from its
// total serialized content length, in O(total content bytes).
func EstimateTokens(messages []event.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.UserText)
		for _, b := range m.UserBlocks {
			total += len(b.Text) + len(b.Thinking)
		}
		for _, b := range m.Content {
			total += len(b.Text) + len(b.Thinking)
			for k, v := range b.ToolCallArguments {
				total += len(k) + len(fmt.Sprint(v))
			}
		}
		for _, b := range m.ToolBlocks {
			total += len(b.Text)
		}
	}
	if total == 0 {
		return 0
	}
	return total/bytesPerToken + 1
}

// ShouldCompact reports whether messages occupies enough of cfg's context
// window to trigger compaction.
func ShouldCompact(messages []event.Message, cfg Config) bool {
	if cfg.TargetContextWindow <= 0 {
		return false
	}
	estimated := EstimateTokens(messages)
	return float64(estimated) >= cfg.TriggerFraction*float64(cfg.TargetContextWindow)
}

// Plan describes a chosen compaction: everything in messages[:CutIndex] is
// folded into the summary; messages[CutIndex:] survives untouched.
type Plan struct {
	CutIndex       int
	TokensBefore   int
	TokensAfter    int
	EstimatedFreed int
}

// SelectCutPoint walks messages from the latest valid boundary backwards,
// choosing the latest index that is both a valid cut point (spec.md §4.9:
// a self-contained prefix with no dangling tool call, preferring a
// user-before-assistant boundary) and frees at least cfg.FreeFraction of
// the context window. Returns ok=false if no boundary frees enough.
func SelectCutPoint(messages []event.Message, cfg Config) (Plan, bool) {
	total := EstimateTokens(messages)
	target := int(cfg.FreeFraction * float64(cfg.TargetContextWindow))

	// The first pass only takes cuts whose surviving suffix starts with a
	// user message; the second pass accepts any valid cut point.
	bestIdx := -1
	for _, userOnly := range []bool{true, false} {
		for i := len(messages); i >= 0 && bestIdx < 0; i-- {
			if !isValidCutPoint(messages, i) {
				continue
			}
			if userOnly && i > 0 && messages[i].Role != event.RoleUser {
				continue
			}
			freed := total - EstimateTokens(messages[i:])
			if freed >= target {
				bestIdx = i
			}
		}
	}
	if bestIdx < 0 {
		return Plan{}, false
	}

	return Plan{
		CutIndex:       bestIdx,
		TokensBefore:   EstimateTokens(messages[:bestIdx]),
		TokensAfter:    EstimateTokens(messages[bestIdx:]),
		EstimatedFreed: total - EstimateTokens(messages[bestIdx:]),
	}, true
}

// isValidCutPoint reports whether cutting messages at index i leaves a
// self-contained suffix: no orphaned tool-result message at the very start
// (its tool call must be in the summarized prefix, not split across the
// cut). The preference for a user-message boundary, so the surviving
// history reads as whole turns, is applied by SelectCutPoint.
func isValidCutPoint(messages []event.Message, i int) bool {
	if i < 0 || i > len(messages) {
		return false
	}
	if i == len(messages) {
		return false // nothing left to summarize
	}
	if i == 0 {
		return true
	}
	if messages[i].Role == event.RoleToolResult {
		return false // would split a tool call from its result
	}
	// A trailing assistant message with pending tool calls can't be cut
	// right after it without orphaning the calls; require the prefix's
	// last message to not itself be an unresolved tool-call turn unless
	// every one of its calls already has a result before index i — but
	// since cuts happen at message boundaries, simplest and sufficient is
	// to require the boundary not land strictly between a tool call and
	// its result, which the RoleToolResult check above already covers.
	return true
}

// Run executes one compaction: selects a cut point, asks the given adapter
// to summarize the dropped prefix, and returns the synthetic summary
// message plus the surviving suffix. Callers persist the result via
// internal/session's AppendCompaction.
func Run(ctx context.Context, adapter providers.Adapter, model event.Model, messages []event.Message, cfg Config) (summary event.Message, suffix []event.Message, plan Plan, err error) {
	plan, ok := SelectCutPoint(messages, cfg)
	if !ok {
		return event.Message{}, nil, Plan{}, fmt.Errorf("compact: no cut point frees enough context")
	}

	prompt := cfg.SummaryPrompt
	if prompt == "" {
		prompt = DefaultSummaryPrompt
	}

	reqCtx := event.Context{
		SystemPrompt: prompt,
		Messages:     append([]event.Message{}, messages[:plan.CutIndex]...),
	}

	stream, err := adapter.Stream(ctx, model, reqCtx, simpleopts.StreamOptions{MaxTokens: model.MaxTokens})
	if err != nil {
		return event.Message{}, nil, plan, fmt.Errorf("compact: summarization call: %w", err)
	}
	_ = stream.Range(func(event.StreamEvent) bool { return true })
	result, err := stream.Result()
	if err != nil {
		return event.Message{}, nil, plan, fmt.Errorf("compact: summarization failed: %w", err)
	}

	summaryText := strings.TrimSpace(result.TextContent())
	if summaryText == "" {
		summaryText = "(compaction produced no summary text)"
	}

	summary = event.Message{
		Role:    event.RoleAssistant,
		Content: []event.Block{event.Text(summaryText)},
		Model:   model.ID,
	}
	suffix = append([]event.Message{}, messages[plan.CutIndex:]...)
	return summary, suffix, plan, nil
}
