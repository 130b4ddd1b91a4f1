// Package simpleopts builds the common StreamOptions every provider adapter
// accepts from a SimpleStreamOptions, normalising reasoning-effort levels
// and thinking-budget/max-tokens tradeoffs independent of the wire format.
//
// Grounded on
// original_source/packages/ai/src/pi_ai/providers/simple_options.py.
package simpleopts

import "github.com/openclaude/agentcore/internal/event"

// ThinkingLevel is the provider-agnostic reasoning-effort dial.
type ThinkingLevel string

const (
	ThinkingMinimal ThinkingLevel = "minimal"
	ThinkingLow     ThinkingLevel = "low"
	ThinkingMedium  ThinkingLevel = "medium"
	ThinkingHigh    ThinkingLevel = "high"
	ThinkingXHigh   ThinkingLevel = "xhigh"
)

// ThinkingBudgets maps a reasoning level to a token budget. Callers may
// override individual levels; unset levels fall back to DefaultBudgets.
type ThinkingBudgets map[ThinkingLevel]int

// DefaultBudgets mirrors the original provider defaults.
var DefaultBudgets = ThinkingBudgets{
	ThinkingMinimal: 1024,
	ThinkingLow:     2048,
	ThinkingMedium:  8192,
	ThinkingHigh:    16384,
}

// MinOutputTokens is the floor left for actual output once a thinking
// budget has eaten into max_tokens.
const MinOutputTokens = 1024

// SimpleStreamOptions is the caller-facing request shape; a thin, optional
// subset of StreamOptions that every adapter accepts and normalises.
type SimpleStreamOptions struct {
	Temperature     *float64
	MaxTokens       int
	APIKey          string
	CacheRetention  string
	SessionID       string
	Headers         map[string]string
	MaxRetryDelayMS int
	Metadata        map[string]string
	ReasoningLevel  ThinkingLevel
}

// StreamOptions is the fully-resolved request handed to a provider adapter.
type StreamOptions struct {
	Temperature     *float64
	MaxTokens       int
	APIKey          string
	CacheRetention  string
	SessionID       string
	Headers         map[string]string
	MaxRetryDelayMS int
	Metadata        map[string]string
	ReasoningLevel  ThinkingLevel
}

// BuildBaseOptions resolves a StreamOptions from a model and optional
// SimpleStreamOptions, clamping MaxTokens to the model's ceiling and
// letting an explicitly-passed apiKey override the options' own.
func BuildBaseOptions(model event.Model, options *SimpleStreamOptions, apiKey string) StreamOptions {
	out := StreamOptions{MaxTokens: min(model.MaxTokens, 32000)}
	if options == nil {
		out.APIKey = apiKey
		return out
	}

	out.Temperature = options.Temperature
	if options.MaxTokens > 0 {
		out.MaxTokens = min(options.MaxTokens, model.MaxTokens)
	}
	out.CacheRetention = options.CacheRetention
	out.SessionID = options.SessionID
	out.Headers = options.Headers
	out.MaxRetryDelayMS = options.MaxRetryDelayMS
	out.Metadata = options.Metadata
	out.ReasoningLevel = options.ReasoningLevel

	out.APIKey = apiKey
	if out.APIKey == "" {
		out.APIKey = options.APIKey
	}
	return out
}

// ClampReasoning lowers "xhigh" to "high" for providers that don't expose
// an extra-high reasoning tier; every other level passes through unchanged.
func ClampReasoning(level ThinkingLevel) ThinkingLevel {
	if level == ThinkingXHigh {
		return ThinkingHigh
	}
	return level
}

// AdjustMaxTokensForThinking resolves the (maxTokens, thinkingBudget) pair
// for a reasoning level: the thinking budget is added on top of
// baseMaxTokens and capped at modelMaxTokens; if the cap leaves no room
// beyond the thinking budget itself, the budget is trimmed back to
// preserve MinOutputTokens of room for actual output.
func AdjustMaxTokensForThinking(baseMaxTokens, modelMaxTokens int, level ThinkingLevel, custom ThinkingBudgets) (maxTokens, thinkingBudget int) {
	resolved := ClampReasoning(level)
	if resolved == "" {
		resolved = ThinkingLow
	}

	budget, ok := custom[resolved]
	if !ok {
		budget, ok = DefaultBudgets[resolved]
	}
	if !ok {
		budget = DefaultBudgets[ThinkingLow]
	}

	maxTokens = min(baseMaxTokens+budget, modelMaxTokens)
	thinkingBudget = budget
	if maxTokens <= thinkingBudget {
		thinkingBudget = max(0, maxTokens-MinOutputTokens)
	}
	return maxTokens, thinkingBudget
}
