// Package overflow detects context-window overflow from a provider's error
// shape or from usage accounting, independent of which provider produced it.
//
// Grounded verbatim on
// original_source/packages/ai/src/pi_ai/utils/overflow.py.
package overflow

import (
	"regexp"

	"github.com/openclaude/agentcore/internal/event"
)

// patterns is data, not code: each regex names the provider whose error
// copy it matches. Order doesn't matter; the first match wins.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)prompt is too long`),                     // Anthropic
	regexp.MustCompile(`(?i)input is too long for requested model`),  // Amazon Bedrock
	regexp.MustCompile(`(?i)exceeds the context window`),             // OpenAI (Completions & Responses)
	regexp.MustCompile(`(?i)input token count.*exceeds the maximum`), // Google (Gemini)
	regexp.MustCompile(`(?i)maximum prompt length is \d+`),           // xAI (Grok)
	regexp.MustCompile(`(?i)reduce the length of the messages`),      // Groq
	regexp.MustCompile(`(?i)maximum context length is \d+ tokens`),   // OpenRouter
	regexp.MustCompile(`(?i)exceeds the limit of \d+`),               // GitHub Copilot
	regexp.MustCompile(`(?i)exceeds the available context size`),     // llama.cpp server
	regexp.MustCompile(`(?i)greater than the context length`),        // LM Studio
	regexp.MustCompile(`(?i)context window exceeds limit`),           // MiniMax
	regexp.MustCompile(`(?i)exceeded model token limit`),             // Kimi For Coding
	regexp.MustCompile(`(?i)context[_ ]length[_ ]exceeded`),          // generic fallback
	regexp.MustCompile(`(?i)too many tokens`),                        // generic fallback
	regexp.MustCompile(`(?i)token limit exceeded`),                   // generic fallback
}

// statusCodeRe matches Cerebras/Mistral's bare 400/413 with no body. 429 is
// deliberately not in this set — rate limiting is not context overflow.
var statusCodeRe = regexp.MustCompile(`(?i)^4(00|13)\s*(status code)?\s*\(no body\)`)

// Patterns returns the overflow regex list, for tests that want to exercise
// every provider shape directly.
func Patterns() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	copy(out, patterns)
	return out
}

// IsContextOverflow reports whether an assistant message represents a
// context-window overflow, either from its error text (case 1) or, when
// contextWindow is known, from a successful turn whose reported usage
// already exceeds the window (case 2, the "silent overflow" shape some
// providers return instead of erroring).
func IsContextOverflow(msg event.Message, contextWindow int) bool {
	if msg.StopReason == event.StopError && msg.ErrorMessage != "" {
		for _, p := range patterns {
			if p.MatchString(msg.ErrorMessage) {
				return true
			}
		}
		if statusCodeRe.MatchString(msg.ErrorMessage) {
			return true
		}
	}

	if contextWindow > 0 && msg.StopReason == event.StopStop {
		inputTokens := msg.Usage.Input + msg.Usage.CacheRead
		if inputTokens > contextWindow {
			return true
		}
	}

	return false
}
