package agentloop

import "time"

// Config configures iteration, concurrency, and timeout behavior for a Loop,
// grounded on _examples/haasonsaas-nexus/internal/agent/loop.go's LoopConfig
// and executor.go's ExecutorConfig, collapsed into one struct since this
// module's loop owns its own tool fan-out rather than delegating to a
// separate Executor type.
type Config struct {
	// MaxIterations bounds the number of STREAMING→TOOL_EXEC round trips
	// before the loop gives up and emits an error (spec.md §4.6 "Iteration
	// cap"). Default 32.
	MaxIterations int

	// MaxTokens is the default max output tokens passed to the provider
	// when the caller does not override it.
	MaxTokens int

	// ToolConcurrency caps the number of tool calls executed in parallel
	// during a single TOOL_EXEC phase. Default 8.
	ToolConcurrency int

	// PerToolTimeout bounds a single tool call's execution time. Default
	// 120s; bash calls have no independent timeout per spec.md §5 and rely
	// solely on the caller's cancellation, so tools that need this must
	// ignore it or the caller must pass a sufficiently large value.
	PerToolTimeout time.Duration
}

// DefaultConfig returns the loop's default configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations:   32,
		MaxTokens:       4096,
		ToolConcurrency: 8,
		PerToolTimeout:  120 * time.Second,
	}
}

func sanitizeConfig(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaults.MaxIterations
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.ToolConcurrency <= 0 {
		cfg.ToolConcurrency = defaults.ToolConcurrency
	}
	if cfg.PerToolTimeout <= 0 {
		cfg.PerToolTimeout = defaults.PerToolTimeout
	}
	return cfg
}
