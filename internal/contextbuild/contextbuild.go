// Package contextbuild assembles the per-turn event.Context a provider
// adapter consumes from a session's system prompt, replayed message
// history, and tool declarations (spec.md §1 MODULE 4, §2, §4), repairing
// any tool call left orphaned by a prior truncated turn before the context
// ever reaches a provider.
//
// Grounded on _examples/dm-vev-OpenClaude/internal/agent/agent.go's request
// assembly (system prompt + history + tool specs) and
// internal/transform.ForTarget for the orphan-repair pass this package
// wires in at assembly time rather than leaving it solely a per-provider
// wire-format concern.
package contextbuild

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/transform"
)

// Options customizes assembly beyond the base system prompt and history.
type Options struct {
	// ExtraSystemSections are appended to SystemPrompt, each preceded by a
	// blank line, e.g. project instructions or active skill text.
	ExtraSystemSections []string
	// TargetAPI triggers transform.ForTarget's thinking-block demotion when
	// non-empty (spec.md §9 "transformer shallow-copies history").
	TargetAPI string
}

// Assemble builds the Context a provider call receives: systemPrompt plus
// any Options.ExtraSystemSections, the message history repaired of
// orphaned tool calls, and the declared tools.
func Assemble(systemPrompt string, history []event.Message, tools []event.Tool, opts Options) event.Context {
	prompt := systemPrompt
	for _, section := range opts.ExtraSystemSections {
		if section == "" {
			continue
		}
		prompt += "\n\n" + section
	}

	ctx := event.Context{SystemPrompt: prompt, Messages: history, Tools: tools}
	if opts.TargetAPI != "" {
		ctx = transform.ForTarget(ctx, opts.TargetAPI)
	} else {
		// Always run the repair pass even absent a wire-format target, so
		// a loop resuming from a truncated session log never hands a
		// provider a dangling tool call (spec.md §2 "data model
		// invariant": every ToolCall has a matching ToolResult before the
		// next non-result message).
		ctx = transform.ForTarget(ctx, "")
	}
	return ctx
}

// ValidateToolSchemas compiles every tool's Parameters as a JSON Schema and
// reports the first compilation failure, catching a malformed tool
// declaration before it reaches a provider and produces a confusing wire
// error instead.
func ValidateToolSchemas(tools []event.Tool) error {
	for _, t := range tools {
		if t.Parameters == nil {
			continue
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(t.Name+".json", t.Parameters); err != nil {
			return fmt.Errorf("contextbuild: tool %q has an invalid schema: %w", t.Name, err)
		}
		if _, err := compiler.Compile(t.Name + ".json"); err != nil {
			return fmt.Errorf("contextbuild: tool %q schema does not compile: %w", t.Name, err)
		}
	}
	return nil
}
