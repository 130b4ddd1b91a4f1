package agentloop

import (
	"context"
	"sync"
	"time"

	"github.com/openclaude/agentcore/internal/event"
)

// toolDispatchResult pairs a ToolCall block with its completed ToolOutput
// and timing, used internally to preserve call order when fanning out.
type toolDispatchResult struct {
	call    event.Block
	output  ToolOutput
	started time.Time
	ended   time.Time
}

// dispatchTools executes every ToolCall block in calls concurrently
// (spec.md §4.6 "Tool dispatch"), bounded by cfg.ToolConcurrency and
// cfg.PerToolTimeout per call. Results are returned in the same order the
// calls appeared, never completion order (spec.md §5 "Ordering
// guarantees"). emit is invoked for each lifecycle transition; it must not
// block (callers pass a buffered-channel-backed emitter).
func dispatchTools(ctx context.Context, registry *ToolRegistry, cfg Config, calls []event.Block, emit func(LoopEvent)) []toolDispatchResult {
	results := make([]toolDispatchResult, len(calls))
	sem := make(chan struct{}, cfg.ToolConcurrency)
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, tc event.Block) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = toolDispatchResult{
					call:   tc,
					output: ToolOutput{Content: "context canceled", IsError: true},
				}
				return
			}

			emit(LoopEvent{Kind: LoopToolExecutionStart, ToolCallID: tc.ToolCallID, ToolName: tc.ToolCallName})

			tool, ok := registry.Get(tc.ToolCallName)
			if !ok {
				out := missingToolOutput(tc.ToolCallName)
				results[idx] = toolDispatchResult{call: tc, output: out, started: time.Now(), ended: time.Now()}
				emit(LoopEvent{Kind: LoopToolExecutionEnd, ToolCallID: tc.ToolCallID, ToolName: tc.ToolCallName, ToolResult: toolResultMessage(tc, out)})
				return
			}

			onUpdate := func(text string) {
				emit(LoopEvent{Kind: LoopToolExecutionUpdate, ToolCallID: tc.ToolCallID, ToolName: tc.ToolCallName, ToolUpdate: text})
			}

			toolCtx, cancel := context.WithTimeout(ctx, cfg.PerToolTimeout)
			start := time.Now()
			out, err := tool.Execute(toolCtx, tc.ToolCallID, tc.ToolCallArguments, onUpdate)
			cancel()
			end := time.Now()
			if err != nil {
				out = ToolOutput{Content: err.Error(), IsError: true}
			}

			results[idx] = toolDispatchResult{call: tc, output: out, started: start, ended: end}
			emit(LoopEvent{Kind: LoopToolExecutionEnd, ToolCallID: tc.ToolCallID, ToolName: tc.ToolCallName, ToolResult: toolResultMessage(tc, out)})
		}(i, call)
	}

	wg.Wait()
	return results
}

// toolResultMessage builds the canonical RoleToolResult message appended to
// the context for a completed tool call.
func toolResultMessage(call event.Block, out ToolOutput) event.Message {
	return event.Message{
		Role:       event.RoleToolResult,
		ToolCallID: call.ToolCallID,
		ToolName:   call.ToolCallName,
		ToolBlocks: []event.Block{event.Text(out.Content)},
		IsError:    out.IsError,
	}
}
