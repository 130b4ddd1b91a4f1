package tools

import (
	"context"
	"encoding/json"

	"github.com/openclaude/agentcore/internal/agentloop"
)

// agentLoopTool adapts a Tool plus its fixed ToolContext into the
// agentloop.Tool interface the agent loop dispatches against. The teacher's
// tools take json.RawMessage input and a per-call ToolContext; the loop's
// Tool takes map[string]any arguments and no external context, so the
// adapter marshals arguments back to JSON and closes over the ToolContext
// at registration time.
type agentLoopTool struct {
	tool Tool
	ctx  ToolContext
}

// AsAgentTool wraps a Tool so it can be registered on an agentloop.Loop.
// toolCtx is captured by value; callers that need a fresh TaskDepth/Store
// per run should build a new ToolContext and re-adapt rather than mutate
// the one already registered.
func AsAgentTool(tool Tool, toolCtx ToolContext) agentloop.Tool {
	return agentLoopTool{tool: tool, ctx: toolCtx}
}

func (a agentLoopTool) Name() string        { return a.tool.Name() }
func (a agentLoopTool) Description() string { return a.tool.Description() }
func (a agentLoopTool) Parameters() map[string]any {
	return a.tool.Schema()
}

func (a agentLoopTool) Execute(ctx context.Context, callID string, args map[string]any, onUpdate agentloop.UpdateFunc) (agentloop.ToolOutput, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return agentloop.ToolOutput{IsError: true, Content: "invalid tool arguments: " + err.Error()}, nil
	}
	result, err := a.tool.Run(ctx, raw, a.ctx)
	if err != nil {
		return agentloop.ToolOutput{}, err
	}
	return agentloop.ToolOutput{Content: result.Content, IsError: result.IsError}, nil
}

// RegisterDefaults adapts DefaultTools() onto dst using a shared ToolContext.
func RegisterDefaults(dst *agentloop.ToolRegistry, toolCtx ToolContext) {
	for _, t := range DefaultTools() {
		dst.Register(AsAgentTool(t, toolCtx))
	}
}
