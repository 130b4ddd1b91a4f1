package agentloop

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/openclaude/agentcore/internal/event"
)

// UpdateFunc streams incremental progress text for a long-running tool call
// (spec.md §4.6 "on_update callback"); nil is a valid, no-op callback.
type UpdateFunc func(text string)

// ToolOutput is the result of a single tool invocation.
type ToolOutput struct {
	Content string
	IsError bool
}

// Tool is the interface every built-in and plugin tool implements, grounded
// on _examples/haasonsaas-nexus/internal/agent/provider_types.go's Tool
// interface and generalised to carry update callbacks and canonical
// map[string]any arguments instead of raw JSON.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, callID string, args map[string]any, onUpdate UpdateFunc) (ToolOutput, error)
}

// ToolRegistry manages the set of tools available to a running loop.
// Registration and lookup are safe for concurrent use.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewToolRegistry returns an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool by name. Declarations lists tools sorted
// by name, so tool-declaration payloads are deterministic.
func (r *ToolRegistry) Register(tool Tool) {
	if tool == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// Get resolves a tool by name (spec.md §4.6 "tool lookup").
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Declarations returns the registered tools as the canonical event.Tool
// declarations the provider adapters serialise into each request.
func (r *ToolRegistry) Declarations() []event.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	decls := make([]event.Tool, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		decls = append(decls, event.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return decls
}

// missingToolOutput builds the ToolResult for a call against an unregistered
// tool name. Per spec.md §4.6 this must not terminate the loop.
func missingToolOutput(name string) ToolOutput {
	return ToolOutput{Content: fmt.Sprintf("tool not found: %s", name), IsError: true}
}
