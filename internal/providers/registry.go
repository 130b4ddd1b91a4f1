// Package providers defines the Adapter interface every wire-protocol
// implementation satisfies and a registry keyed by "{provider}/{id}",
// mirroring the model.Client abstraction in the Anthropic adapter this
// package's shape is grounded on.
package providers

import (
	"context"

	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/eventstream"
	"github.com/openclaude/agentcore/internal/providers/simpleopts"
)

// Stream is the concrete EventStream instantiation every adapter produces:
// a sequence of canonical StreamEvents terminating in a finished assistant
// Message.
type Stream = eventstream.EventStream[event.StreamEvent, event.Message]

// Adapter is implemented once per wire protocol (Anthropic Messages, OpenAI
// Completions, OpenAI Responses, Google GenAI, Bedrock). StreamSimple is the
// ergonomic entry point most callers use; Stream accepts a fully-resolved
// StreamOptions for callers (like the agent loop's retry path) that already
// built one.
type Adapter interface {
	// API returns the wire protocol identifier this adapter implements,
	// e.g. "anthropic-messages".
	API() string

	// Stream issues a streaming call and returns the event stream. The
	// returned stream's terminal result is the finished assistant Message.
	Stream(ctx context.Context, model event.Model, reqCtx event.Context, opts simpleopts.StreamOptions) (*Stream, error)

	// StreamSimple resolves SimpleStreamOptions into StreamOptions via
	// simpleopts.BuildBaseOptions before delegating to Stream.
	StreamSimple(ctx context.Context, model event.Model, reqCtx event.Context, opts *simpleopts.SimpleStreamOptions, apiKey string) (*Stream, error)
}

// Registry resolves an Adapter by "{provider}/{id}" model key, falling back
// to a per-API default so adapters can be registered once per wire
// protocol rather than once per model.
type Registry struct {
	byModelKey map[string]Adapter
	byAPI      map[string]Adapter
}

// NewRegistry builds an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{byModelKey: map[string]Adapter{}, byAPI: map[string]Adapter{}}
}

// RegisterAPI registers the adapter to serve every model whose API field
// matches apiID, unless a more specific model-key registration exists.
func (r *Registry) RegisterAPI(apiID string, adapter Adapter) {
	r.byAPI[apiID] = adapter
}

// RegisterModel registers the adapter for one specific provider/id model
// key, taking priority over any RegisterAPI default for that API.
func (r *Registry) RegisterModel(modelKey string, adapter Adapter) {
	r.byModelKey[modelKey] = adapter
}

// Resolve finds the adapter to use for the given model, preferring an
// exact model-key registration over the API-wide default.
func (r *Registry) Resolve(model event.Model) (Adapter, bool) {
	if a, ok := r.byModelKey[model.Key()]; ok {
		return a, true
	}
	a, ok := r.byAPI[model.API]
	return a, ok
}
