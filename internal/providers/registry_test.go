package providers

import (
	"context"
	"testing"

	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/providers/simpleopts"
)

type stubAdapter struct{ api string }

func (s *stubAdapter) API() string { return s.api }
func (s *stubAdapter) Stream(ctx context.Context, m event.Model, c event.Context, o simpleopts.StreamOptions) (*Stream, error) {
	return nil, nil
}
func (s *stubAdapter) StreamSimple(ctx context.Context, m event.Model, c event.Context, o *simpleopts.SimpleStreamOptions, apiKey string) (*Stream, error) {
	return nil, nil
}

func TestRegistry_ResolvesByAPIDefault(t *testing.T) {
	r := NewRegistry()
	a := &stubAdapter{api: "anthropic-messages"}
	r.RegisterAPI("anthropic-messages", a)

	got, ok := r.Resolve(event.Model{Provider: "anthropic", ID: "claude-x", API: "anthropic-messages"})
	if !ok || got != a {
		t.Fatalf("expected API default adapter, got %v ok=%v", got, ok)
	}
}

func TestRegistry_ModelKeyTakesPriorityOverAPI(t *testing.T) {
	r := NewRegistry()
	apiDefault := &stubAdapter{api: "anthropic-messages"}
	specific := &stubAdapter{api: "anthropic-messages"}
	r.RegisterAPI("anthropic-messages", apiDefault)
	r.RegisterModel("anthropic/claude-x", specific)

	got, ok := r.Resolve(event.Model{Provider: "anthropic", ID: "claude-x", API: "anthropic-messages"})
	if !ok || got != specific {
		t.Fatalf("expected model-specific adapter to win")
	}
}

func TestRegistry_UnknownModelNotResolved(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Resolve(event.Model{Provider: "nobody", ID: "nothing", API: "made-up"})
	if ok {
		t.Fatal("expected unresolved model")
	}
}
