package agentloop

import (
	"context"

	"github.com/openclaude/agentcore/internal/event"
)

// Store is the persistence hook the loop calls on every message_end and
// tool_execution_end (spec.md §4.6 "Persistence hook"). internal/session's
// Store implements this against the append-only session log.
type Store interface {
	AppendMessage(ctx context.Context, sessionID string, msg event.Message) error
	AppendToolResult(ctx context.Context, sessionID string, msg event.Message) error
}

// NoopStore discards every append; useful for tests and for callers that
// manage persistence themselves outside the loop.
type NoopStore struct{}

func (NoopStore) AppendMessage(ctx context.Context, sessionID string, msg event.Message) error {
	return nil
}

func (NoopStore) AppendToolResult(ctx context.Context, sessionID string, msg event.Message) error {
	return nil
}
