package agentloop

import (
	"sync"

	"github.com/openclaude/agentcore/internal/event"
)

// SteeringQueue holds user messages enqueued while the loop is STREAMING or
// TOOL_EXEC. The loop drains them after each assistant turn (after that
// turn's tool results, if any) and appends them to the working context, so
// the next streaming call sees them as the latest user turns. Safe
// for concurrent use: callers may enqueue from any goroutine while the loop
// runs on its own.
type SteeringQueue struct {
	mu       sync.Mutex
	messages []event.Message
}

// NewSteeringQueue returns an empty queue.
func NewSteeringQueue() *SteeringQueue {
	return &SteeringQueue{}
}

// Enqueue adds a user message to be delivered after the current assistant turn.
func (q *SteeringQueue) Enqueue(msg event.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
}

// EnqueueText is a convenience wrapper around Enqueue for plain text.
func (q *SteeringQueue) EnqueueText(text string) {
	q.Enqueue(event.NewUserText(text, 0))
}

// Drain returns every queued message and empties the queue.
func (q *SteeringQueue) Drain() []event.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) == 0 {
		return nil
	}
	msgs := q.messages
	q.messages = nil
	return msgs
}

// HasPending reports whether any steering message is queued.
func (q *SteeringQueue) HasPending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages) > 0
}
