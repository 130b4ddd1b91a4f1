// Package agentloop drives the IDLE/STREAMING/TOOL_EXEC state machine that
// turns a transport adapter's canonical event stream into a multi-turn
// agent run: dispatching tool calls concurrently, feeding results back to
// the model, and persisting each completed message and tool result.
//
// Grounded on _examples/haasonsaas-nexus/internal/agent/loop.go's
// AgenticLoop state machine, generalised from that package's
// provider-specific CompletionMessage/ToolCall types onto this module's
// canonical event.Message/event.Block and the providers.Registry adapter
// abstraction.
package agentloop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/eventstream"
	"github.com/openclaude/agentcore/internal/providers"
	"github.com/openclaude/agentcore/internal/providers/simpleopts"
)

// Phase is one of the three states in the loop's state machine.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseStreaming Phase = "streaming"
	PhaseToolExec  Phase = "tool_exec"
)

// ErrAlreadyRunning is returned by Prompt when the loop is not IDLE
// (spec.md §4.6 "One active stream per agent instance").
var ErrAlreadyRunning = errors.New("agentloop: a prompt is already running on this loop instance")

// Run is the terminal EventStream instantiation a Loop produces: a sequence
// of LoopEvents terminating in the final assistant Message of the run (the
// one that ended the loop by a tool-free stop, an abort, or an error stop
// reason). A run that fails, including on reaching the iteration cap, ends
// with an error instead of a message.
type Run = eventstream.EventStream[LoopEvent, event.Message]

// Loop drives one agent conversation. A single Loop instance must not have
// more than one Prompt in flight at a time; create one Loop per concurrent
// conversation.
type Loop struct {
	mu    sync.Mutex
	phase Phase

	registry *providers.Registry
	tools    *ToolRegistry
	store    Store
	config   Config
	steering *SteeringQueue
}

// New constructs a Loop. tools and store may be nil (an empty registry and
// NoopStore are substituted respectively).
func New(registry *providers.Registry, tools *ToolRegistry, store Store, config Config) *Loop {
	if tools == nil {
		tools = NewToolRegistry()
	}
	if store == nil {
		store = NoopStore{}
	}
	return &Loop{
		phase:    PhaseIdle,
		registry: registry,
		tools:    tools,
		store:    store,
		config:   sanitizeConfig(config),
		steering: NewSteeringQueue(),
	}
}

// Tools returns the loop's tool registry for external registration.
func (l *Loop) Tools() *ToolRegistry { return l.tools }

// Steering returns the loop's steering queue so callers can enqueue
// mid-run user messages from another goroutine.
func (l *Loop) Steering() *SteeringQueue { return l.steering }

// Phase reports the loop's current state.
func (l *Loop) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

func (l *Loop) setPhase(p Phase) {
	l.mu.Lock()
	l.phase = p
	l.mu.Unlock()
}

// Prompt starts a run: reqCtx supplies the system prompt and prior history,
// msg is the new user turn. Returns ErrAlreadyRunning if the loop is not
// IDLE.
func (l *Loop) Prompt(ctx context.Context, sessionID string, model event.Model, reqCtx event.Context, msg event.Message, opts simpleopts.StreamOptions) (*Run, error) {
	l.mu.Lock()
	if l.phase != PhaseIdle {
		l.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	l.phase = PhaseStreaming
	l.mu.Unlock()

	out := eventstream.New[LoopEvent, event.Message](64)
	go l.run(ctx, out, sessionID, model, reqCtx, msg, opts)
	return out, nil
}

func (l *Loop) run(ctx context.Context, out *Run, sessionID string, model event.Model, reqCtx event.Context, msg event.Message, opts simpleopts.StreamOptions) {
	defer l.setPhase(PhaseIdle)

	emit := func(e LoopEvent) { out.Push(e) }
	emit(LoopEvent{Kind: LoopAgentStart})

	working := reqCtx.Clone()
	working.Tools = l.tools.Declarations()
	working.Messages = append(working.Messages, msg)

	if err := l.store.AppendMessage(ctx, sessionID, msg); err != nil {
		l.fail(out, emit, event.StopError, fmt.Errorf("agentloop: persisting inbound message: %w", err))
		return
	}

	for iteration := 0; iteration < l.config.MaxIterations; iteration++ {
		select {
		case <-ctx.Done():
			l.fail(out, emit, event.StopAborted, ctx.Err())
			return
		default:
		}

		l.setPhase(PhaseStreaming)
		emit(LoopEvent{Kind: LoopMessageStart})

		assistantMsg, err := l.streamTurn(ctx, model, working, opts, emit)
		if err != nil {
			reason := event.StopError
			if ctx.Err() != nil {
				reason = event.StopAborted
			}
			l.fail(out, emit, reason, err)
			return
		}

		emit(LoopEvent{Kind: LoopMessageEnd, Message: assistantMsg})
		if err := l.store.AppendMessage(ctx, sessionID, assistantMsg); err != nil {
			l.fail(out, emit, event.StopError, fmt.Errorf("agentloop: persisting assistant message: %w", err))
			return
		}
		working.Messages = append(working.Messages, assistantMsg)

		if assistantMsg.StopReason == event.StopAborted {
			emit(LoopEvent{Kind: LoopAgentEnd, Reason: event.StopAborted})
			out.End(assistantMsg)
			return
		}
		if assistantMsg.StopReason == event.StopError {
			emit(LoopEvent{Kind: LoopAgentEnd, Reason: event.StopError, Err: errors.New(assistantMsg.ErrorMessage)})
			out.End(assistantMsg)
			return
		}

		calls := assistantMsg.ToolCalls()
		if len(calls) == 0 {
			if followUps := l.steering.Drain(); len(followUps) > 0 {
				working.Messages = append(working.Messages, followUps...)
				continue
			}
			emit(LoopEvent{Kind: LoopAgentEnd, Reason: event.StopStop})
			out.End(assistantMsg)
			return
		}

		l.setPhase(PhaseToolExec)
		results := dispatchTools(ctx, l.tools, l.config, calls, emit)
		for _, r := range results {
			toolMsg := toolResultMessage(r.call, r.output)
			working.Messages = append(working.Messages, toolMsg)
			if err := l.store.AppendToolResult(ctx, sessionID, toolMsg); err != nil {
				l.fail(out, emit, event.StopError, fmt.Errorf("agentloop: persisting tool result: %w", err))
				return
			}
		}

		if steered := l.steering.Drain(); len(steered) > 0 {
			working.Messages = append(working.Messages, steered...)
		}
	}

	l.fail(out, emit, event.StopError, fmt.Errorf("agentloop: reached max iterations (%d)", l.config.MaxIterations))
}

// streamTurn resolves the adapter for model, issues one Stream call, and
// relays every transport event onto emit as it arrives.
func (l *Loop) streamTurn(ctx context.Context, model event.Model, reqCtx event.Context, opts simpleopts.StreamOptions, emit func(LoopEvent)) (event.Message, error) {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = l.config.MaxTokens
	}

	adapter, ok := l.registry.Resolve(model)
	if !ok {
		return event.Message{}, fmt.Errorf("agentloop: no adapter registered for model %s/%s", model.Provider, model.ID)
	}

	stream, err := adapter.Stream(ctx, model, reqCtx, opts)
	if err != nil {
		return event.Message{}, err
	}

	_ = stream.Range(func(ev event.StreamEvent) bool {
		emit(LoopEvent{Kind: LoopTransport, Transport: ev})
		return true
	})

	return stream.Result()
}

// fail emits the terminal agent_end event and resolves the run's EventStream
// with an error.
func (l *Loop) fail(out *Run, emit func(LoopEvent), reason event.StopReason, err error) {
	emit(LoopEvent{Kind: LoopAgentEnd, Reason: reason, Err: err})
	out.Fail(err)
}
