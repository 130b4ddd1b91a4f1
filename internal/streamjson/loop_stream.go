package streamjson

import (
	"errors"
	"fmt"

	"github.com/openclaude/agentcore/internal/event"
)

// LoopStreamEmitter converts canonical event.StreamEvent deltas into
// Claude-style stream-json events as an agent-loop turn streams in.
//
// Grounded on streamjson's former OpenAIStreamEmitter, generalized from
// OpenAI SSE deltas to the provider-agnostic event.StreamEvent sequence
// every adapter under internal/providers now emits.
type LoopStreamEmitter struct {
	writer          *Writer
	includePartials bool
	sessionID       string
	state           *loopStreamState
}

// loopStreamState tracks a single streaming assistant turn.
type loopStreamState struct {
	writer          *Writer
	includePartials bool
	sessionID       string
	model           string
	messageID       string
	started         bool
	emitted         bool
	blockStarted    map[int]bool
	finalMessage    event.Message
	done            bool
}

// NewLoopStreamEmitter constructs a stream emitter.
func NewLoopStreamEmitter(writer *Writer, includePartials bool, sessionID string) *LoopStreamEmitter {
	return &LoopStreamEmitter{writer: writer, includePartials: includePartials, sessionID: sessionID}
}

// Begin resets state for a new assistant message stream.
func (emitter *LoopStreamEmitter) Begin(model string) {
	emitter.state = &loopStreamState{
		writer:          emitter.writer,
		includePartials: emitter.includePartials,
		sessionID:       emitter.sessionID,
		model:           model,
		messageID:       NewUUID(),
		blockStarted:    map[int]bool{},
	}
}

// Handle ingests a single canonical stream event and emits stream_event
// JSON lines when partial streaming is enabled.
func (emitter *LoopStreamEmitter) Handle(evt event.StreamEvent) error {
	if emitter.state == nil {
		emitter.Begin(evt.Partial.Model)
	}
	return emitter.state.Handle(evt)
}

// Finalize completes the stream, emitting stop events when needed, and
// returns the finalised assistant message.
func (emitter *LoopStreamEmitter) Finalize() (Message, bool, error) {
	if emitter.state == nil {
		return Message{}, false, errors.New("no stream state available")
	}
	return emitter.state.Finalize()
}

// Streamed reports whether any stream_event was emitted.
func (emitter *LoopStreamEmitter) Streamed() bool {
	if emitter.state == nil {
		return false
	}
	return emitter.state.emitted
}

func (state *loopStreamState) Handle(evt event.StreamEvent) error {
	switch evt.Kind {
	case event.EventStart:
		return state.ensureMessageStarted()

	case event.EventTextStart:
		if err := state.ensureMessageStarted(); err != nil {
			return err
		}
		return state.startBlock(evt.ContentIndex, ContentBlock{Type: "text", Text: ""})

	case event.EventTextDelta:
		if !state.includePartials {
			return nil
		}
		return state.write(StreamEvent{
			Type: "stream_event",
			Event: ContentBlockDeltaEvent{
				Type:  "content_block_delta",
				Index: evt.ContentIndex,
				Delta: StreamDelta{Type: "text_delta", Text: evt.Delta},
			},
		})

	case event.EventThinkingStart:
		if err := state.ensureMessageStarted(); err != nil {
			return err
		}
		return state.startBlock(evt.ContentIndex, ContentBlock{Type: "thinking", Text: ""})

	case event.EventThinkingDelta:
		if !state.includePartials {
			return nil
		}
		return state.write(StreamEvent{
			Type: "stream_event",
			Event: ContentBlockDeltaEvent{
				Type:  "content_block_delta",
				Index: evt.ContentIndex,
				Delta: StreamDelta{Type: "thinking_delta", Text: evt.Delta},
			},
		})

	case event.EventToolStart:
		if err := state.ensureMessageStarted(); err != nil {
			return err
		}
		// Adapters fill ToolCall only on toolcall_end; on start the id and
		// name come from the partial message's block.
		call := evt.ToolCall
		if call.Kind != event.BlockToolCall && evt.ContentIndex >= 0 && evt.ContentIndex < len(evt.Partial.Content) {
			call = evt.Partial.Content[evt.ContentIndex]
		}
		return state.startBlock(evt.ContentIndex, ContentBlock{
			Type: "tool_use", ID: call.ToolCallID, Name: call.ToolCallName, Input: map[string]any{},
		})

	case event.EventToolDelta:
		if !state.includePartials {
			return nil
		}
		return state.write(StreamEvent{
			Type: "stream_event",
			Event: ContentBlockDeltaEvent{
				Type:  "content_block_delta",
				Index: evt.ContentIndex,
				Delta: StreamDelta{Type: "input_json_delta", PartialJSON: evt.Delta},
			},
		})

	case event.EventTextEnd, event.EventThinkingEnd, event.EventToolEnd:
		if !state.includePartials {
			return nil
		}
		return state.write(StreamEvent{
			Type:  "stream_event",
			Event: ContentBlockStopEvent{Type: "content_block_stop", Index: evt.ContentIndex},
		})

	case event.EventDone:
		state.finalMessage = evt.Message
		state.done = true
		return nil

	case event.EventError:
		state.finalMessage = evt.Message
		state.done = true
		return nil
	}
	return nil
}

func (state *loopStreamState) ensureMessageStarted() error {
	if state.started {
		return nil
	}
	state.started = true
	if !state.includePartials {
		return nil
	}
	return state.write(StreamEvent{
		Type: "stream_event",
		Event: MessageStartEvent{
			Type: "message_start",
			Message: StreamMessage{
				ID:      state.messageID,
				Type:    "message",
				Role:    "assistant",
				Model:   state.model,
				Content: []any{},
			},
		},
	})
}

func (state *loopStreamState) startBlock(index int, block ContentBlock) error {
	if state.blockStarted[index] || !state.includePartials {
		state.blockStarted[index] = true
		return nil
	}
	state.blockStarted[index] = true
	return state.write(StreamEvent{
		Type:  "stream_event",
		Event: ContentBlockStartEvent{Type: "content_block_start", Index: index, ContentBlock: block},
	})
}

// Finalize emits the closing message_delta/message_stop events (when
// partials are enabled) and builds the stream-json assistant message from
// the accumulated done/error event.
func (state *loopStreamState) Finalize() (Message, bool, error) {
	if state.includePartials && state.started {
		if err := state.write(StreamEvent{
			Type: "stream_event",
			Event: MessageDeltaEvent{
				Type:  "message_delta",
				Delta: MessageDelta{StopReason: mapStopReason(state.finalMessage.StopReason)},
			},
		}); err != nil {
			return Message{}, false, err
		}
		if err := state.write(StreamEvent{Type: "stream_event", Event: MessageStopEvent{Type: "message_stop"}}); err != nil {
			return Message{}, false, err
		}
	}

	if !state.done || len(state.finalMessage.Content) == 0 {
		return Message{}, false, nil
	}
	msg := BuildAssistantMessage(state.finalMessage)
	msg.ID = state.messageID
	msg.StopReason = mapStopReason(state.finalMessage.StopReason)
	return msg, true, nil
}

// mapStopReason converts a canonical stop reason into Claude Code's
// stop_reason vocabulary.
func mapStopReason(reason event.StopReason) string {
	switch reason {
	case event.StopToolUse:
		return "tool_use"
	case event.StopLength:
		return "max_tokens"
	case event.StopRefusal:
		return "refusal"
	case event.StopPauseTurn:
		return "pause_turn"
	case "":
		return "end_turn"
	default:
		return "end_turn"
	}
}

// write emits a stream-json event and tracks output.
func (state *loopStreamState) write(evt StreamEvent) error {
	if state.writer == nil {
		return fmt.Errorf("stream-json writer is required")
	}
	if evt.SessionID == "" {
		evt.SessionID = state.sessionID
	}
	if evt.UUID == "" {
		evt.UUID = NewUUID()
	}
	state.emitted = true
	return state.writer.Write(evt)
}
