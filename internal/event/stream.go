package event

// StreamEventKind tags the canonical streaming event sequence from spec.md
// §4.4:
//
//	start
//	(text_start (text_delta)* text_end
//	 | thinking_start (thinking_delta)* thinking_end
//	 | toolcall_start (toolcall_delta)* toolcall_end)*
//	(done | error)
type StreamEventKind string

const (
	EventStart         StreamEventKind = "start"
	EventTextStart     StreamEventKind = "text_start"
	EventTextDelta     StreamEventKind = "text_delta"
	EventTextEnd       StreamEventKind = "text_end"
	EventThinkingStart StreamEventKind = "thinking_start"
	EventThinkingDelta StreamEventKind = "thinking_delta"
	EventThinkingEnd   StreamEventKind = "thinking_end"
	EventToolStart     StreamEventKind = "toolcall_start"
	EventToolDelta     StreamEventKind = "toolcall_delta"
	EventToolEnd       StreamEventKind = "toolcall_end"
	EventDone          StreamEventKind = "done"
	EventError         StreamEventKind = "error"
)

// StreamEvent is a single canonical event emitted by a provider adapter.
// Fields are populated according to Kind; Partial always reflects the
// growing assistant message at the moment the event was produced.
type StreamEvent struct {
	Kind         StreamEventKind
	ContentIndex int
	Delta        string
	Content      string   // populated on *_end events
	ToolCall     Block    // populated on toolcall_end
	Partial      Message  // growing assistant message snapshot
	Message      Message  // populated on done/error: the finalised message
	Reason       StopReason
	Err          error
}

// MessageBuilder owns an append-only block list plus per-block accumulators
// and mutates a single growing assistant message across streaming deltas,
// per spec.md §9 ("prefer an explicit builder... rather than whole-message
// clones per delta").
type MessageBuilder struct {
	api      string
	provider string
	model    string
	blocks   []Block
	open     int // index of the block currently accumulating, -1 if none
	usage    Usage
	stop     StopReason
	errMsg   string
}

// NewMessageBuilder starts a new builder for an assistant message.
func NewMessageBuilder(api, provider, model string) *MessageBuilder {
	return &MessageBuilder{api: api, provider: provider, model: model, open: -1}
}

// StartText opens a new text block and returns its index.
func (b *MessageBuilder) StartText() int {
	b.blocks = append(b.blocks, Block{Kind: BlockText})
	b.open = len(b.blocks) - 1
	return b.open
}

// StartThinking opens a new thinking block and returns its index.
func (b *MessageBuilder) StartThinking() int {
	b.blocks = append(b.blocks, Block{Kind: BlockThinking})
	b.open = len(b.blocks) - 1
	return b.open
}

// StartToolCall opens a new tool-call block and returns its index.
func (b *MessageBuilder) StartToolCall(id, name string) int {
	b.blocks = append(b.blocks, Block{Kind: BlockToolCall, ToolCallID: id, ToolCallName: name})
	b.open = len(b.blocks) - 1
	return b.open
}

// AppendText appends a text delta to the block at index.
func (b *MessageBuilder) AppendText(index int, delta string) {
	b.blocks[index].Text += delta
}

// AppendThinking appends a thinking delta to the block at index.
func (b *MessageBuilder) AppendThinking(index int, delta string) {
	b.blocks[index].Thinking += delta
}

// SetToolArguments replaces the parsed arguments of the tool-call block at
// index. Callers accumulate the raw partial-JSON argument text themselves
// and call this once the text parses.
func (b *MessageBuilder) SetToolArguments(index int, args map[string]any) {
	b.blocks[index].ToolCallArguments = args
}

// SetSignature attaches an opaque signature to the block at index.
func (b *MessageBuilder) SetSignature(index int, sig Signature) {
	switch b.blocks[index].Kind {
	case BlockText:
		b.blocks[index].TextSignature = sig
	case BlockThinking:
		b.blocks[index].ThinkingSignature = sig
	case BlockToolCall:
		b.blocks[index].ToolThoughtSignature = sig
	}
}

// Block returns a copy of the block at index.
func (b *MessageBuilder) Block(index int) Block { return b.blocks[index] }

// CloseOpen marks no block as currently accumulating.
func (b *MessageBuilder) CloseOpen() { b.open = -1 }

// SetUsage records token usage for the in-progress message.
func (b *MessageBuilder) SetUsage(u Usage) { b.usage = u }

// SetStopReason records the canonical stop reason.
func (b *MessageBuilder) SetStopReason(r StopReason) { b.stop = r }

// SetError records an error message (stop reason should be StopError).
func (b *MessageBuilder) SetError(msg string) { b.errMsg = msg }

// Snapshot returns an immutable copy of the message as currently built,
// dropping empty text/whitespace-only thinking blocks per the finalised
// content-block invariant. Pass finalize=false while streaming (a delta
// event's Partial may still contain an in-progress empty block) and
// finalize=true only once the message is done.
func (b *MessageBuilder) Snapshot(finalize bool) Message {
	blocks := make([]Block, 0, len(b.blocks))
	for _, blk := range b.blocks {
		if finalize && (blk.IsEmptyText() || blk.IsEmptyThinking()) {
			continue
		}
		blocks = append(blocks, blk)
	}
	return Message{
		Role:         RoleAssistant,
		Content:      blocks,
		API:          b.api,
		Provider:     b.provider,
		Model:        b.model,
		Usage:        b.usage,
		StopReason:   b.stop,
		ErrorMessage: b.errMsg,
	}
}
