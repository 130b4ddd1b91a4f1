package anthropic

import (
	"context"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/openclaude/agentcore/internal/event"
	"github.com/openclaude/agentcore/internal/eventstream"
	"github.com/openclaude/agentcore/internal/jsonutil"
)

// runStream drains the Anthropic SSE stream, translating each wire event
// into the canonical event.StreamEvent sequence and pushing it onto out,
// tracking per-block state the way the Python reference keeps
// block_index_map/tool_arg_buffers/content_blocks alongside an
// incrementally-updated partial message.
func runStream(ctx context.Context, client MessagesClient, params sdk.MessageNewParams, model event.Model, tools []event.Tool, oauth bool, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	builder := event.NewMessageBuilder(model.API, model.Provider, model.ID)
	out.Push(event.StreamEvent{Kind: event.EventStart, Partial: builder.Snapshot(false)})

	sdkStream := client.NewStreaming(ctx, params)
	defer sdkStream.Close()

	blockIndex := map[int64]int{}
	toolArgBuffers := map[int]string{}

	for sdkStream.Next() {
		ev := sdkStream.Current()
		switch variant := ev.AsAny().(type) {

		case sdk.MessageStartEvent:
			u := variant.Message.Usage
			builder.SetUsage(event.Usage{
				Input:      int(u.InputTokens),
				Output:     int(u.OutputTokens),
				CacheRead:  int(u.CacheReadInputTokens),
				CacheWrite: int(u.CacheCreationInputTokens),
			})

		case sdk.ContentBlockStartEvent:
			handleBlockStart(builder, blockIndex, toolArgBuffers, variant, tools, oauth, out)

		case sdk.ContentBlockDeltaEvent:
			handleBlockDelta(builder, blockIndex, toolArgBuffers, variant, out)

		case sdk.ContentBlockStopEvent:
			handleBlockStop(builder, blockIndex, toolArgBuffers, variant, out)

		case sdk.MessageDeltaEvent:
			if variant.Delta.StopReason != "" {
				builder.SetStopReason(mapStopReason(variant.Delta.StopReason))
			}
			cur := builder.Snapshot(false).Usage
			u := variant.Usage
			builder.SetUsage(event.Usage{
				Input:      nonZeroOr(int(u.InputTokens), cur.Input),
				Output:     nonZeroOr(int(u.OutputTokens), cur.Output),
				CacheRead:  nonZeroOr(int(u.CacheReadInputTokens), cur.CacheRead),
				CacheWrite: nonZeroOr(int(u.CacheCreationInputTokens), cur.CacheWrite),
			})
		}
	}

	if err := sdkStream.Err(); err != nil {
		stop := event.StopError
		if ctx.Err() != nil {
			stop = event.StopAborted
		}
		builder.SetStopReason(stop)
		builder.SetError(err.Error())
		final := builder.Snapshot(true)
		final.Timestamp = time.Now().UnixMilli()
		out.Push(event.StreamEvent{Kind: event.EventError, Reason: stop, Err: err, Message: final})
		out.Fail(err)
		return
	}

	final := builder.Snapshot(true)
	final.Timestamp = time.Now().UnixMilli()
	out.Push(event.StreamEvent{Kind: event.EventDone, Reason: final.StopReason, Message: final})
	out.End(final)
}

func nonZeroOr(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func handleBlockStart(b *event.MessageBuilder, blockIndex map[int64]int, toolArgBuffers map[int]string, ev sdk.ContentBlockStartEvent, tools []event.Tool, oauth bool, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	switch block := ev.ContentBlock.AsAny().(type) {
	case sdk.TextBlock:
		idx := b.StartText()
		blockIndex[ev.Index] = idx
		out.Push(event.StreamEvent{Kind: event.EventTextStart, ContentIndex: idx, Partial: b.Snapshot(false)})

	case sdk.ThinkingBlock:
		idx := b.StartThinking()
		blockIndex[ev.Index] = idx
		out.Push(event.StreamEvent{Kind: event.EventThinkingStart, ContentIndex: idx, Partial: b.Snapshot(false)})

	case sdk.ToolUseBlock:
		name := block.Name
		if oauth {
			name = fromClaudeCodeName(name, tools)
		}
		idx := b.StartToolCall(block.ID, name)
		blockIndex[ev.Index] = idx
		toolArgBuffers[idx] = ""
		out.Push(event.StreamEvent{Kind: event.EventToolStart, ContentIndex: idx, Partial: b.Snapshot(false)})
	}
}

func handleBlockDelta(b *event.MessageBuilder, blockIndex map[int64]int, toolArgBuffers map[int]string, ev sdk.ContentBlockDeltaEvent, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	idx, ok := blockIndex[ev.Index]
	if !ok {
		return
	}
	switch delta := ev.Delta.AsAny().(type) {
	case sdk.TextDelta:
		text := jsonutil.SanitizeSurrogates(delta.Text)
		b.AppendText(idx, text)
		out.Push(event.StreamEvent{Kind: event.EventTextDelta, ContentIndex: idx, Delta: text, Partial: b.Snapshot(false)})

	case sdk.ThinkingDelta:
		b.AppendThinking(idx, delta.Thinking)
		out.Push(event.StreamEvent{Kind: event.EventThinkingDelta, ContentIndex: idx, Delta: delta.Thinking, Partial: b.Snapshot(false)})

	case sdk.InputJSONDelta:
		toolArgBuffers[idx] += delta.PartialJSON
		out.Push(event.StreamEvent{Kind: event.EventToolDelta, ContentIndex: idx, Delta: delta.PartialJSON, Partial: b.Snapshot(false)})

	case sdk.SignatureDelta:
		current := b.Block(idx)
		b.SetSignature(idx, current.ThinkingSignature+event.Signature(delta.Signature))
	}
}

func handleBlockStop(b *event.MessageBuilder, blockIndex map[int64]int, toolArgBuffers map[int]string, ev sdk.ContentBlockStopEvent, out *eventstream.EventStream[event.StreamEvent, event.Message]) {
	idx, ok := blockIndex[ev.Index]
	if !ok {
		return
	}
	blk := b.Block(idx)
	switch blk.Kind {
	case event.BlockText:
		out.Push(event.StreamEvent{Kind: event.EventTextEnd, ContentIndex: idx, Content: blk.Text, Partial: b.Snapshot(false)})
	case event.BlockThinking:
		out.Push(event.StreamEvent{Kind: event.EventThinkingEnd, ContentIndex: idx, Content: blk.Thinking, Partial: b.Snapshot(false)})
	case event.BlockToolCall:
		raw := toolArgBuffers[idx]
		args, _ := jsonutil.ParsePartialJSON(raw)
		b.SetToolArguments(idx, args)
		out.Push(event.StreamEvent{Kind: event.EventToolEnd, ContentIndex: idx, ToolCall: b.Block(idx), Partial: b.Snapshot(false)})
	}
	b.CloseOpen()
}
