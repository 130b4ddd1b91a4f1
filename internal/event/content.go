// Package event defines the canonical, provider-agnostic message and
// streaming-event types shared by every transport adapter, the agent loop,
// and the session store.
package event

import "fmt"

// BlockKind tags the closed set of content block variants. New kinds require
// a recompile; matching on Kind is meant to be exhaustive everywhere it
// appears.
type BlockKind string

const (
	BlockText     BlockKind = "text"
	BlockThinking BlockKind = "thinking"
	BlockImage    BlockKind = "image"
	BlockToolCall BlockKind = "toolCall"
)

// Signature is an opaque, provider-specific blob attached to a Thinking or
// ToolCall block. It is never inspected or mutated, only forwarded verbatim
// on subsequent turns (spec.md design note on thinking/thought signatures).
type Signature string

// IsEmpty reports whether the signature carries no opaque data.
func (s Signature) IsEmpty() bool { return s == "" }

// Block is a tagged union over the four content block kinds. Exactly one of
// the kind-specific fields is populated, selected by Kind.
type Block struct {
	Kind BlockKind

	// Text fields.
	Text          string
	TextSignature Signature

	// Thinking fields.
	Thinking          string
	ThinkingSignature Signature

	// Image fields.
	ImageMIME string
	ImageData string // base64

	// ToolCall fields.
	ToolCallID        string
	ToolCallName      string
	ToolCallArguments map[string]any
	// ToolThoughtSignature carries Google's per-part thoughtSignature, kept
	// opaque like any other signature.
	ToolThoughtSignature Signature
}

// Text constructs a text content block.
func Text(text string) Block { return Block{Kind: BlockText, Text: text} }

// TextWithSignature constructs a text block carrying an opaque signature.
func TextWithSignature(text string, sig Signature) Block {
	return Block{Kind: BlockText, Text: text, TextSignature: sig}
}

// Thought constructs a thinking content block.
func Thought(thinking string, sig Signature) Block {
	return Block{Kind: BlockThinking, Thinking: thinking, ThinkingSignature: sig}
}

// Image constructs an inline image content block.
func Image(mime, base64Data string) Block {
	return Block{Kind: BlockImage, ImageMIME: mime, ImageData: base64Data}
}

// ToolCallBlock constructs a tool invocation content block.
func ToolCallBlock(id, name string, args map[string]any) Block {
	return Block{Kind: BlockToolCall, ToolCallID: id, ToolCallName: name, ToolCallArguments: args}
}

// IsEmptyText reports whether a text block carries no content — finalised
// assistant messages must never retain these (spec.md invariant).
func (b Block) IsEmptyText() bool {
	return b.Kind == BlockText && b.Text == ""
}

// IsEmptyThinking reports whether a thinking block is empty or
// whitespace-only.
func (b Block) IsEmptyThinking() bool {
	if b.Kind != BlockThinking {
		return false
	}
	for _, r := range b.Thinking {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

func (b Block) String() string {
	switch b.Kind {
	case BlockText:
		return fmt.Sprintf("text(%d chars)", len(b.Text))
	case BlockThinking:
		return fmt.Sprintf("thinking(%d chars)", len(b.Thinking))
	case BlockImage:
		return fmt.Sprintf("image(%s)", b.ImageMIME)
	case BlockToolCall:
		return fmt.Sprintf("toolCall(%s/%s)", b.ToolCallID, b.ToolCallName)
	default:
		return "block(?)"
	}
}
