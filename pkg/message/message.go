// Package message defines the canonical, provider-independent conversation
// model shared by every harness adapter, the agent loop, and the session
// store. A Message carries an ordered sequence of typed Parts; Part is a
// closed tagged union mirroring the shape harness.Event already uses for
// streamed provider events.
package message

import "fmt"

// Role identifies who produced a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartKind identifies which field of a Part is populated.
type PartKind int

const (
	// PartText is plain content.
	PartText PartKind = iota
	// PartToolUse is an assistant request to invoke a tool.
	PartToolUse
	// PartToolResult answers a prior PartToolUse by id.
	PartToolResult
	// PartThinking is retained internal reasoning, never shown to tools.
	PartThinking
)

func (k PartKind) String() string {
	switch k {
	case PartText:
		return "text"
	case PartToolUse:
		return "tool_use"
	case PartToolResult:
		return "tool_result"
	case PartThinking:
		return "thinking"
	default:
		return "unknown"
	}
}

// ContentBlock is one block of a ToolResult outcome: either text or an
// inline image.
type ContentBlock struct {
	Text string `json:"text,omitempty"`
	MIME string `json:"mime,omitempty"`
	// Bytes holds inline binary content (e.g. image bytes) when MIME is set.
	Bytes []byte `json:"bytes,omitempty"`
}

// TextBlock returns a text-only content block.
func TextBlock(s string) ContentBlock { return ContentBlock{Text: s} }

// Part is a tagged union: exactly one of the typed fields is meaningful,
// selected by Kind.
type Part struct {
	Kind PartKind `json:"kind"`

	// Text is set when Kind == PartText or PartThinking.
	Text string `json:"text,omitempty"`

	// ToolUse fields, set when Kind == PartToolUse.
	ToolUseID    string `json:"tool_use_id,omitempty"`
	ToolName     string `json:"tool_name,omitempty"`
	ToolInputRaw string `json:"tool_input_json,omitempty"`

	// ToolResult fields, set when Kind == PartToolResult.
	ToolResultID string         `json:"tool_result_id,omitempty"`
	Outcome      []ContentBlock `json:"outcome,omitempty"`
	IsError      bool           `json:"is_error,omitempty"`
}

// NewText returns a text part.
func NewText(s string) Part { return Part{Kind: PartText, Text: s} }

// NewThinking returns a thinking part.
func NewThinking(s string) Part { return Part{Kind: PartThinking, Text: s} }

// NewToolUse returns a tool-use part.
func NewToolUse(id, name, inputJSON string) Part {
	return Part{Kind: PartToolUse, ToolUseID: id, ToolName: name, ToolInputRaw: inputJSON}
}

// NewToolResult returns a tool-result part answering the ToolUse with the
// given id.
func NewToolResult(id string, isError bool, outcome ...ContentBlock) Part {
	return Part{Kind: PartToolResult, ToolResultID: id, IsError: isError, Outcome: outcome}
}

// Message is one turn in a canonical conversation.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Text concatenates all text (and thinking, if includeThinking) parts.
func (m Message) Text(includeThinking bool) string {
	var out string
	for _, p := range m.Parts {
		if p.Kind == PartText || (includeThinking && p.Kind == PartThinking) {
			out += p.Text
		}
	}
	return out
}

// ToolUses returns all ToolUse parts in order.
func (m Message) ToolUses() []Part {
	var out []Part
	for _, p := range m.Parts {
		if p.Kind == PartToolUse {
			out = append(out, p)
		}
	}
	return out
}

// IsToolResultOnly reports whether every part of m is a ToolResult — the
// shape of a synthetic user turn answering a prior assistant tool_use batch.
func (m Message) IsToolResultOnly() bool {
	if len(m.Parts) == 0 {
		return false
	}
	for _, p := range m.Parts {
		if p.Kind != PartToolResult {
			return false
		}
	}
	return true
}

// ValidateConversation checks the §3 invariants over a full message list:
//   - every ToolResult.id matches an earlier ToolUse.id in the same
//     conversation, and no two ToolResults share an id
//   - role alternation: at most one leading system message, then the
//     remainder alternates user↔assistant
func ValidateConversation(msgs []Message) error {
	seenToolUse := map[string]bool{}
	seenToolResult := map[string]bool{}

	var prevRole Role
	started := false
	for i, m := range msgs {
		if m.Role == RoleSystem {
			if i != 0 {
				return fmt.Errorf("message %d: system message must be first, not at index %d", i, i)
			}
			continue
		}
		if started && m.Role == prevRole {
			return fmt.Errorf("message %d: role %q repeats previous role %q, conversation must alternate user/assistant", i, m.Role, prevRole)
		}
		prevRole = m.Role
		started = true

		for _, p := range m.Parts {
			switch p.Kind {
			case PartToolUse:
				if seenToolUse[p.ToolUseID] {
					return fmt.Errorf("message %d: duplicate tool_use id %q", i, p.ToolUseID)
				}
				seenToolUse[p.ToolUseID] = true
			case PartToolResult:
				if seenToolResult[p.ToolResultID] {
					return fmt.Errorf("message %d: duplicate tool_result id %q", i, p.ToolResultID)
				}
				if !seenToolUse[p.ToolResultID] {
					return fmt.Errorf("message %d: tool_result id %q has no prior tool_use", i, p.ToolResultID)
				}
				seenToolResult[p.ToolResultID] = true
			}
		}
	}
	return nil
}

// PendingToolUseIDs returns the ids of tool_use parts in msgs that have no
// matching tool_result yet — the conversation is "mid-turn" with respect to
// those ids.
func PendingToolUseIDs(msgs []Message) []string {
	order := []string{}
	resolved := map[string]bool{}
	for _, m := range msgs {
		for _, p := range m.Parts {
			switch p.Kind {
			case PartToolUse:
				order = append(order, p.ToolUseID)
			case PartToolResult:
				resolved[p.ToolResultID] = true
			}
		}
	}
	var pending []string
	for _, id := range order {
		if !resolved[id] {
			pending = append(pending, id)
		}
	}
	return pending
}
