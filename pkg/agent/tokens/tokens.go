// Package tokens estimates prompt token counts per message so the agent
// loop can decide when cumulative usage crosses the compaction threshold.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"coreagent/pkg/message"
)

// tokensPerMessage approximates the per-message role/delimiter overhead,
// following OpenAI's documented chat token-counting format.
const tokensPerMessage = 3

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// Counter estimates token counts for one model's encoding.
type Counter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// NewCounter returns a Counter for model, falling back to cl100k_base when
// the model has no registered tiktoken encoding.
func NewCounter(model string) (*Counter, error) {
	cacheMu.RLock()
	cached, ok := encodingCache[model]
	cacheMu.RUnlock()
	if ok {
		return &Counter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &Counter{encoding: encoding, model: model}, nil
}

// Count returns the estimated token count of a raw string.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// CountMessage estimates the token cost of one canonical message, including
// tool_use/tool_result payloads.
func (c *Counter) CountMessage(m message.Message) int {
	total := tokensPerMessage + c.Count(string(m.Role))
	for _, p := range m.Parts {
		switch p.Kind {
		case message.PartText, message.PartThinking:
			total += c.Count(p.Text)
		case message.PartToolUse:
			total += c.Count(p.ToolName) + c.Count(p.ToolInputRaw)
		case message.PartToolResult:
			for _, block := range p.Outcome {
				total += c.Count(block.Text)
			}
		}
	}
	return total
}

// CountConversation sums CountMessage across a conversation, plus the
// fixed reply-priming overhead.
func (c *Counter) CountConversation(msgs []message.Message) int {
	total := tokensPerMessage
	for _, m := range msgs {
		total += c.CountMessage(m)
	}
	return total
}

// Model returns the model name this Counter was created for.
func (c *Counter) Model() string { return c.model }
