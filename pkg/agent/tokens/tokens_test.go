package tokens

import (
	"testing"

	"coreagent/pkg/message"
)

func TestNewCounter_FallsBackToCl100kBase(t *testing.T) {
	c, err := NewCounter("some-unknown-model-xyz")
	if err != nil {
		t.Fatal(err)
	}
	if c.Count("hello world") <= 0 {
		t.Error("expected a positive token count")
	}
}

func TestNewCounter_CachesEncoding(t *testing.T) {
	c1, err := NewCounter("gpt-4")
	if err != nil {
		t.Fatal(err)
	}
	c2, err := NewCounter("gpt-4")
	if err != nil {
		t.Fatal(err)
	}
	if c1.Count("same text") != c2.Count("same text") {
		t.Error("expected identical counts for the same cached encoding")
	}
}

func TestCount_EmptyString(t *testing.T) {
	c, _ := NewCounter("gpt-4")
	if c.Count("") != 0 {
		t.Error("expected zero tokens for empty string")
	}
}

func TestCountMessage_TextPart(t *testing.T) {
	c, _ := NewCounter("gpt-4")
	m := message.Message{Role: message.RoleUser, Parts: []message.Part{message.NewText("hello there")}}
	if c.CountMessage(m) <= tokensPerMessage {
		t.Error("expected text content to add to the per-message overhead")
	}
}

func TestCountMessage_ToolResultPart(t *testing.T) {
	c, _ := NewCounter("gpt-4")
	m := message.Message{
		Role:  message.RoleUser,
		Parts: []message.Part{message.NewToolResult("call_1", false, message.TextBlock("a long tool output here"))},
	}
	if c.CountMessage(m) <= tokensPerMessage {
		t.Error("expected tool result content to add to the count")
	}
}

func TestCountConversation_SumsAcrossMessages(t *testing.T) {
	c, _ := NewCounter("gpt-4")
	msgs := []message.Message{
		{Role: message.RoleUser, Parts: []message.Part{message.NewText("one")}},
		{Role: message.RoleAssistant, Parts: []message.Part{message.NewText("two")}},
	}
	single := c.CountMessage(msgs[0]) + c.CountMessage(msgs[1])
	total := c.CountConversation(msgs)
	if total < single {
		t.Errorf("expected conversation total (%d) to be at least the sum of messages (%d)", total, single)
	}
}

func TestModel_ReturnsConfiguredName(t *testing.T) {
	c, _ := NewCounter("gpt-4")
	if c.Model() != "gpt-4" {
		t.Errorf("unexpected model: %q", c.Model())
	}
}
