package session

import (
	"context"
	"testing"

	"coreagent/pkg/agent"
	"coreagent/pkg/harness"
	"coreagent/pkg/tool"
)

func newTestSession(t *testing.T) (*Session, *agent.Loop) {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	mock := harness.NewMock(harness.MockConfig{
		Responses: [][]harness.Event{
			{harness.NewTextEvent("hi there"), harness.NewTurnEndEvent(harness.ReasonStop, nil)},
		},
	})
	loop := agent.NewLoop(mock, tool.NewRegistry(), nil, agent.Config{Model: "mock-model"})
	doc := New("mock-model", "", "test")
	return NewSession(store, loop, doc), loop
}

func TestSession_ClearResetsLoopAndDocument(t *testing.T) {
	sess, loop := newTestSession(t)
	if _, err := loop.Submit(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	sess.doc.Messages = loop.Conversation()

	if err := sess.Clear(); err != nil {
		t.Fatal(err)
	}
	if len(loop.Conversation()) != 0 {
		t.Errorf("expected loop conversation cleared, got %d messages", len(loop.Conversation()))
	}
	if len(sess.doc.Messages) != 0 {
		t.Errorf("expected document messages cleared, got %d", len(sess.doc.Messages))
	}
}

func TestSession_SwitchModelUpdatesBoth(t *testing.T) {
	sess, loop := newTestSession(t)
	sess.SwitchModel("claude-opus-4-6")
	if loop.Model() != "claude-opus-4-6" {
		t.Errorf("expected loop model updated, got %q", loop.Model())
	}
	if sess.doc.Model != "claude-opus-4-6" {
		t.Errorf("expected document model updated, got %q", sess.doc.Model)
	}
}

func TestSession_SaveThenLoadRoundTrips(t *testing.T) {
	sess, loop := newTestSession(t)
	if _, err := loop.Submit(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	if err := sess.Save(); err != nil {
		t.Fatal(err)
	}
	savedID := sess.Document().ID

	otherLoop := agent.NewLoop(harness.NewMock(harness.MockConfig{}), tool.NewRegistry(), nil, agent.Config{Model: "mock-model"})
	other := NewSession(sess.store, otherLoop, New("mock-model", "", "other"))

	if err := other.Load(savedID); err != nil {
		t.Fatal(err)
	}
	if len(otherLoop.Conversation()) != 2 {
		t.Fatalf("expected loaded conversation to carry over, got %d messages", len(otherLoop.Conversation()))
	}
	if other.Document().ID != savedID {
		t.Errorf("expected loaded document id %q, got %q", savedID, other.Document().ID)
	}
}

func TestSession_RecordUsageAccumulates(t *testing.T) {
	sess, _ := newTestSession(t)
	sess.RecordUsage(&harness.TurnResult{Usage: &harness.UsageEvent{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}})
	sess.RecordUsage(&harness.TurnResult{Usage: &harness.UsageEvent{InputTokens: 3, OutputTokens: 2, TotalTokens: 5}})

	usage := sess.Usage()
	if usage.Prompt != 13 || usage.Completion != 7 || usage.Cumulative != 20 {
		t.Errorf("unexpected accumulated usage: %+v", usage)
	}
}

func TestSession_RecordUsageNilIsNoop(t *testing.T) {
	sess, _ := newTestSession(t)
	sess.RecordUsage(nil)
	sess.RecordUsage(&harness.TurnResult{})
	if sess.Usage() != (TokenUsage{}) {
		t.Errorf("expected zero usage, got %+v", sess.Usage())
	}
}

func TestSession_ToggleCompaction(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	loop := agent.NewLoop(harness.NewMock(harness.MockConfig{}), tool.NewRegistry(), nil, agent.Config{
		Model: "mock-model",
	})
	sess := NewSession(store, loop, New("mock-model", "", "test"))
	if sess.ToggleCompaction() {
		t.Error("expected compaction to start off with zero context window")
	}
}
