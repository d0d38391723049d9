package gemini

import (
	"testing"

	"google.golang.org/genai"

	"coreagent/pkg/harness"
)

func newState() *streamState {
	return &streamState{seenCallIDs: map[string]bool{}}
}

func TestTranslateChunk_TextDelta(t *testing.T) {
	h := &Harness{}
	state := newState()
	var events []harness.Event
	err := h.translateChunk(textResp("hello"), state, func(ev harness.Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Kind != harness.EventText {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestTranslateChunk_Thinking(t *testing.T) {
	h := &Harness{}
	state := newState()
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
			{Text: "pondering...", Thought: true},
		}}}},
	}
	var events []harness.Event
	err := h.translateChunk(resp, state, func(ev harness.Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Kind != harness.EventThinking {
		t.Fatalf("expected a thinking event, got %+v", events)
	}
	if !state.wasInThinkingBlock {
		t.Error("expected wasInThinkingBlock to be set")
	}
}

func TestTranslateChunk_FunctionCall_DedupByID(t *testing.T) {
	h := &Harness{}
	state := newState()
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
			{FunctionCall: &genai.FunctionCall{ID: "call_1", Name: "shell", Args: map[string]any{"cmd": "ls"}}},
		}}}},
	}
	var events []harness.Event
	emit := func(ev harness.Event) error {
		events = append(events, ev)
		return nil
	}
	if err := h.translateChunk(resp, state, emit); err != nil {
		t.Fatal(err)
	}
	if err := h.translateChunk(resp, state, emit); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected dedup to suppress repeat, got %d events", len(events))
	}
	if events[0].ToolCall.CallID != "call_1" {
		t.Errorf("expected call_1, got %q", events[0].ToolCall.CallID)
	}
}

func TestTranslateChunk_FunctionCall_SynthesizesID(t *testing.T) {
	h := &Harness{}
	state := newState()
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
			{FunctionCall: &genai.FunctionCall{Name: "shell", Args: map[string]any{}}},
		}}}},
	}
	var toolCall *harness.ToolCallEvent
	err := h.translateChunk(resp, state, func(ev harness.Event) error {
		if ev.Kind == harness.EventToolCall {
			toolCall = ev.ToolCall
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if toolCall == nil || toolCall.CallID == "" {
		t.Fatal("expected a synthesized call id")
	}
}

func TestTranslateChunk_Usage(t *testing.T) {
	h := &Harness{}
	state := newState()
	resp := finishResp(genai.FinishReasonStop, 200, 80)
	if err := h.translateChunk(resp, state, func(harness.Event) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if state.usage == nil || state.usage.InputTokens != 200 || state.usage.OutputTokens != 80 {
		t.Fatalf("unexpected usage: %+v", state.usage)
	}
	if state.finishReason != string(genai.FinishReasonStop) {
		t.Errorf("unexpected finish reason: %q", state.finishReason)
	}
}

func TestTranslateChunk_NoCandidates(t *testing.T) {
	h := &Harness{}
	state := newState()
	err := h.translateChunk(&genai.GenerateContentResponse{}, state, func(harness.Event) error {
		t.Fatal("no event expected")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestEndReasonFromFinishReason(t *testing.T) {
	cases := []struct {
		reason       genai.FinishReason
		hadToolCalls bool
		want         harness.TurnEndReason
	}{
		{genai.FinishReasonStop, false, harness.ReasonStop},
		{genai.FinishReasonStop, true, harness.ReasonToolUse},
		{genai.FinishReasonMaxTokens, false, harness.ReasonMaxTokens},
		{genai.FinishReasonSafety, false, harness.ReasonSafety},
		{genai.FinishReasonRecitation, false, harness.ReasonSafety},
		{genai.FinishReason("other"), false, ""},
	}
	for _, c := range cases {
		got := endReasonFromFinishReason(string(c.reason), c.hadToolCalls)
		if got != c.want {
			t.Errorf("endReasonFromFinishReason(%q, %v) = %q, want %q", c.reason, c.hadToolCalls, got, c.want)
		}
	}
}
