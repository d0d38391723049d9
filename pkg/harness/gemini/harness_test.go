package gemini

import (
	"context"
	"fmt"
	"testing"

	"google.golang.org/genai"

	"coreagent/pkg/harness"
	"coreagent/pkg/message"
)

func TestNew_Defaults(t *testing.T) {
	h := New(Config{})
	if h.Name() != "gemini" {
		t.Errorf("expected 'gemini', got %q", h.Name())
	}
	if h.defaultModel != "gemini-2.0-flash" {
		t.Errorf("expected default model, got %q", h.defaultModel)
	}
}

func TestStreamTurn_NoClient(t *testing.T) {
	h := New(Config{})
	err := h.StreamTurn(context.Background(), &harness.Turn{}, func(harness.Event) error { return nil })
	if err == nil {
		t.Fatal("expected error with no client")
	}
}

// mockStreamClient implements streamClient for testing.
type mockStreamClient struct {
	chunks []*genai.GenerateContentResponse
	models []harness.ModelInfo
	err    error
}

func (m *mockStreamClient) StreamGenerate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig, onChunk func(*genai.GenerateContentResponse) error) error {
	if m.err != nil {
		return m.err
	}
	for _, c := range m.chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockStreamClient) ListModels(ctx context.Context) ([]harness.ModelInfo, error) {
	return m.models, nil
}

func userTurn(text string) *harness.Turn {
	return &harness.Turn{
		Messages: []message.Message{{Role: message.RoleUser, Parts: []message.Part{message.NewText(text)}}},
	}
}

func textResp(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: s}}}}},
	}
}

func finishResp(reason genai.FinishReason, prompt, completion int32) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates:    []*genai.Candidate{{FinishReason: reason}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: prompt, CandidatesTokenCount: completion, TotalTokenCount: prompt + completion},
	}
}

func TestStreamTurn_TextDelta(t *testing.T) {
	h := &Harness{
		client: &mockStreamClient{
			chunks: []*genai.GenerateContentResponse{
				textResp("Hello "),
				textResp("world"),
				finishResp(genai.FinishReasonStop, 10, 5),
			},
		},
		defaultModel: "gemini-2.0-flash",
	}

	var events []harness.Event
	err := h.StreamTurn(context.Background(), userTurn("hi"), func(ev harness.Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[0].Kind != harness.EventText || events[0].Text.Delta != "Hello " {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[2].Kind != harness.EventTurnEnd || events[2].TurnEnd.Reason != harness.ReasonStop {
		t.Errorf("unexpected turn_end: %+v", events[2])
	}
	if events[3].Kind != harness.EventDone {
		t.Errorf("expected done, got %s", events[3].Kind)
	}
}

func TestStreamTurn_ToolCall(t *testing.T) {
	h := &Harness{
		client: &mockStreamClient{
			chunks: []*genai.GenerateContentResponse{
				{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{
					FunctionCall: &genai.FunctionCall{Name: "shell", Args: map[string]any{"command": "ls"}},
				}}}}}},
				finishResp(genai.FinishReasonStop, 0, 0),
			},
		},
		defaultModel: "gemini-2.0-flash",
	}

	var toolCall *harness.ToolCallEvent
	var turnEnd *harness.TurnEndEvent
	err := h.StreamTurn(context.Background(), userTurn("list files"), func(ev harness.Event) error {
		if ev.Kind == harness.EventToolCall {
			toolCall = ev.ToolCall
		}
		if ev.Kind == harness.EventTurnEnd {
			turnEnd = ev.TurnEnd
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if toolCall == nil {
		t.Fatal("expected a tool_call event")
	}
	if toolCall.Name != "shell" {
		t.Errorf("expected 'shell', got %q", toolCall.Name)
	}
	if toolCall.CallID == "" {
		t.Error("expected a synthesized call id")
	}
	if turnEnd == nil || turnEnd.Reason != harness.ReasonToolUse {
		t.Errorf("expected tool_use end reason, got %+v", turnEnd)
	}
}

func TestStreamTurn_StreamError(t *testing.T) {
	h := &Harness{client: &mockStreamClient{err: fmt.Errorf("unavailable")}, defaultModel: "gemini-2.0-flash"}
	err := h.StreamTurn(context.Background(), userTurn("hi"), func(harness.Event) error { return nil })
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestStreamAndCollect(t *testing.T) {
	h := &Harness{
		client: &mockStreamClient{
			chunks: []*genai.GenerateContentResponse{
				textResp("Hello"),
				finishResp(genai.FinishReasonStop, 100, 20),
			},
		},
		defaultModel: "gemini-2.0-flash",
	}

	result, err := h.StreamAndCollect(context.Background(), userTurn("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if result.FinalText != "Hello" {
		t.Errorf("expected 'Hello', got %q", result.FinalText)
	}
	if result.Usage == nil || result.Usage.InputTokens != 100 {
		t.Errorf("unexpected usage: %+v", result.Usage)
	}
}

func TestBuildContents_RoundTripsToolResult(t *testing.T) {
	h := New(Config{})
	turn := &harness.Turn{
		Messages: []message.Message{
			{Role: message.RoleUser, Parts: []message.Part{message.NewText("list files")}},
			{Role: message.RoleAssistant, Parts: []message.Part{message.NewToolUse("call_1", "shell", `{"command":"ls"}`)}},
			{Role: message.RoleUser, Parts: []message.Part{message.NewToolResult("call_1", false, message.TextBlock("a.go"))}},
		},
	}
	contents, _ := h.buildContents(turn)
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	if contents[1].Role != "model" {
		t.Errorf("expected model role for tool_use content, got %q", contents[1].Role)
	}
	fr := contents[2].Parts[0].FunctionResponse
	if fr == nil || fr.Name != "shell" {
		t.Fatalf("expected function response naming 'shell', got %+v", fr)
	}
}

func TestBuildConfig_Tools(t *testing.T) {
	h := New(Config{})
	turn := &harness.Turn{
		Tools: []harness.ToolSpec{{
			Name:        "shell",
			Description: "run a command",
			Parameters: map[string]any{
				"type":     "object",
				"required": []any{"command"},
				"properties": map[string]any{
					"command": map[string]any{"type": "string"},
				},
			},
		}},
	}
	cfg, err := h.buildConfig(turn, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Tools) != 1 || len(cfg.Tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("expected 1 tool declaration, got %+v", cfg.Tools)
	}
	decl := cfg.Tools[0].FunctionDeclarations[0]
	if decl.Name != "shell" {
		t.Errorf("expected 'shell', got %q", decl.Name)
	}
	if decl.Parameters == nil || len(decl.Parameters.Required) != 1 {
		t.Errorf("expected required=[command], got %+v", decl.Parameters)
	}
}

func TestRunToolLoop(t *testing.T) {
	h := &Harness{
		client: &mockStreamClient{
			chunks: []*genai.GenerateContentResponse{
				textResp("All done."),
				finishResp(genai.FinishReasonStop, 1, 1),
			},
		},
		defaultModel: "gemini-2.0-flash",
	}
	handler := &testToolHandler{fn: func(call harness.ToolCallEvent) (*harness.ToolResultEvent, error) {
		return &harness.ToolResultEvent{CallID: call.CallID, Output: "ok"}, nil
	}}
	result, err := h.RunToolLoop(context.Background(), userTurn("hi"), handler, harness.LoopOptions{MaxTurns: 5})
	if err != nil {
		t.Fatal(err)
	}
	if result.FinalText != "All done." {
		t.Errorf("unexpected final text: %q", result.FinalText)
	}
}

type testToolHandler struct {
	fn func(harness.ToolCallEvent) (*harness.ToolResultEvent, error)
}

func (h *testToolHandler) Handle(_ context.Context, call harness.ToolCallEvent) (*harness.ToolResultEvent, error) {
	return h.fn(call)
}

func (h *testToolHandler) Available() []harness.ToolSpec { return nil }
