package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"coreagent/pkg/harness"
	"coreagent/pkg/harness/retry"
	"coreagent/pkg/message"
	"coreagent/pkg/schema"
)

// Config holds configuration for the OpenAI-compatible harness.
type Config struct {
	// Client is the underlying OpenAI-compatible API client.
	Client *ClientWrapper

	// DefaultModel is the model to use when Turn.Model is empty.
	DefaultModel string

	// Aliases maps lowercased short names ("gpt4o") to full model ids.
	Aliases map[string]string

	// Prefixes lists model-id prefixes this harness claims (e.g. "gpt-", "o1").
	Prefixes []string
}

// streamClient abstracts the streaming Chat Completions API for testing.
type streamClient interface {
	StreamChat(ctx context.Context, req openai.ChatCompletionRequest, onChunk func(openai.ChatCompletionStreamResponse) error) error
	ListModels(ctx context.Context) ([]harness.ModelInfo, error)
}

// Harness implements harness.Harness over the Chat Completions streaming API
// (Family C: tool_calls/tool_call_id, no provider-side prompt cache).
type Harness struct {
	client       streamClient
	defaultModel string
	aliases      map[string]string
	prefixes     []string
}

var _ harness.Harness = (*Harness)(nil)

// New creates a new OpenAI-compatible harness.
func New(cfg Config) *Harness {
	model := cfg.DefaultModel
	if model == "" {
		model = "gpt-4o"
	}
	var sc streamClient
	if cfg.Client != nil {
		sc = cfg.Client
	}
	return &Harness{
		client:       sc,
		defaultModel: model,
		aliases:      cfg.Aliases,
		prefixes:     cfg.Prefixes,
	}
}

// Name returns "openai".
func (h *Harness) Name() string { return "openai" }

// StreamTurn executes a single turn over Chat Completions, translating
// streamed deltas into structured harness events.
func (h *Harness) StreamTurn(ctx context.Context, turn *harness.Turn, onEvent func(harness.Event) error) error {
	if h.client == nil {
		return fmt.Errorf("openai: no client configured")
	}

	req, err := h.buildRequest(turn)
	if err != nil {
		return fmt.Errorf("openai: build request: %w", err)
	}

	state := &streamState{calls: map[int]*accumulatingCall{}}
	err = retry.Do(ctx, retry.Transient, func() error {
		*state = streamState{calls: map[int]*accumulatingCall{}}
		return h.client.StreamChat(ctx, req, func(chunk openai.ChatCompletionStreamResponse) error {
			return h.translateChunk(chunk, state, onEvent)
		})
	})
	if err != nil {
		return err
	}

	if state.finishReason != "" {
		reason := endReasonFromFinishReason(state.finishReason)
		if reason != "" {
			if err := onEvent(harness.NewTurnEndEvent(reason, state.usage)); err != nil {
				return err
			}
		}
	}

	return onEvent(harness.NewDoneEvent())
}

// StreamAndCollect executes a turn and returns collected results.
func (h *Harness) StreamAndCollect(ctx context.Context, turn *harness.Turn) (*harness.TurnResult, error) {
	start := time.Now()
	result := &harness.TurnResult{}
	err := h.StreamTurn(ctx, turn, func(ev harness.Event) error {
		result.Events = append(result.Events, ev)
		switch ev.Kind {
		case harness.EventText:
			if ev.Text != nil {
				result.FinalText += ev.Text.Delta
				if ev.Text.Complete != "" {
					result.FinalText = ev.Text.Complete
				}
			}
		case harness.EventUsage:
			result.Usage = ev.Usage
		case harness.EventToolCall:
			if ev.ToolCall != nil {
				result.ToolCalls = append(result.ToolCalls, *ev.ToolCall)
			}
		case harness.EventTurnEnd:
			if ev.TurnEnd != nil {
				result.EndReason = ev.TurnEnd.Reason
				if ev.TurnEnd.Usage != nil {
					result.Usage = ev.TurnEnd.Usage
				}
			}
		}
		return nil
	})
	result.Duration = time.Since(start)
	return result, err
}

// RunToolLoop executes the full agentic loop with the given tool handler.
func (h *Harness) RunToolLoop(ctx context.Context, turn *harness.Turn, handler harness.ToolHandler, opts harness.LoopOptions) (*harness.TurnResult, error) {
	return harness.RunToolLoop(ctx, h.StreamTurn, turn, handler, opts)
}

// ListModels returns available models.
func (h *Harness) ListModels(ctx context.Context) ([]harness.ModelInfo, error) {
	return h.listModelsWithDiscovery(ctx)
}

// buildRequest translates a harness.Turn into an openai.ChatCompletionRequest.
func (h *Harness) buildRequest(turn *harness.Turn) (openai.ChatCompletionRequest, error) {
	model := turn.Model
	if model == "" {
		model = h.defaultModel
	}

	instructions, err := BuildSystemPrompt(turn)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(turn.Messages)+1)
	if instructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: instructions,
		})
	}

	for _, msg := range turn.Messages {
		messages = append(messages, chatMessagesFor(msg)...)
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}

	if len(turn.Tools) > 0 {
		tools := make([]openai.Tool, 0, len(turn.Tools))
		for _, t := range turn.Tools {
			tools = append(tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  schema.NormalizeStrict(t.Parameters),
				},
			})
		}
		req.Tools = tools
		req.ToolChoice = "auto"
	}

	return req, nil
}

// chatMessagesFor converts one canonical message into zero or more Chat
// Completions messages. A user message may carry several tool_result parts,
// which Chat Completions requires as separate "tool" role messages; an
// assistant message may carry several tool_use parts, which collapse into
// one assistant message's ToolCalls slice alongside any text.
func chatMessagesFor(msg message.Message) []openai.ChatCompletionMessage {
	switch msg.Role {
	case message.RoleUser:
		if msg.IsToolResultOnly() {
			out := make([]openai.ChatCompletionMessage, 0, len(msg.Parts))
			for _, p := range msg.Parts {
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    outcomeText(p.Outcome),
					ToolCallID: p.ToolResultID,
				})
			}
			return out
		}
		return []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: msg.Text(false),
		}}

	case message.RoleAssistant:
		var calls []openai.ToolCall
		for _, p := range msg.ToolUses() {
			calls = append(calls, openai.ToolCall{
				ID:   p.ToolUseID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      p.ToolName,
					Arguments: p.ToolInputRaw,
				},
			})
		}
		return []openai.ChatCompletionMessage{{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   msg.Text(false),
			ToolCalls: calls,
		}}

	default:
		return []openai.ChatCompletionMessage{{
			Role:    string(msg.Role),
			Content: msg.Text(false),
		}}
	}
}

func outcomeText(blocks []message.ContentBlock) string {
	var out string
	for _, b := range blocks {
		out += b.Text
	}
	return out
}

// accumulatingCall tracks a tool call's arguments as they stream in across
// multiple deltas, keyed by its index in the response's tool_calls array.
type accumulatingCall struct {
	id        string
	name      string
	arguments string
	started   bool
}

type streamState struct {
	calls        map[int]*accumulatingCall
	finishReason string
	usage        *harness.UsageEvent
}

// translateChunk converts one Chat Completions streaming chunk into
// structured harness events, accumulating tool-call argument fragments by
// index until the call closes out.
func (h *Harness) translateChunk(chunk openai.ChatCompletionStreamResponse, state *streamState, emit func(harness.Event) error) error {
	if chunk.Usage != nil {
		state.usage = &harness.UsageEvent{
			InputTokens:  chunk.Usage.PromptTokens,
			OutputTokens: chunk.Usage.CompletionTokens,
			TotalTokens:  chunk.Usage.TotalTokens,
		}
	}

	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]
	delta := choice.Delta

	if delta.Content != "" {
		if err := emit(harness.NewTextEvent(delta.Content)); err != nil {
			return err
		}
	}

	for _, tc := range delta.ToolCalls {
		idx := 0
		if tc.Index != nil {
			idx = *tc.Index
		}
		call, ok := state.calls[idx]
		if !ok {
			call = &accumulatingCall{}
			state.calls[idx] = call
		}
		if tc.ID != "" {
			call.id = tc.ID
		}
		if tc.Function.Name != "" {
			call.name = tc.Function.Name
		}
		if !call.started && call.id != "" && call.name != "" {
			call.started = true
			if err := emit(harness.NewToolCallStartEvent(call.id, call.name)); err != nil {
				return err
			}
		}
		if tc.Function.Arguments != "" {
			call.arguments += tc.Function.Arguments
			if err := emit(harness.NewToolCallArgsDeltaEvent(call.id, tc.Function.Arguments)); err != nil {
				return err
			}
		}
	}

	if choice.FinishReason != "" {
		state.finishReason = string(choice.FinishReason)
		if choice.FinishReason == openai.FinishReasonToolCalls || choice.FinishReason == openai.FinishReasonFunctionCall {
			for _, call := range state.calls {
				if call.id == "" {
					continue
				}
				if !json.Valid([]byte(call.arguments)) {
					continue
				}
				if err := emit(harness.NewToolCallEvent(call.id, call.name, call.arguments)); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func endReasonFromFinishReason(reason string) harness.TurnEndReason {
	switch openai.FinishReason(reason) {
	case openai.FinishReasonStop:
		return harness.ReasonStop
	case openai.FinishReasonLength:
		return harness.ReasonMaxTokens
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return harness.ReasonToolUse
	case openai.FinishReasonContentFilter:
		return harness.ReasonSafety
	default:
		return ""
	}
}
