package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"coreagent/pkg/harness"
	"coreagent/pkg/harness/retry"
	"coreagent/pkg/message"
)

// Config holds configuration for the Claude harness.
type Config struct {
	// Client is the underlying Anthropic client wrapper.
	Client *ClientWrapper

	// DefaultModel is the model used when Turn.Model is empty.
	DefaultModel string

	// DefaultMaxTokens is the max_tokens for API calls.
	DefaultMaxTokens int

	// ThinkingBudget is the budget_tokens for extended thinking.
	// Set to 0 to disable extended thinking.
	ThinkingBudget int

	// ExtraAliases augments the built-in alias table (e.g. org-specific
	// shorthands configured in the alias rules file).
	ExtraAliases map[string]string
}

// messageStreamer abstracts the streaming API for testing.
type messageStreamer interface {
	StreamMessages(ctx context.Context, params anthropic.MessageNewParams, onEvent func(anthropic.MessageStreamEventUnion) error) error
	ListModels(ctx context.Context) ([]harness.ModelInfo, error)
}

// Harness implements harness.Harness for the Anthropic Messages API — the
// Family A (native tool-use block, cache_control hint) provider adapter.
type Harness struct {
	client       *ClientWrapper
	defaultModel string
	maxTokens    int
	thinkBudget  int
	extraAliases map[string]string
	testClient   messageStreamer // for testing only; nil in production
}

var _ harness.Harness = (*Harness)(nil)

// New creates a new Claude harness.
func New(cfg Config) *Harness {
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTokens := cfg.DefaultMaxTokens
	if maxTokens <= 0 {
		maxTokens = 16384
	}
	return &Harness{
		client:       cfg.Client,
		defaultModel: model,
		maxTokens:    maxTokens,
		thinkBudget:  cfg.ThinkingBudget,
		extraAliases: cfg.ExtraAliases,
	}
}

// Name returns "claude".
func (h *Harness) Name() string { return "claude" }

// StreamTurn executes a single turn using the Anthropic Messages API,
// retrying transient/overload failures per pkg/harness/retry.
func (h *Harness) StreamTurn(ctx context.Context, turn *harness.Turn, onEvent func(harness.Event) error) error {
	params, err := h.buildRequest(turn)
	if err != nil {
		return fmt.Errorf("claude: build request: %w", err)
	}

	streamer := messageStreamer(h.client)
	if h.testClient != nil {
		streamer = h.testClient
	}

	state := &streamState{}
	err = retry.Do(ctx, retry.Transient, func() error {
		*state = streamState{}
		return streamer.StreamMessages(ctx, params, func(ev anthropic.MessageStreamEventUnion) error {
			return h.translateEvent(ev, state, onEvent)
		})
	})
	if err != nil {
		return err
	}

	if reason := endReasonFromStopReason(state.stopReason); reason != "" {
		if err := onEvent(harness.NewTurnEndEvent(reason, nil)); err != nil {
			return err
		}
	}

	return onEvent(harness.NewDoneEvent())
}

// StreamAndCollect executes a turn and returns the collected result.
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
		case harness.EventTurnEnd:
			if ev.TurnEnd != nil {
				result.EndReason = ev.TurnEnd.Reason
			}
		case harness.EventToolCall:
			if ev.ToolCall != nil {
				result.ToolCalls = append(result.ToolCalls, *ev.ToolCall)
			}
		}
		return nil
	})
	result.Duration = time.Since(start)
	return result, err
}

// RunToolLoop executes the full agentic loop.
func (h *Harness) RunToolLoop(ctx context.Context, turn *harness.Turn, handler harness.ToolHandler, opts harness.LoopOptions) (*harness.TurnResult, error) {
	return harness.RunToolLoop(ctx, h.StreamTurn, turn, handler, opts)
}

// ListModels returns available Claude models.
func (h *Harness) ListModels(ctx context.Context) ([]harness.ModelInfo, error) {
	if h.testClient != nil {
		return h.testClient.ListModels(ctx)
	}
	return h.client.ListModels(ctx)
}

// buildRequest translates a harness.Turn to Anthropic MessageNewParams,
// converting canonical message.Message parts to native content blocks and
// placing cache_control ephemeral breakpoints at turn.CachePoints.
func (h *Harness) buildRequest(turn *harness.Turn) (anthropic.MessageNewParams, error) {
	model := turn.Model
	if model == "" {
		model = h.defaultModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(h.maxTokens),
	}

	systemText, err := BuildSystemPrompt(turn)
	if err != nil {
		return params, fmt.Errorf("build system prompt: %w", err)
	}
	if systemText != "" {
		systemBlock := anthropic.TextBlockParam{Text: systemText}
		if cachePointSet(turn.CachePoints, -1) {
			systemBlock.CacheControl = anthropic.NewCacheControlEphemeralParam()
		}
		params.System = []anthropic.TextBlockParam{systemBlock}
	}

	cacheIdx := map[int]bool{}
	for _, i := range turn.CachePoints {
		cacheIdx[i] = true
	}

	var messages []anthropic.MessageParam
	for i, msg := range turn.Messages {
		cached := cacheIdx[i]
		switch msg.Role {
		case message.RoleUser:
			messages = append(messages, userMessageParam(msg, cached))
		case message.RoleAssistant:
			messages = append(messages, assistantMessageParam(msg, cached))
		}
	}
	params.Messages = messages

	if len(turn.Tools) > 0 {
		var tools []anthropic.ToolUnionParam
		for idx, t := range turn.Tools {
			schema := anthropic.ToolInputSchemaParam{}
			if t.Parameters != nil {
				if props, ok := t.Parameters["properties"].(map[string]any); ok {
					schema.Properties = props
				}
				if req, ok := t.Parameters["required"].([]any); ok {
					for _, r := range req {
						if s, ok := r.(string); ok {
							schema.Required = append(schema.Required, s)
						}
					}
				}
			}
			toolParam := anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: schema,
			}
			// Place a cache_control breakpoint on the last tool definition so
			// the (typically static) tool schema block is cached.
			if idx == len(turn.Tools)-1 {
				toolParam.CacheControl = anthropic.NewCacheControlEphemeralParam()
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		params.Tools = tools
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		}
	}

	thinkBudget := h.thinkBudget
	if turn.Reasoning != nil {
		switch turn.Reasoning.Effort {
		case "high":
			if thinkBudget == 0 {
				thinkBudget = 10000
			}
		case "low":
			thinkBudget = 0
		}
		if turn.Reasoning.Budget > 0 {
			thinkBudget = turn.Reasoning.Budget
		}
	}
	if thinkBudget > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(thinkBudget))
		if params.MaxTokens < int64(thinkBudget)+4096 {
			params.MaxTokens = int64(thinkBudget) + 4096
		}
	}

	return params, nil
}

func cachePointSet(points []int, target int) bool {
	for _, p := range points {
		if p == target {
			return true
		}
	}
	return false
}

func userMessageParam(msg message.Message, cached bool) anthropic.MessageParam {
	var blocks []anthropic.ContentBlockParamUnion
	for _, p := range msg.Parts {
		switch p.Kind {
		case message.PartText:
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		case message.PartToolResult:
			content := ""
			for _, c := range p.Outcome {
				content += c.Text
			}
			blocks = append(blocks, anthropic.NewToolResultBlock(p.ToolResultID, content, p.IsError))
		}
	}
	if cached && len(blocks) > 0 {
		markCacheControl(blocks[len(blocks)-1])
	}
	return anthropic.NewUserMessage(blocks...)
}

func assistantMessageParam(msg message.Message, cached bool) anthropic.MessageParam {
	var blocks []anthropic.ContentBlockParamUnion
	for _, p := range msg.Parts {
		switch p.Kind {
		case message.PartText:
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		case message.PartThinking:
			// Thinking blocks are not replayed back to the model; Claude
			// regenerates them fresh each turn.
		case message.PartToolUse:
			var inputMap map[string]any
			decodeToolInput(p.ToolInputRaw, &inputMap)
			blocks = append(blocks, anthropic.NewToolUseBlock(p.ToolUseID, inputMap, p.ToolName))
		}
	}
	if cached && len(blocks) > 0 {
		markCacheControl(blocks[len(blocks)-1])
	}
	return anthropic.NewAssistantMessage(blocks...)
}

// markCacheControl sets a cache_control ephemeral breakpoint on the block,
// whichever variant it is.
func markCacheControl(block anthropic.ContentBlockParamUnion) {
	switch {
	case block.OfText != nil:
		block.OfText.CacheControl = anthropic.NewCacheControlEphemeralParam()
	case block.OfToolUse != nil:
		block.OfToolUse.CacheControl = anthropic.NewCacheControlEphemeralParam()
	case block.OfToolResult != nil:
		block.OfToolResult.CacheControl = anthropic.NewCacheControlEphemeralParam()
	}
}

func decodeToolInput(raw string, out *map[string]any) {
	if raw == "" {
		return
	}
	_ = json.Unmarshal([]byte(raw), out)
}

// streamState tracks state while translating a stream of Anthropic events.
type streamState struct {
	currentBlockType string // "text", "thinking", "tool_use"
	currentToolID    string
	currentToolName  string
	thinkingText     string
	toolArgsJSON     string
	inputTokens      int
	outputTokens     int
	cachedTokens     int
	stopReason       string
}

// translateEvent converts a raw Anthropic stream event to harness events.
func (h *Harness) translateEvent(event anthropic.MessageStreamEventUnion, state *streamState, emit func(harness.Event) error) error {
	switch e := event.AsAny().(type) {
	case anthropic.ContentBlockStartEvent:
		block := e.ContentBlock
		switch block.Type {
		case "text":
			state.currentBlockType = "text"
		case "thinking":
			state.currentBlockType = "thinking"
			state.thinkingText = ""
		case "tool_use":
			state.currentBlockType = "tool_use"
			toolBlock := block.AsToolUse()
			state.currentToolID = toolBlock.ID
			state.currentToolName = toolBlock.Name
			state.toolArgsJSON = ""
			if err := emit(harness.NewToolCallStartEvent(state.currentToolID, state.currentToolName)); err != nil {
				return err
			}
		}

	case anthropic.ContentBlockDeltaEvent:
		delta := e.Delta
		switch delta.Type {
		case "text_delta":
			textDelta := delta.AsTextDelta()
			return emit(harness.NewTextEvent(textDelta.Text))

		case "thinking_delta":
			thinkDelta := delta.AsThinkingDelta()
			state.thinkingText += thinkDelta.Thinking
			return emit(harness.NewThinkingEvent(thinkDelta.Thinking))

		case "input_json_delta":
			jsonDelta := delta.AsInputJSONDelta()
			state.toolArgsJSON += jsonDelta.PartialJSON
			return emit(harness.NewToolCallArgsDeltaEvent(state.currentToolID, jsonDelta.PartialJSON))
		}

	case anthropic.ContentBlockStopEvent:
		blockType := state.currentBlockType
		state.currentBlockType = ""
		switch blockType {
		case "tool_use":
			return emit(harness.NewToolCallEvent(
				state.currentToolID,
				state.currentToolName,
				state.toolArgsJSON,
			))
		case "thinking":
			// Complete thinking block already streamed as deltas.
		}

	case anthropic.MessageStartEvent:
		if e.Message.Usage.InputTokens > 0 {
			state.inputTokens = int(e.Message.Usage.InputTokens)
		}
		state.cachedTokens = int(e.Message.Usage.CacheReadInputTokens)

	case anthropic.MessageDeltaEvent:
		if e.Usage.OutputTokens > 0 {
			state.outputTokens = int(e.Usage.OutputTokens)
		}
		state.stopReason = string(e.Delta.StopReason)

	case anthropic.MessageStopEvent:
		if state.inputTokens > 0 || state.outputTokens > 0 {
			ev := harness.NewUsageEvent(state.inputTokens, state.outputTokens)
			ev.Usage.CachedTokens = state.cachedTokens
			return emit(ev)
		}
	}

	return nil
}

func endReasonFromStopReason(stopReason string) harness.TurnEndReason {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return harness.ReasonStop
	case "max_tokens":
		return harness.ReasonMaxTokens
	case "tool_use":
		return harness.ReasonToolUse
	case "refusal":
		return harness.ReasonSafety
	default:
		return ""
	}
}
