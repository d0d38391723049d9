package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"coreagent/pkg/harness"
	"coreagent/pkg/harness/retry"
	"coreagent/pkg/message"
)

// Config holds configuration for the Gemini harness.
type Config struct {
	Client *ClientWrapper

	// DefaultModel is the model to use when Turn.Model is empty.
	DefaultModel string

	// ThinkingBudget is the default extended-thinking token budget; 0 disables it.
	ThinkingBudget int

	Aliases  map[string]string
	Prefixes []string

	// CacheTTL is how long a refreshed cached-content object lives (§4.1).
	// Zero disables server-side caching even when Turn.CachePoints is set.
	CacheTTL time.Duration
}

// streamClient abstracts the streaming generation API for testing.
type streamClient interface {
	StreamGenerate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig, onChunk func(*genai.GenerateContentResponse) error) error
	ListModels(ctx context.Context) ([]harness.ModelInfo, error)
}

// cacheCreator abstracts the optional cached-content API so it can be
// exercised without a live Gemini account; nil disables caching.
type cacheCreator interface {
	CreateCache(ctx context.Context, model string, contents []*genai.Content, ttl time.Duration) (name string, err error)
}

// Harness implements harness.Harness over the Gemini GenerateContent
// streaming API (Family B: user/model roles, function-call/
// function-response parts addressed by id, optional server-side cache).
type Harness struct {
	client         streamClient
	cache          cacheCreator
	defaultModel   string
	thinkingBudget int
	cacheTTL       time.Duration
	aliases        map[string]string
	prefixes       []string
}

var _ harness.Harness = (*Harness)(nil)

// New creates a new Gemini harness.
func New(cfg Config) *Harness {
	model := cfg.DefaultModel
	if model == "" {
		model = "gemini-2.0-flash"
	}
	var sc streamClient
	if cfg.Client != nil {
		sc = cfg.Client
	}
	return &Harness{
		client:         sc,
		defaultModel:   model,
		thinkingBudget: cfg.ThinkingBudget,
		cacheTTL:       cfg.CacheTTL,
		aliases:        cfg.Aliases,
		prefixes:       cfg.Prefixes,
	}
}

// Name returns "gemini".
func (h *Harness) Name() string { return "gemini" }

// StreamTurn executes a single turn, translating Gemini response chunks
// into structured harness events.
func (h *Harness) StreamTurn(ctx context.Context, turn *harness.Turn, onEvent func(harness.Event) error) error {
	if h.client == nil {
		return fmt.Errorf("gemini: no client configured")
	}

	model := turn.Model
	if model == "" {
		model = h.defaultModel
	}

	contents, systemInstruction := h.buildContents(turn)
	cfg, err := h.buildConfig(turn, systemInstruction)
	if err != nil {
		return fmt.Errorf("gemini: build config: %w", err)
	}

	if h.cache != nil && h.cacheTTL > 0 && len(turn.CachePoints) > 0 {
		upTo := highestCachePoint(turn.CachePoints, len(contents))
		if upTo > 0 {
			if name, cacheErr := h.cache.CreateCache(ctx, model, contents[:upTo], h.cacheTTL); cacheErr == nil {
				cfg.CachedContent = name
				contents = contents[upTo:]
			}
			// Cache creation failures fall back silently to an uncached call.
		}
	}

	state := &streamState{seenCallIDs: map[string]bool{}}
	err = retry.Do(ctx, retry.Transient, func() error {
		*state = streamState{seenCallIDs: map[string]bool{}}
		return h.client.StreamGenerate(ctx, model, contents, cfg, func(resp *genai.GenerateContentResponse) error {
			return h.translateChunk(resp, state, onEvent)
		})
	})
	if err != nil {
		return err
	}

	if state.finishReason != "" {
		reason := endReasonFromFinishReason(state.finishReason, len(state.seenCallIDs) > 0)
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

// buildContents converts a harness.Turn into Gemini contents plus an
// optional system instruction. Role mapping is user↔user, assistant↔model.
// Tool calls/results become FunctionCall/FunctionResponse parts; since
// Gemini doesn't guarantee round-tripping our tool_use ids, the response
// translator assigns a synthetic id on receipt, recorded in ToolUseID, and
// this function walks the full history to recover the name for each
// tool_result when emitting its FunctionResponse.
func (h *Harness) buildContents(turn *harness.Turn) ([]*genai.Content, *genai.Content) {
	nameByID := map[string]string{}
	for _, msg := range turn.Messages {
		for _, p := range msg.ToolUses() {
			nameByID[p.ToolUseID] = p.ToolName
		}
	}

	var systemInstruction *genai.Content
	instructions, _ := BuildSystemPrompt(turn)
	if instructions != "" {
		systemInstruction = &genai.Content{Parts: []*genai.Part{{Text: instructions}}}
	}

	contents := make([]*genai.Content, 0, len(turn.Messages))
	for _, msg := range turn.Messages {
		if msg.Role == message.RoleSystem {
			continue
		}
		role := "user"
		if msg.Role == message.RoleAssistant {
			role = "model"
		}

		var parts []*genai.Part
		for _, p := range msg.Parts {
			switch p.Kind {
			case message.PartText:
				if p.Text != "" {
					parts = append(parts, &genai.Part{Text: p.Text})
				}
			case message.PartThinking:
				// not replayed; Gemini regenerates its own thought parts
			case message.PartToolUse:
				var args map[string]any
				_ = json.Unmarshal([]byte(p.ToolInputRaw), &args)
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   p.ToolUseID,
					Name: p.ToolName,
					Args: args,
				}})
			case message.PartToolResult:
				name := nameByID[p.ToolResultID]
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       p.ToolResultID,
					Name:     name,
					Response: map[string]any{"result": outcomeText(p.Outcome), "is_error": p.IsError},
				}})
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	return contents, systemInstruction
}

func outcomeText(blocks []message.ContentBlock) string {
	var out string
	for _, b := range blocks {
		out += b.Text
	}
	return out
}

// buildConfig builds generation config including tool declarations and
// extended-thinking parameters.
func (h *Harness) buildConfig(turn *harness.Turn, systemInstruction *genai.Content) (*genai.GenerateContentConfig, error) {
	cfg := &genai.GenerateContentConfig{SystemInstruction: systemInstruction}

	budget := h.thinkingBudget
	if turn.Reasoning != nil {
		switch turn.Reasoning.Effort {
		case "low":
			budget = 0
		case "high":
			if budget == 0 {
				budget = 10000
			}
		}
		if turn.Reasoning.Budget > 0 {
			budget = turn.Reasoning.Budget
		}
	}
	if budget > 0 {
		b := int32(budget)
		cfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true, ThinkingBudget: &b}
	}

	if len(turn.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(turn.Tools))
		for _, t := range turn.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGenaiSchema(t.Parameters),
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	return cfg, nil
}

// toGenaiSchema converts a plain JSON-Schema map into a genai.Schema.
func toGenaiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if propMap, ok := raw.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	if req, ok := schema["required"].([]any); ok {
		strs := make([]string, 0, len(req))
		for _, r := range req {
			if rs, ok := r.(string); ok {
				strs = append(strs, rs)
			}
		}
		s.Required = strs
	}
	return s
}

func highestCachePoint(points []int, limit int) int {
	max := 0
	for _, p := range points {
		if p > max && p <= limit {
			max = p
		}
	}
	return max
}
