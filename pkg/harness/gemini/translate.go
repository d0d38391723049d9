package gemini

import (
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"coreagent/pkg/harness"
)

type streamState struct {
	seenCallIDs        map[string]bool
	finishReason       string
	usage              *harness.UsageEvent
	wasInThinkingBlock bool
	callCounter        int
}

// translateChunk converts one Gemini response chunk into structured harness
// events. Text and thought deltas stream directly; function calls arrive
// whole (Gemini doesn't fragment them across chunks the way Chat
// Completions does), so each is emitted as a single EventToolCall once,
// deduplicated by id.
func (h *Harness) translateChunk(resp *genai.GenerateContentResponse, state *streamState, emit func(harness.Event) error) error {
	if resp.UsageMetadata != nil {
		state.usage = &harness.UsageEvent{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	if len(resp.Candidates) == 0 {
		return nil
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason != "" {
		state.finishReason = string(candidate.FinishReason)
	}
	if candidate.Content == nil {
		return nil
	}

	for _, part := range candidate.Content.Parts {
		switch {
		case part.Text != "" && part.Thought:
			state.wasInThinkingBlock = true
			if err := emit(harness.NewThinkingEvent(part.Text)); err != nil {
				return err
			}

		case part.Text != "":
			state.wasInThinkingBlock = false
			if err := emit(harness.NewTextEvent(part.Text)); err != nil {
				return err
			}

		case part.FunctionCall != nil:
			id := part.FunctionCall.ID
			if id == "" {
				state.callCounter++
				id = fmt.Sprintf("gemini_call_%d", state.callCounter)
			}
			if state.seenCallIDs[id] {
				continue
			}
			state.seenCallIDs[id] = true
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return fmt.Errorf("gemini: encode function call args: %w", err)
			}
			if err := emit(harness.NewToolCallEvent(id, part.FunctionCall.Name, string(args))); err != nil {
				return err
			}
		}
	}

	return nil
}

func endReasonFromFinishReason(reason string, hadToolCalls bool) harness.TurnEndReason {
	if hadToolCalls {
		return harness.ReasonToolUse
	}
	switch genai.FinishReason(reason) {
	case genai.FinishReasonStop:
		return harness.ReasonStop
	case genai.FinishReasonMaxTokens:
		return harness.ReasonMaxTokens
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return harness.ReasonSafety
	default:
		return ""
	}
}
