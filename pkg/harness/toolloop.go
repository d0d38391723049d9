package harness

import (
	"context"
	"time"

	"coreagent/pkg/message"
)

// RunToolLoop is the generic agentic tool loop shared by all harnesses.
// It calls StreamTurn, collects tool calls, executes them via handler,
// builds a single assistant message carrying every tool_use part from the
// round followed by a single user message carrying the matching
// tool_result parts (in request order, per §4.2's reordering contract),
// and repeats until no tool calls remain or max turns is reached.
func RunToolLoop(
	ctx context.Context,
	streamTurn func(ctx context.Context, turn *Turn, onEvent func(Event) error) error,
	turn *Turn,
	handler ToolHandler,
	opts LoopOptions,
) (*TurnResult, error) {
	start := time.Now()
	combined := &TurnResult{}
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}

	currentTurn := turn
	for i := 0; i < maxTurns; i++ {
		var pendingCalls []ToolCallEvent
		var assistantText string
		err := streamTurn(ctx, currentTurn, func(ev Event) error {
			combined.Events = append(combined.Events, ev)
			if opts.OnEvent != nil {
				if err := opts.OnEvent(ev); err != nil {
					return err
				}
			}
			switch ev.Kind {
			case EventText:
				if ev.Text != nil {
					assistantText += ev.Text.Delta
					if ev.Text.Complete != "" {
						assistantText = ev.Text.Complete
					}
					combined.FinalText = assistantText
				}
			case EventUsage:
				combined.Usage = ev.Usage
			case EventTurnEnd:
				if ev.TurnEnd != nil {
					combined.EndReason = ev.TurnEnd.Reason
				}
			case EventToolCall:
				if ev.ToolCall != nil {
					pendingCalls = append(pendingCalls, *ev.ToolCall)
					combined.ToolCalls = append(combined.ToolCalls, *ev.ToolCall)
				}
			}
			return nil
		})
		if err != nil {
			combined.Duration = time.Since(start)
			return combined, err
		}

		if len(pendingCalls) == 0 {
			break
		}

		assistantParts := make([]message.Part, 0, len(pendingCalls)+1)
		if assistantText != "" {
			assistantParts = append(assistantParts, message.NewText(assistantText))
		}
		resultParts := make([]message.Part, 0, len(pendingCalls))
		for _, call := range pendingCalls {
			assistantParts = append(assistantParts, message.NewToolUse(call.CallID, call.Name, call.Arguments))

			result, err := handler.Handle(ctx, call)
			if err != nil {
				combined.Duration = time.Since(start)
				return combined, err
			}
			isError := false
			output := ""
			if result != nil {
				isError = result.IsError
				output = result.Output
				ev := NewToolResultEvent(result.CallID, result.Output, result.IsError)
				combined.Events = append(combined.Events, ev)
			}
			resultParts = append(resultParts, message.NewToolResult(call.CallID, isError, message.TextBlock(output)))
		}

		nextTurn := *currentTurn
		nextTurn.Messages = append(nextTurn.Messages,
			message.Message{Role: message.RoleAssistant, Parts: assistantParts},
			message.Message{Role: message.RoleUser, Parts: resultParts},
		)
		currentTurn = &nextTurn
	}

	combined.Duration = time.Since(start)
	return combined, nil
}
