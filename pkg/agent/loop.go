// Package agent implements the §4.5 agent loop: the explicit
// Idle/AwaitingResponse/ExecutingTools/Cancelled state machine that owns one
// canonical conversation, driving the harness, the tool executor, and
// between-turn compaction to turn a user message into a finished assistant
// response.
package agent

import (
	"context"
	"fmt"
	"sync"

	"coreagent/pkg/agent/compaction"
	"coreagent/pkg/agent/tokens"
	"coreagent/pkg/agenterr"
	"coreagent/pkg/harness"
	"coreagent/pkg/message"
	"coreagent/pkg/tool"
)

// State is a position in the agent loop's state machine.
type State int

const (
	// Idle means no turn is in flight; Submit may be called.
	Idle State = iota
	// AwaitingResponse means a model call is streaming.
	AwaitingResponse
	// ExecutingTools means the model's tool calls are running.
	ExecutingTools
	// Cancelled is terminal for the in-flight Submit call; the loop returns
	// to Idle afterward and may accept a new Submit.
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingResponse:
		return "awaiting_response"
	case ExecutingTools:
		return "executing_tools"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Config configures a Loop's turn requests and between-turn policies.
type Config struct {
	Model        string
	Instructions string
	// AgentKind and KindInstructions select the role section of the
	// rendered system prompt; both empty means the main agent's default.
	AgentKind        string
	KindInstructions string
	Environment      *harness.EnvironmentCtx
	Permissions      *harness.PermissionsCtx
	Reasoning        *harness.ReasoningConfig
	UserContext      *harness.UserContext

	// MaxTurns bounds the number of model->tool->model cycles within a
	// single Submit call. 0 uses a default of 10.
	MaxTurns int
	// ToolConcurrency bounds read-only tool parallelism within one batch.
	// 0 uses tool.DefaultConcurrency.
	ToolConcurrency int

	// Compaction configures when and how history is summarized between
	// turns. A zero ContextWindow disables compaction entirely.
	Compaction     compaction.Options
	SummaryHarness compaction.Summarizer

	// compactionOffSave holds Compaction.ContextWindow while ToggleCompaction
	// has switched it off, so a second toggle can restore it.
	compactionOffSave int
}

// Loop owns a single canonical conversation end to end, per §5: no other
// component may mutate it while a Submit call is in flight.
type Loop struct {
	mu sync.Mutex

	h        harness.Harness
	registry *tool.Registry
	executor *tool.Executor
	counter  *tokens.Counter
	cfg      Config

	conversation []message.Message
	cachePoints  []int
	state        State
	cancel       context.CancelFunc
	injections   []string
}

// NewLoop creates a Loop. counter may be nil if cfg.Compaction.ContextWindow
// is zero (compaction disabled).
func NewLoop(h harness.Harness, registry *tool.Registry, counter *tokens.Counter, cfg Config) *Loop {
	return &Loop{
		h:        h,
		registry: registry,
		executor: tool.NewExecutor(registry, cfg.ToolConcurrency),
		counter:  counter,
		cfg:      cfg,
		state:    Idle,
	}
}

// State returns the loop's current position in the state machine.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Registry returns the tool registry this loop executes calls against, so
// callers composing a tool subset for a child loop (pkg/orchestrator) can
// read the parent's available tool names.
func (l *Loop) Registry() *tool.Registry {
	return l.registry
}

// Conversation returns a snapshot of the canonical conversation so far.
func (l *Loop) Conversation() []message.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]message.Message, len(l.conversation))
	copy(out, l.conversation)
	return out
}

// Cancel aborts whatever Submit call is currently in flight, if any. It is
// safe to call from any goroutine, at any time, including when the loop is
// Idle (a no-op in that case).
func (l *Loop) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *Loop) appendMessage(m message.Message) {
	l.mu.Lock()
	l.conversation = append(l.conversation, m)
	l.mu.Unlock()
}

// Inject queues text to be appended as a user message at the next turn
// boundary — §4.6's parent→child "interrupt message" delivery. Safe to call
// from any goroutine, including while a Submit call is in flight.
func (l *Loop) Inject(text string) {
	l.mu.Lock()
	l.injections = append(l.injections, text)
	l.mu.Unlock()
}

// drainInjections folds any queued Inject texts into the conversation at the
// current turn boundary: appended as extra text parts on the trailing user
// message when one is pending (e.g. the synthetic tool_result message from
// the prior round), or as a new user message otherwise — either way without
// introducing a second consecutive user-role message.
func (l *Loop) drainInjections() {
	l.mu.Lock()
	defer l.mu.Unlock()
	pending := l.injections
	l.injections = nil
	if len(pending) == 0 {
		return
	}
	extra := make([]message.Part, 0, len(pending))
	for _, text := range pending {
		extra = append(extra, message.NewText(text))
	}
	if n := len(l.conversation); n > 0 && l.conversation[n-1].Role == message.RoleUser {
		l.conversation[n-1].Parts = append(l.conversation[n-1].Parts, extra...)
		return
	}
	l.conversation = append(l.conversation, message.Message{Role: message.RoleUser, Parts: extra})
}

// Submit appends userText as a new user turn and drives the state machine
// until the model produces a final response with no pending tool calls, the
// turn is cancelled, or cfg.MaxTurns is reached.
func (l *Loop) Submit(ctx context.Context, userText string) (*harness.TurnResult, error) {
	l.mu.Lock()
	if l.state != Idle {
		current := l.state
		l.mu.Unlock()
		return nil, fmt.Errorf("agent: Submit called while loop is %s, not idle", current)
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.conversation = append(l.conversation, message.Message{
		Role:  message.RoleUser,
		Parts: []message.Part{message.NewText(userText)},
	})
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.cancel = nil
		l.mu.Unlock()
	}()

	maxTurns := l.cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}

	combined := &harness.TurnResult{}

	for round := 0; round < maxTurns; round++ {
		l.drainInjections()

		if err := l.maybeCompact(runCtx); err != nil {
			l.setState(Idle)
			return combined, fmt.Errorf("agent: compaction: %w", err)
		}

		l.setState(AwaitingResponse)
		turn := l.buildTurn()

		var pendingCalls []harness.ToolCallEvent
		var assistantText string
		streamErr := l.h.StreamTurn(runCtx, turn, func(ev harness.Event) error {
			combined.Events = append(combined.Events, ev)
			switch ev.Kind {
			case harness.EventText:
				if ev.Text != nil {
					assistantText += ev.Text.Delta
					if ev.Text.Complete != "" {
						assistantText = ev.Text.Complete
					}
					combined.FinalText = assistantText
				}
			case harness.EventUsage:
				combined.Usage = ev.Usage
			case harness.EventTurnEnd:
				if ev.TurnEnd != nil {
					combined.EndReason = ev.TurnEnd.Reason
				}
			case harness.EventToolCall:
				if ev.ToolCall != nil {
					pendingCalls = append(pendingCalls, *ev.ToolCall)
					combined.ToolCalls = append(combined.ToolCalls, *ev.ToolCall)
				}
			}
			return nil
		})

		if streamErr != nil {
			if runCtx.Err() != nil {
				// AwaitingResponse cancellation: drop the partial assistant
				// message entirely, conversation stays well-formed.
				l.setState(Cancelled)
				l.setState(Idle)
				return combined, agenterr.Wrap(agenterr.Cancelled, "turn aborted while awaiting response", runCtx.Err())
			}
			l.setState(Idle)
			return combined, streamErr
		}

		if len(pendingCalls) == 0 {
			if assistantText != "" {
				l.appendMessage(message.Message{Role: message.RoleAssistant, Parts: []message.Part{message.NewText(assistantText)}})
			}
			l.setState(Idle)
			return combined, nil
		}

		assistantParts := make([]message.Part, 0, len(pendingCalls)+1)
		if assistantText != "" {
			assistantParts = append(assistantParts, message.NewText(assistantText))
		}
		for _, call := range pendingCalls {
			assistantParts = append(assistantParts, message.NewToolUse(call.CallID, call.Name, call.Arguments))
		}
		l.appendMessage(message.Message{Role: message.RoleAssistant, Parts: assistantParts})

		l.setState(ExecutingTools)
		results := l.executor.ExecuteBatch(runCtx, pendingCalls)

		resultParts := make([]message.Part, 0, len(results))
		for _, r := range results {
			combined.Events = append(combined.Events, harness.NewToolResultEvent(r.CallID, r.Output, r.IsError))
			resultParts = append(resultParts, message.NewToolResult(r.CallID, r.IsError, message.TextBlock(r.Output)))
		}
		l.appendMessage(message.Message{Role: message.RoleUser, Parts: resultParts})

		if runCtx.Err() != nil {
			// ExecutingTools cancellation: the synthetic tool_result message
			// above already carries "cancelled" outcomes for every call the
			// executor aborted (see tool.Executor.ExecuteBatch), so the
			// conversation remains well-formed without further rewriting.
			l.setState(Cancelled)
			l.setState(Idle)
			return combined, agenterr.Wrap(agenterr.Cancelled, "turn aborted while executing tools", runCtx.Err())
		}
	}

	l.setState(Idle)
	return combined, fmt.Errorf("agent: exceeded max turns (%d) without a final response", maxTurns)
}

func (l *Loop) buildTurn() *harness.Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	messages := make([]message.Message, len(l.conversation))
	copy(messages, l.conversation)
	cachePoints := make([]int, len(l.cachePoints))
	copy(cachePoints, l.cachePoints)

	return &harness.Turn{
		Model:            l.cfg.Model,
		Instructions:     l.cfg.Instructions,
		AgentKind:        l.cfg.AgentKind,
		KindInstructions: l.cfg.KindInstructions,
		Messages:         messages,
		CachePoints:      cachePoints,
		Tools:            l.registry.Available(),
		Environment:      l.cfg.Environment,
		Permissions:      l.cfg.Permissions,
		Reasoning:        l.cfg.Reasoning,
		UserContext:      l.cfg.UserContext,
	}
}

// maybeCompact runs a compaction pass if configured and over threshold. It
// is a no-op when Compaction.ContextWindow is zero or counter is nil.
func (l *Loop) maybeCompact(ctx context.Context) error {
	if l.cfg.Compaction.ContextWindow <= 0 || l.counter == nil || l.cfg.SummaryHarness == nil {
		return nil
	}

	l.mu.Lock()
	messages := make([]message.Message, len(l.conversation))
	copy(messages, l.conversation)
	cachePoints := make([]int, len(l.cachePoints))
	copy(cachePoints, l.cachePoints)
	l.mu.Unlock()

	if !compaction.ShouldCompact(l.counter, messages, l.cfg.Compaction) {
		return nil
	}

	rewritten, keptPoints, changed, err := compaction.Compact(ctx, l.counter, l.cfg.SummaryHarness, messages, cachePoints, l.cfg.Compaction)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	l.mu.Lock()
	l.conversation = rewritten
	l.cachePoints = keptPoints
	l.mu.Unlock()
	return nil
}

// SetCachePoints replaces the loop's cache-point marker indices (§3, §4.1).
// Callers typically set one after each committed assistant turn.
func (l *Loop) SetCachePoints(points []int) {
	l.mu.Lock()
	l.cachePoints = append([]int(nil), points...)
	l.mu.Unlock()
}

// Reset clears the canonical conversation and cache points, returning the
// loop to a fresh Idle state. It rejects the call while a Submit is in
// flight rather than racing that turn's mutations.
func (l *Loop) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Idle {
		return fmt.Errorf("agent: Reset called while loop is %s, not idle", l.state)
	}
	l.conversation = nil
	l.cachePoints = nil
	l.injections = nil
	return nil
}

// Restore replaces the canonical conversation wholesale, e.g. when resuming
// a saved session. It rejects the call while a Submit is in flight.
func (l *Loop) Restore(messages []message.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Idle {
		return fmt.Errorf("agent: Restore called while loop is %s, not idle", l.state)
	}
	l.conversation = append([]message.Message(nil), messages...)
	l.cachePoints = nil
	return nil
}

// SetModel changes the model used for subsequent Submit calls.
func (l *Loop) SetModel(model string) {
	l.mu.Lock()
	l.cfg.Model = model
	l.mu.Unlock()
}

// Model returns the model currently configured for Submit calls.
func (l *Loop) Model() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg.Model
}

// ToggleCompaction flips whether between-turn compaction runs, returning the
// new state. Disabling does not undo compaction already applied.
func (l *Loop) ToggleCompaction() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.Compaction.ContextWindow, l.cfg.compactionOffSave = toggleContextWindow(l.cfg.Compaction.ContextWindow, l.cfg.compactionOffSave)
	return l.cfg.Compaction.ContextWindow > 0
}

// toggleContextWindow swaps an active context window out to off (storing it
// for later restoration) or back in, so ToggleCompaction is reversible
// without needing the caller to remember the original window size.
func toggleContextWindow(window, saved int) (newWindow, newSaved int) {
	if window > 0 {
		return 0, window
	}
	return saved, 0
}
