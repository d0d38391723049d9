package tool

import (
	"context"
	"fmt"
	"sync"

	"coreagent/pkg/harness"
	"coreagent/pkg/schema"
)

// DefaultConcurrency bounds how many read-only tools in a single group may
// run at once.
const DefaultConcurrency = 4

// Executor runs one assistant turn's batch of tool uses against a Registry,
// honoring §4.2: consecutive read-only calls within the batch run
// concurrently (bounded), any non-read-only call forces a sequential
// boundary before and after it.
type Executor struct {
	registry    *Registry
	concurrency int
	validator   *schema.Validator
}

// NewExecutor creates an executor over registry. concurrency <= 0 uses
// DefaultConcurrency. Every call's arguments are validated against the
// matched tool's schema before the handler runs; a violation is reported as
// a tool-result error rather than propagated as a Go error.
func NewExecutor(registry *Registry, concurrency int) *Executor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Executor{registry: registry, concurrency: concurrency, validator: schema.NewValidator()}
}

// ExecuteBatch runs calls in request order, grouping consecutive read-only
// calls for bounded-concurrency execution and running any other call alone.
// Results are always returned in the same order as calls, regardless of
// completion order. A cancelled context still yields a well-formed result
// per call (is_error=true), never a shorter slice.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []harness.ToolCallEvent) []harness.ToolResultEvent {
	results := make([]harness.ToolResultEvent, len(calls))

	i := 0
	for i < len(calls) {
		if e.isReadOnly(calls[i]) {
			j := i
			for j < len(calls) && e.isReadOnly(calls[j]) {
				j++
			}
			e.runConcurrent(ctx, calls[i:j], results[i:j])
			i = j
			continue
		}
		results[i] = e.runOne(ctx, calls[i])
		i++
	}

	return results
}

func (e *Executor) isReadOnly(call harness.ToolCallEvent) bool {
	t, ok := e.registry.Get(call.Name)
	return ok && t.Capabilities.ReadOnly
}

func (e *Executor) runConcurrent(ctx context.Context, calls []harness.ToolCallEvent, out []harness.ToolResultEvent) {
	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup

	for idx, call := range calls {
		wg.Add(1)
		go func(idx int, call harness.ToolCallEvent) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				out[idx] = harness.ToolResultEvent{CallID: call.CallID, Output: "cancelled", IsError: true}
				return
			}
			out[idx] = e.runOne(ctx, call)
		}(idx, call)
	}

	wg.Wait()
}

func (e *Executor) runOne(ctx context.Context, call harness.ToolCallEvent) harness.ToolResultEvent {
	select {
	case <-ctx.Done():
		return harness.ToolResultEvent{CallID: call.CallID, Output: "cancelled", IsError: true}
	default:
	}

	t, ok := e.registry.Get(call.Name)
	if !ok {
		return harness.ToolResultEvent{CallID: call.CallID, Output: fmt.Sprintf("tool not found: %s", call.Name), IsError: true}
	}

	if err := e.validator.ValidateToolInput(t.Name, t.Schema, []byte(call.Arguments)); err != nil {
		return harness.ToolResultEvent{CallID: call.CallID, Output: err.Error(), IsError: true}
	}

	result, err := t.Handler(ctx, call.Arguments)
	if err != nil {
		return harness.ToolResultEvent{CallID: call.CallID, Output: err.Error(), IsError: true}
	}
	return harness.ToolResultEvent{CallID: call.CallID, Output: result.Output, IsError: result.IsError}
}
