package tool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"coreagent/pkg/harness"
)

func TestExecuteBatch_PreservesOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("read", true))
	e := NewExecutor(r, 4)

	calls := []harness.ToolCallEvent{
		{CallID: "c1", Name: "read", Arguments: "one"},
		{CallID: "c2", Name: "read", Arguments: "two"},
		{CallID: "c3", Name: "read", Arguments: "three"},
	}
	results := e.ExecuteBatch(context.Background(), calls)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"one", "two", "three"} {
		if results[i].Output != want {
			t.Errorf("result %d: got %q, want %q", i, results[i].Output, want)
		}
		if results[i].CallID != calls[i].CallID {
			t.Errorf("result %d: call id mismatch, got %q want %q", i, results[i].CallID, calls[i].CallID)
		}
	}
}

func TestExecuteBatch_ReadOnlyRunsConcurrently(t *testing.T) {
	r := NewRegistry()
	var inFlight int32
	var maxInFlight int32
	r.Register(Tool{
		Name:         "slow_read",
		Capabilities: Capabilities{ReadOnly: true},
		Handler: func(ctx context.Context, args string) (Result, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				cur := atomic.LoadInt32(&maxInFlight)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInFlight, cur, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return Result{Output: args}, nil
		},
	})
	e := NewExecutor(r, 4)

	calls := make([]harness.ToolCallEvent, 3)
	for i := range calls {
		calls[i] = harness.ToolCallEvent{CallID: "c", Name: "slow_read", Arguments: "x"}
	}
	e.ExecuteBatch(context.Background(), calls)

	if atomic.LoadInt32(&maxInFlight) < 2 {
		t.Errorf("expected read-only calls to overlap, max in flight was %d", maxInFlight)
	}
}

func TestExecuteBatch_NonReadOnlyForcesSequentialBoundary(t *testing.T) {
	r := NewRegistry()
	var order []string
	r.Register(Tool{
		Name:         "read",
		Capabilities: Capabilities{ReadOnly: true},
		Handler: func(ctx context.Context, args string) (Result, error) {
			order = append(order, "read:"+args)
			return Result{Output: args}, nil
		},
	})
	r.Register(Tool{
		Name: "write",
		Handler: func(ctx context.Context, args string) (Result, error) {
			order = append(order, "write:"+args)
			return Result{Output: args}, nil
		},
	})
	e := NewExecutor(r, 4)

	calls := []harness.ToolCallEvent{
		{CallID: "c1", Name: "read", Arguments: "a"},
		{CallID: "c2", Name: "write", Arguments: "b"},
		{CallID: "c3", Name: "read", Arguments: "c"},
	}
	results := e.ExecuteBatch(context.Background(), calls)
	if len(order) != 3 {
		t.Fatalf("expected 3 calls to execute, got %d", len(order))
	}
	if order[1] != "write:b" {
		t.Errorf("expected write to run second (sequential boundary), got order %v", order)
	}
	for i, want := range []string{"a", "b", "c"} {
		if results[i].Output != want {
			t.Errorf("result %d: got %q, want %q", i, results[i].Output, want)
		}
	}
}

func TestExecuteBatch_SiblingErrorDoesNotAbortBatch(t *testing.T) {
	r := NewRegistry()
	r.Register(Tool{
		Name:         "failing",
		Capabilities: Capabilities{ReadOnly: true},
		Handler: func(ctx context.Context, args string) (Result, error) {
			return Result{Output: "boom", IsError: true}, nil
		},
	})
	r.Register(echoTool("read", true))
	e := NewExecutor(r, 4)

	calls := []harness.ToolCallEvent{
		{CallID: "c1", Name: "failing", Arguments: "x"},
		{CallID: "c2", Name: "read", Arguments: "ok"},
	}
	results := e.ExecuteBatch(context.Background(), calls)
	if !results[0].IsError {
		t.Error("expected first result to be an error")
	}
	if results[1].IsError || results[1].Output != "ok" {
		t.Errorf("expected sibling to complete successfully, got %+v", results[1])
	}
}

func TestExecuteBatch_UnknownTool(t *testing.T) {
	r := NewRegistry()
	e := NewExecutor(r, 4)
	results := e.ExecuteBatch(context.Background(), []harness.ToolCallEvent{{CallID: "c1", Name: "ghost"}})
	if len(results) != 1 || !results[0].IsError {
		t.Fatalf("expected an error result for unknown tool, got %+v", results)
	}
}

func TestExecuteBatch_CancelledContext(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("read", true))
	e := NewExecutor(r, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := e.ExecuteBatch(ctx, []harness.ToolCallEvent{{CallID: "c1", Name: "read", Arguments: "x"}})
	if len(results) != 1 || !results[0].IsError {
		t.Fatalf("expected a well-formed error result under cancellation, got %+v", results)
	}
}
