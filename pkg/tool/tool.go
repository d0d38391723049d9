// Package tool defines the tool contract shared by every built-in and
// MCP-discovered tool, plus a registry and a concurrency-aware executor
// that batches one assistant turn's tool uses per §4.2.
package tool

import (
	"context"

	"coreagent/pkg/harness"
)

// Capabilities describes what the executor is allowed to assume about a
// tool when scheduling it against sibling calls in the same batch.
type Capabilities struct {
	// ReadOnly tools may run concurrently with other read-only tools in the
	// same batch. A tool lacking this forces a sequential boundary: it runs
	// alone, after every earlier group completes and before any later one
	// starts.
	ReadOnly bool

	// Streaming marks a tool whose result arrives incrementally rather than
	// as one final value (reserved for future UI wiring; the executor does
	// not yet special-case it).
	Streaming bool
}

// Result is a tool invocation outcome, translated to a harness.ToolResultEvent
// by the executor once the call id is known.
type Result struct {
	Output  string
	IsError bool
}

// Handler executes one tool invocation. args is the tool call's raw JSON
// argument string as accumulated by the provider adapter.
type Handler func(ctx context.Context, args string) (Result, error)

// Tool is one entry in a Registry.
type Tool struct {
	Name         string
	Description  string
	Schema       map[string]any
	Capabilities Capabilities
	Handler      Handler
}

// Spec returns the harness.ToolSpec advertised to the model.
func (t Tool) Spec() harness.ToolSpec {
	return harness.ToolSpec{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Schema,
	}
}
