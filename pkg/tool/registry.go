package tool

import (
	"context"
	"fmt"
	"sync"

	"coreagent/pkg/harness"
)

// Registry holds the tool set available to an agent. It is effectively
// immutable after startup; the one exception is RegisterMCP, which extends
// it atomically as MCP connections complete discovery.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a built-in tool. Re-registering a name replaces it in
// place, preserving its original position.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// RegisterMCP atomically extends the registry with tools discovered from an
// MCP server. Used after startup, unlike Register.
func (r *Registry) RegisterMCP(tools ...Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		if _, exists := r.tools[t.Name]; !exists {
			r.order = append(r.order, t.Name)
		}
		r.tools[t.Name] = t
	}
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Subset returns the tools whose name appears in names, preserving registry
// order. Unknown names are skipped.
func (r *Registry) Subset(names []string) []Tool {
	if names == nil {
		return r.List()
	}
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(names))
	for _, name := range r.order {
		if allowed[name] {
			out = append(out, r.tools[name])
		}
	}
	return out
}

// Available implements harness.ToolHandler: the tool specs advertised to
// the model for prompt-template rendering (§4.7).
func (r *Registry) Available() []harness.ToolSpec {
	tools := r.List()
	specs := make([]harness.ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, t.Spec())
	}
	return specs
}

// Handle implements harness.ToolHandler, executing a single call. Callers
// wanting §4.2's bounded read-only concurrency across a batch should use
// Executor.ExecuteBatch instead.
func (r *Registry) Handle(ctx context.Context, call harness.ToolCallEvent) (*harness.ToolResultEvent, error) {
	t, ok := r.Get(call.Name)
	if !ok {
		return &harness.ToolResultEvent{
			CallID:  call.CallID,
			Output:  fmt.Sprintf("tool not found: %s", call.Name),
			IsError: true,
		}, nil
	}
	result, err := t.Handler(ctx, call.Arguments)
	if err != nil {
		return &harness.ToolResultEvent{CallID: call.CallID, Output: err.Error(), IsError: true}, nil
	}
	return &harness.ToolResultEvent{CallID: call.CallID, Output: result.Output, IsError: result.IsError}, nil
}

var _ harness.ToolHandler = (*Registry)(nil)
