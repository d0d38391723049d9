package harness

import (
	"fmt"
	"strings"
)

// Router dispatches a model string to the Harness that should serve it.
// Model strings may carry an explicit "provider/model" prefix; otherwise
// the router asks each registered Harness, in registration order, whether
// MatchesModel claims it.
type Router struct {
	order    []string
	harness  map[string]Harness
	fallback string
}

// NewRouter creates an empty Router. fallback names the harness used when no
// explicit prefix is given and no harness's MatchesModel claims the model;
// empty means such a lookup is an error.
func NewRouter(fallback string) *Router {
	return &Router{harness: make(map[string]Harness), fallback: fallback}
}

// Register adds h under name, preserving registration order for
// prefix-less resolution.
func (r *Router) Register(name string, h Harness) {
	if _, exists := r.harness[name]; !exists {
		r.order = append(r.order, name)
	}
	r.harness[name] = h
}

// Resolve splits an optional "provider/model" prefix from model and returns
// the matching Harness plus the bare model id the harness should receive.
func (r *Router) Resolve(model string) (Harness, string, error) {
	if name, rest, ok := strings.Cut(model, "/"); ok {
		if h, exists := r.harness[name]; exists {
			return h, rest, nil
		}
	}

	for _, name := range r.order {
		h := r.harness[name]
		if h.MatchesModel(model) {
			return h, h.ExpandAlias(model), nil
		}
	}

	if r.fallback != "" {
		if h, ok := r.harness[r.fallback]; ok {
			return h, h.ExpandAlias(model), nil
		}
	}

	return nil, "", fmt.Errorf("harness: no provider registered for model %q", model)
}

// Named returns the harness registered under name, for callers (the
// orchestrator, alias resolution) that already know which one they want.
func (r *Router) Named(name string) (Harness, bool) {
	h, ok := r.harness[name]
	return h, ok
}

// All returns a copy of every registered harness keyed by name; as a map it
// carries no order — used by pkg/aliases.Resolve to query ListModels per
// harness.
func (r *Router) All() map[string]Harness {
	out := make(map[string]Harness, len(r.harness))
	for name, h := range r.harness {
		out[name] = h
	}
	return out
}
