// Package orchestrator implements §4.6's multi-agent task tree: a task tool
// that spawns child agent loops of configurable kinds, blocks the parent on
// the child's result, and propagates cancellation and interrupt messages
// down the tree.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"coreagent/pkg/agent"
	"coreagent/pkg/agent/tokens"
	"coreagent/pkg/harness"
	"coreagent/pkg/tool"
)

// Orchestrator owns the kind registry and the harness/model every task node
// runs against. One Orchestrator typically backs one interactive session.
type Orchestrator struct {
	h     harness.Harness
	model string
	kinds map[string]KindProfile

	mu    sync.Mutex
	nodes map[string]*Node
}

// New creates an Orchestrator. kinds == nil uses DefaultKinds().
func New(h harness.Harness, model string, kinds map[string]KindProfile) *Orchestrator {
	if kinds == nil {
		kinds = DefaultKinds()
	}
	return &Orchestrator{h: h, model: model, kinds: kinds, nodes: make(map[string]*Node)}
}

// NewRoot creates the tree's root node — the user-facing session — over
// registry, and registers the task tool on it so the top-level agent (and,
// transitively, any orchestrator-kind descendant) can delegate. Between-turn
// compaction stays disabled on the root loop since no counter is supplied;
// use NewRootWithCounter when cfg.Compaction is set.
func (o *Orchestrator) NewRoot(registry *tool.Registry, cfg agent.Config) *Node {
	return o.newRoot(registry, nil, cfg)
}

// NewRootWithCounter is NewRoot with a token counter, enabling between-turn
// compaction when cfg.Compaction.ContextWindow and cfg.SummaryHarness are
// also set.
func (o *Orchestrator) NewRootWithCounter(registry *tool.Registry, counter *tokens.Counter, cfg agent.Config) *Node {
	return o.newRoot(registry, counter, cfg)
}

func (o *Orchestrator) newRoot(registry *tool.Registry, counter *tokens.Counter, cfg agent.Config) *Node {
	cfg.Model = o.modelOr(cfg.Model)
	loop := agent.NewLoop(o.h, registry, counter, cfg)
	node := &Node{ID: uuid.NewString(), Kind: "root", Loop: loop}
	registry.Register(o.taskTool(node))

	o.mu.Lock()
	o.nodes[node.ID] = node
	o.mu.Unlock()
	return node
}

// Node looks up a previously created node by id.
func (o *Orchestrator) Node(id string) (*Node, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	n, ok := o.nodes[id]
	return n, ok
}

// Spawn creates a child task node under parent running the given kind,
// submits prompt as its first user message, and blocks until the child's
// loop settles Idle with final text (the task tool's result) or returns an
// error. toolNames overrides the kind's default subset when non-nil.
func (o *Orchestrator) Spawn(ctx context.Context, parent *Node, kind, prompt string, toolNames []string) (*Node, string, error) {
	profile, ok := o.kinds[kind]
	if !ok {
		return nil, "", fmt.Errorf("orchestrator: unknown agent kind %q", kind)
	}

	names := toolNames
	if names == nil {
		names = o.defaultToolNames(parent, profile)
	}
	childRegistry := tool.NewRegistry()
	for _, t := range parent.Loop.Registry().Subset(names) {
		childRegistry.Register(t)
	}

	childCtx, cancel := context.WithCancel(ctx)

	loop := agent.NewLoop(o.h, childRegistry, nil, agent.Config{
		Model:            o.model,
		AgentKind:        kind,
		KindInstructions: profile.KindInstructions,
	})
	child := &Node{ID: uuid.NewString(), Kind: kind, Parent: parent, Loop: loop, cancel: cancel}
	if containsName(names, "task") {
		childRegistry.Register(o.taskTool(child))
	}

	parent.addChild(child)
	o.mu.Lock()
	o.nodes[child.ID] = child
	o.mu.Unlock()

	result, err := loop.Submit(childCtx, prompt)
	if err != nil {
		return child, "", err
	}
	return child, result.FinalText, nil
}

// defaultToolNames computes the tool subset for a child with no explicit
// tools override: the intersection of the parent's available tools and
// what the kind permits, per §4.6. A nil profile.Tools means the kind
// inherits the parent's full set unchanged.
func (o *Orchestrator) defaultToolNames(parent *Node, profile KindProfile) []string {
	parentNames := toolNames(parent.Loop.Registry().List())
	if profile.Tools == nil {
		return parentNames
	}
	return intersect(parentNames, profile.Tools)
}

func (o *Orchestrator) modelOr(model string) string {
	if model != "" {
		return model
	}
	return o.model
}

func toolNames(tools []tool.Tool) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}

// intersect always returns a non-nil slice, even when empty, so callers
// passing the result to Registry.Subset (which treats nil as "no filter")
// never mistake a genuinely empty permitted set for an unrestricted one.
func intersect(a, b []string) []string {
	allowed := make(map[string]bool, len(b))
	for _, n := range b {
		allowed[n] = true
	}
	out := make([]string, 0, len(a))
	for _, n := range a {
		if allowed[n] {
			out = append(out, n)
		}
	}
	return out
}

func containsName(names []string, target string) bool {
	for _, n := range names {
		if n == target {
			return true
		}
	}
	return false
}
