package orchestrator

import (
	"context"
	"sync"

	"coreagent/pkg/agent"
)

// Node is one position in the agent task tree (§4.6): root is the
// user-facing session, children are spawned by the task tool. Each node
// owns its own agent.Loop and conversation; a child's conversation is never
// merged into its parent's.
type Node struct {
	ID   string
	Kind string

	Parent *Node
	Loop   *agent.Loop

	mu       sync.Mutex
	children []*Node
	cancel   context.CancelFunc
}

// Children returns the node's child task nodes in spawn order.
func (n *Node) Children() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

func (n *Node) addChild(c *Node) {
	n.mu.Lock()
	n.children = append(n.children, c)
	n.mu.Unlock()
}

// Cancel aborts this node's in-flight turn, if any, and — because every
// descendant's context is derived from this node's own cancellation scope
// at Spawn time — every running or future descendant invocation beneath it.
// Ancestors and siblings are unaffected.
func (n *Node) Cancel() {
	n.mu.Lock()
	cancel := n.cancel
	n.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	n.Loop.Cancel()
}

// Interrupt queues text for delivery to this node's agent loop at its next
// turn boundary — the §4.6 parent→child mailbox, realized directly on top
// of agent.Loop.Inject/drainInjections rather than a separate channel, since
// that mechanism already implements the same "applied only at the next
// turn boundary" ordering guarantee.
func (n *Node) Interrupt(text string) {
	n.Loop.Inject(text)
}
