package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"coreagent/pkg/tool"
)

type taskArgs struct {
	Kind   string   `json:"kind"`
	Prompt string   `json:"prompt"`
	Tools  []string `json:"tools,omitempty"`
}

// taskTool returns the task tool bound to node: invoking it spawns a child
// of node per §4.6 and returns the child's final text as the tool result.
// Not read-only — concurrent task calls within one assistant turn are
// serialized by the executor unless the kind is marked parallelizable.
func (o *Orchestrator) taskTool(node *Node) tool.Tool {
	return tool.Tool{
		Name:        "task",
		Description: "Delegates a sub-task to a child agent of the given kind and returns its final answer.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"kind": map[string]any{
					"type":        "string",
					"description": "agent kind: " + strings.Join(o.sortedKindNames(), ", "),
				},
				"prompt": map[string]any{
					"type":        "string",
					"description": "the task for the child agent, given as its first user message",
				},
				"tools": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "optional tool name override; defaults to the kind's permitted subset",
				},
			},
			"required": []string{"kind", "prompt"},
		},
		Capabilities: tool.Capabilities{ReadOnly: o.kinds[node.Kind].Parallelizable},
		Handler: func(ctx context.Context, args string) (tool.Result, error) {
			var in taskArgs
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return tool.Result{Output: fmt.Sprintf("task: invalid arguments: %v", err), IsError: true}, nil
			}
			if in.Kind == "" || in.Prompt == "" {
				return tool.Result{Output: "task: kind and prompt are required", IsError: true}, nil
			}
			var toolsOverride []string
			if in.Tools != nil {
				toolsOverride = in.Tools
			}
			_, text, err := o.Spawn(ctx, node, in.Kind, in.Prompt, toolsOverride)
			if err != nil {
				return tool.Result{Output: err.Error(), IsError: true}, nil
			}
			return tool.Result{Output: text}, nil
		},
	}
}

func (o *Orchestrator) sortedKindNames() []string {
	names := make([]string, 0, len(o.kinds))
	for name := range o.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
