package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"coreagent/pkg/tool"
)

type listArgs struct {
	Pattern string `json:"pattern"`
}

// NewListTool returns the `list`/`glob` built-in: sorted matching paths,
// empty on no match.
func NewListTool() tool.Tool {
	return tool.Tool{
		Name:        "list",
		Description: "List paths matching a glob pattern, sorted lexically.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{"type": "string", "description": "Glob pattern, e.g. **/*.go"},
			},
			"required": []string{"pattern"},
		},
		Capabilities: tool.Capabilities{ReadOnly: true},
		Handler:      handleList,
	}
}

func handleList(ctx context.Context, args string) (tool.Result, error) {
	var a listArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return tool.Result{}, fmt.Errorf("list: invalid arguments: %w", err)
	}
	if a.Pattern == "" {
		return tool.Result{}, fmt.Errorf("list: pattern is required")
	}

	matches, err := filepath.Glob(a.Pattern)
	if err != nil {
		return tool.Result{}, fmt.Errorf("list: %s: %w", a.Pattern, err)
	}
	sort.Strings(matches)
	if matches == nil {
		matches = []string{}
	}

	out, err := json.Marshal(matches)
	if err != nil {
		return tool.Result{}, err
	}
	return tool.Result{Output: string(out)}, nil
}
