package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"coreagent/pkg/patch"
	"coreagent/pkg/tool"
)

type patchArgs struct {
	Path  string `json:"path"`
	Hunks []struct {
		Before string `json:"before"`
		After  string `json:"after"`
	} `json:"hunks"`
}

type patchOutcome struct {
	Applied  int             `json:"applied"`
	Rejected []patch.Rejection `json:"rejected,omitempty"`
}

// NewPatchTool returns the `patch` built-in, a thin wrapper over the
// context-based patch engine.
func NewPatchTool() tool.Tool {
	return tool.Tool{
		Name:        "patch",
		Description: "Apply context-based hunks to a file. Each hunk replaces the first unambiguous occurrence of its before text.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "File path to patch"},
				"hunks": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"before": map[string]any{"type": "string"},
							"after":  map[string]any{"type": "string"},
						},
						"required": []string{"before", "after"},
					},
				},
			},
			"required": []string{"path", "hunks"},
		},
		Handler: handlePatch,
	}
}

func handlePatch(ctx context.Context, args string) (tool.Result, error) {
	var a patchArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return tool.Result{}, fmt.Errorf("patch: invalid arguments: %w", err)
	}
	if a.Path == "" {
		return tool.Result{}, fmt.Errorf("patch: path is required")
	}

	hunks := make([]patch.Hunk, len(a.Hunks))
	for i, h := range a.Hunks {
		hunks[i] = patch.Hunk{Before: h.Before, After: h.After}
	}

	result, err := patch.Apply(a.Path, hunks)
	if err != nil {
		if err == patch.ErrBinaryFile {
			return tool.Result{Output: fmt.Sprintf("refused: %s appears to be a binary file", a.Path), IsError: true}, nil
		}
		return tool.Result{}, err
	}

	out, err := json.Marshal(patchOutcome{Applied: result.Applied, Rejected: result.Rejected})
	if err != nil {
		return tool.Result{}, err
	}
	return tool.Result{Output: string(out)}, nil
}
