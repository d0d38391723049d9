package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"coreagent/pkg/tool"
)

type writeArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type writeOutcome struct {
	WrittenBytes int `json:"written_bytes"`
}

// NewWriteTool returns the `write` built-in: create or overwrite a file.
func NewWriteTool() tool.Tool {
	return tool.Tool{
		Name:        "write",
		Description: "Write content to a file, creating or overwriting it.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string", "description": "File path to write"},
				"content": map[string]any{"type": "string", "description": "Content to write"},
			},
			"required": []string{"path", "content"},
		},
		Handler: handleWrite,
	}
}

func handleWrite(ctx context.Context, args string) (tool.Result, error) {
	var a writeArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return tool.Result{}, fmt.Errorf("write: invalid arguments: %w", err)
	}
	if a.Path == "" {
		return tool.Result{}, fmt.Errorf("write: path is required")
	}

	if _, err := os.Stat(filepath.Dir(a.Path)); err != nil {
		return tool.Result{}, fmt.Errorf("write: %s: %w", a.Path, err)
	}
	if err := os.WriteFile(a.Path, []byte(a.Content), 0o644); err != nil {
		return tool.Result{}, fmt.Errorf("write: %s: %w", a.Path, err)
	}

	out, err := json.Marshal(writeOutcome{WrittenBytes: len(a.Content)})
	if err != nil {
		return tool.Result{}, err
	}
	return tool.Result{Output: string(out)}, nil
}
