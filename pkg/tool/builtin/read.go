package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"coreagent/pkg/tool"
)

type readArgs struct {
	Path   string `json:"path"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

// NewReadTool returns the `read` built-in: file content, offset/limit bound,
// binary files refused.
func NewReadTool() tool.Tool {
	return tool.Tool{
		Name:        "read",
		Description: "Read a file's content, optionally starting at a byte offset with a byte limit.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":   map[string]any{"type": "string", "description": "File path to read"},
				"offset": map[string]any{"type": "integer", "description": "Byte offset to start from"},
				"limit":  map[string]any{"type": "integer", "description": "Maximum bytes to read"},
			},
			"required": []string{"path"},
		},
		Capabilities: tool.Capabilities{ReadOnly: true},
		Handler:      handleRead,
	}
}

func handleRead(ctx context.Context, args string) (tool.Result, error) {
	var a readArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return tool.Result{}, fmt.Errorf("read: invalid arguments: %w", err)
	}
	if a.Path == "" {
		return tool.Result{}, fmt.Errorf("read: path is required")
	}

	data, err := os.ReadFile(a.Path)
	if err != nil {
		return tool.Result{}, fmt.Errorf("read: %s: %w", a.Path, err)
	}
	if looksBinary(data) {
		return tool.Result{Output: fmt.Sprintf("refused: %s appears to be a binary file", a.Path), IsError: true}, nil
	}

	content := string(data)
	if a.Offset > 0 {
		if a.Offset >= len(content) {
			content = ""
		} else {
			content = content[a.Offset:]
		}
	}
	if a.Limit > 0 && a.Limit < len(content) {
		content = content[:a.Limit]
	}

	return tool.Result{Output: content}, nil
}

func looksBinary(data []byte) bool {
	checkLen := len(data)
	if checkLen > 8000 {
		checkLen = 8000
	}
	return strings.IndexByte(string(data[:checkLen]), 0) != -1
}
