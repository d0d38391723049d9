package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"coreagent/pkg/subprocess"
	"coreagent/pkg/tool"
)

type shellArgs struct {
	Command string `json:"command"`
	Timeout int    `json:"timeout"` // seconds
	PTY     bool   `json:"pty"`
}

type shellOutcome struct {
	ExitCode    int    `json:"exit_code"`
	Output      string `json:"output"`
	TimedOut    bool   `json:"timed_out,omitempty"`
	Cancelled   bool   `json:"cancelled,omitempty"`
	Interrupted bool   `json:"interrupted,omitempty"`
	PTYUsed     bool   `json:"pty_used,omitempty"`
	PTYNote     string `json:"pty_note,omitempty"`
}

// NewShellTool returns the `shell` built-in, backed by the subprocess
// supervisor's line-tagged multiplexing and signal escalation.
func NewShellTool(interrupt *subprocess.Interrupt) tool.Tool {
	return tool.Tool{
		Name:        "shell",
		Description: "Execute a shell command and return its interleaved stdout/stderr and exit status.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{"type": "string", "description": "Shell command to run via /bin/sh -c"},
				"timeout": map[string]any{"type": "integer", "description": "Timeout in seconds before escalating SIGINT then SIGKILL"},
				"pty":     map[string]any{"type": "boolean", "description": "Allocate a pseudo-terminal for the command"},
			},
			"required": []string{"command"},
		},
		Handler: func(ctx context.Context, args string) (tool.Result, error) {
			return handleShell(ctx, args, interrupt)
		},
	}
}

func handleShell(ctx context.Context, args string, interrupt *subprocess.Interrupt) (tool.Result, error) {
	var a shellArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return tool.Result{}, fmt.Errorf("shell: invalid arguments: %w", err)
	}
	if a.Command == "" {
		return tool.Result{}, fmt.Errorf("shell: command is required")
	}

	spec := subprocess.Spec{
		Command:   a.Command,
		PTY:       a.PTY,
		Interrupt: interrupt,
	}
	if a.Timeout > 0 {
		spec.Timeout = time.Duration(a.Timeout) * time.Second
	}

	result, err := subprocess.Run(ctx, spec)
	if err != nil {
		return tool.Result{}, fmt.Errorf("shell: %w", err)
	}

	var sb strings.Builder
	for _, line := range result.Lines {
		sb.WriteString(string(line.Stream))
		sb.WriteString(": ")
		sb.WriteString(line.Text)
		sb.WriteByte('\n')
	}

	outcome := shellOutcome{
		ExitCode:    result.ExitCode,
		Output:      sb.String(),
		TimedOut:    result.TimedOut,
		Cancelled:   result.Cancelled,
		Interrupted: result.Interrupted,
		PTYUsed:     result.PTYUsed,
		PTYNote:     result.PTYNote,
	}
	out, err := json.Marshal(outcome)
	if err != nil {
		return tool.Result{}, err
	}

	isError := result.ExitCode != 0 && !result.TimedOut && !result.Cancelled && !result.Interrupted
	return tool.Result{Output: string(out), IsError: isError}, nil
}
