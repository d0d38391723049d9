// Package builtin implements the built-in tool set every agent loop starts
// with: read, write, patch, list/glob, fetch, and shell. task is added by
// the orchestrator package once a child agent loop exists to back it.
package builtin

import (
	"coreagent/pkg/subprocess"
	"coreagent/pkg/tool"
)

// Options configures the optional, environment-specific built-ins.
type Options struct {
	// Summarizer backs fetch's optional summarize argument. Nil disables
	// summarization; fetch still strips and returns raw text.
	Summarizer   Summarizer
	SummaryModel string
	// ShellInterrupt, if set, gates shell's LLM-interrupt trigger.
	ShellInterrupt *subprocess.Interrupt
}

// RegisterAll registers every built-in tool except task into r.
func RegisterAll(r *tool.Registry, opts Options) {
	r.Register(NewReadTool())
	r.Register(NewWriteTool())
	r.Register(NewPatchTool())
	r.Register(NewListTool())
	r.Register(NewFetchTool(opts.Summarizer, opts.SummaryModel))
	r.Register(NewShellTool(opts.ShellInterrupt))
}
