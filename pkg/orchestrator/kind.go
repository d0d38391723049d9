package orchestrator

// KindProfile describes one named agent kind (§4.6): the role section
// appended to its system prompt and the tool subset it is permitted to use.
type KindProfile struct {
	// KindInstructions is rendered as the per-kind role/constraints section
	// of the child's system prompt (§4.7).
	KindInstructions string

	// Tools names the tool subset this kind may use. nil means "inherit the
	// parent's full tool set", including task itself (further delegation
	// allowed). A non-nil, possibly empty, slice is used as-is.
	Tools []string

	// Parallelizable marks a kind whose task invocations the tool executor
	// may run concurrently with sibling task calls in the same batch,
	// within the usual concurrency cap.
	Parallelizable bool
}

// DefaultKinds returns the built-in kind set: researcher (read-only,
// no further delegation), troubleshooter (read-only plus shell, for
// diagnosis), and orchestrator (unrestricted, may itself delegate).
func DefaultKinds() map[string]KindProfile {
	return map[string]KindProfile{
		"researcher": {
			KindInstructions: `You are a research subagent. Investigate the given question using the ` +
				`tools available and report findings as plain text. You cannot modify files or ` +
				`run commands; gather information and summarize it precisely. Do not ask the user ` +
				`for clarification — make reasonable assumptions and state them.`,
			Tools: []string{"read", "list", "fetch"},
		},
		"troubleshooter": {
			KindInstructions: `You are a troubleshooting subagent. Diagnose the described problem by ` +
				`reading relevant files and running read-only or diagnostic commands. Report your ` +
				`root-cause analysis and a recommended fix as plain text; do not edit files yourself.`,
			Tools: []string{"read", "list", "fetch", "shell"},
		},
		"orchestrator": {
			KindInstructions: `You are a delegating subagent. Break the given task into smaller pieces ` +
				`and use task to hand each piece to a researcher or troubleshooter subagent as ` +
				`appropriate, then synthesize their answers into one final report.`,
			Tools:          nil,
			Parallelizable: true,
		},
	}
}
