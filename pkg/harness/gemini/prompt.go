package gemini

import (
	"coreagent/pkg/harness"
	"coreagent/pkg/prompt"
)

// BuildSystemPrompt constructs the system instruction sent to Gemini.
// Gemini has no distinct "system" message role; the result is attached as
// GenerateContentConfig.SystemInstruction instead of a conversation turn.
func BuildSystemPrompt(turn *harness.Turn) (string, error) {
	return prompt.Render(prompt.Input{
		BaseInstructions:    baseInstructions,
		ToolUseInstructions: toolUseInstructions,
		AgentKind:           turn.AgentKind,
		KindInstructions:    turn.KindInstructions,
		Tools:               turn.Tools,
		Environment:         turn.Environment,
		Permissions:         turn.Permissions,
		UserContext:         turn.UserContext,
		Instructions:        turn.Instructions,
	})
}

const baseInstructions = `You are a helpful AI coding assistant. You are an expert software engineer.

## Guidelines

- Be direct and concise. Avoid unnecessary filler.
- When editing code, make minimal, targeted changes.
- Read files before editing to understand context.
- Validate changes by running tests or build commands when available.
- If unsure about something, say so rather than guessing.
- Use available tools to accomplish tasks directly.`

const toolUseInstructions = `## Tool Use

You have access to tools for interacting with the system. When using tools:
- Execute tools as needed to accomplish the task.
- Chain tool calls efficiently for multi-step work.
- If a tool call fails, read the error and adjust.
- For file edits, read the file first.`
