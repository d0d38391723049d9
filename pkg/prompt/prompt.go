// Package prompt implements the §4.7 system-prompt renderer shared by every
// backend adapter: a shared header, a per-agent-kind role section, an
// enumerated tool section (name + description + JSON schema so the model
// emits syntactically correct calls), environment/permission/AGENTS.md
// context, and the turn's custom instructions — composed deterministically
// so identical inputs produce byte-identical prompts for cache reuse.
package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"coreagent/pkg/harness"
)

// Input configures one Render call. BaseInstructions and ToolUseInstructions
// carry the backend's own identity/tool-use text; everything else is
// plumbed uniformly across backends.
type Input struct {
	BaseInstructions    string
	ToolUseInstructions string

	// AgentKind names the role this prompt is rendered for (e.g. "main",
	// "subagent:researcher"); empty means no role section is added.
	AgentKind        string
	KindInstructions string

	Tools       []harness.ToolSpec
	Environment *harness.EnvironmentCtx
	Permissions *harness.PermissionsCtx
	UserContext *harness.UserContext
	// Instructions is the turn's custom/override instructions, appended
	// last so it takes precedence over the shared sections above it.
	Instructions string
}

// Render composes the full system prompt from in's sections. The result is
// a pure function of in: the same Input always renders to the same string.
func Render(in Input) (string, error) {
	var parts []string

	if in.BaseInstructions != "" {
		parts = append(parts, in.BaseInstructions)
	}

	if in.AgentKind != "" && in.KindInstructions != "" {
		parts = append(parts, fmt.Sprintf("## Role: %s\n\n%s", in.AgentKind, in.KindInstructions))
	}

	if len(in.Tools) > 0 {
		if in.ToolUseInstructions != "" {
			parts = append(parts, in.ToolUseInstructions)
		}
		parts = append(parts, renderToolSection(in.Tools))
	}

	if in.Permissions != nil {
		if perm := renderPermissionBlock(in.Permissions); perm != "" {
			parts = append(parts, perm)
		}
	}

	if in.Environment != nil {
		if envXML := renderEnvironmentContext(in.Environment); envXML != "" {
			parts = append(parts, envXML)
		}
	}

	if in.UserContext != nil && in.UserContext.AgentsMD != "" {
		dir := "."
		if in.Environment != nil && in.Environment.WorkingDir != "" {
			dir = in.Environment.WorkingDir
		}
		parts = append(parts, formatAgentsMD(dir, in.UserContext.AgentsMD))
	}

	if in.Instructions != "" {
		parts = append(parts, in.Instructions)
	}

	return strings.Join(parts, "\n\n"), nil
}

// renderToolSection lists every tool's name, description, and JSON schema,
// sorted by name for determinism (registration order is not guaranteed
// stable across a process restart once MCP tools are discovered).
func renderToolSection(tools []harness.ToolSpec) string {
	sorted := make([]harness.ToolSpec, len(tools))
	copy(sorted, tools)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var lines []string
	lines = append(lines, "## Available Tools")
	for _, t := range sorted {
		lines = append(lines, fmt.Sprintf("### %s", t.Name))
		if t.Description != "" {
			lines = append(lines, t.Description)
		}
		if len(t.Parameters) > 0 {
			// json.Marshal sorts map keys, so this is deterministic too.
			schema, err := json.MarshalIndent(t.Parameters, "", "  ")
			if err == nil {
				lines = append(lines, fmt.Sprintf("Input schema:\n```json\n%s\n```", schema))
			}
		}
	}
	return strings.Join(lines, "\n\n")
}

func renderPermissionBlock(perms *harness.PermissionsCtx) string {
	var lines []string
	lines = append(lines, "## Permissions")

	switch perms.Mode {
	case "full-auto", "never":
		lines = append(lines, "You have full autonomous execution permissions. Execute tools without asking for approval.")
	case "suggest":
		lines = append(lines, "Execute tools as needed. The user will be prompted for approval on potentially destructive operations.")
	case "ask-every-time":
		lines = append(lines, "Always describe what you plan to do and wait for user approval before executing any tool.")
	default:
		lines = append(lines, "Execute tools as needed. The user will be prompted for approval on potentially destructive operations.")
	}

	if len(perms.AllowedTools) > 0 {
		lines = append(lines, fmt.Sprintf("Auto-approved tools: %s", strings.Join(perms.AllowedTools, ", ")))
	}
	if perms.SandboxPolicy != "" {
		lines = append(lines, fmt.Sprintf("Sandbox policy: %s", perms.SandboxPolicy))
	}

	return strings.Join(lines, "\n")
}

// renderEnvironmentContext renders an XML-ish environment block. Custom
// attribute keys are sorted so the same Environment always renders
// byte-identically regardless of map iteration order.
func renderEnvironmentContext(env *harness.EnvironmentCtx) string {
	var lines []string
	lines = append(lines, "<environment_context>")
	if env.WorkingDir != "" {
		lines = append(lines, fmt.Sprintf("  <working_directory>%s</working_directory>", env.WorkingDir))
	}
	if env.Shell != "" {
		lines = append(lines, fmt.Sprintf("  <shell>%s</shell>", env.Shell))
	}
	if env.Platform != "" {
		lines = append(lines, fmt.Sprintf("  <platform>%s</platform>", env.Platform))
	}
	if env.Sandbox != "" {
		lines = append(lines, fmt.Sprintf("  <sandbox>%s</sandbox>", env.Sandbox))
	}
	keys := make([]string, 0, len(env.CustomAttrs))
	for k := range env.CustomAttrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("  <%s>%s</%s>", k, env.CustomAttrs[k], k))
	}
	lines = append(lines, "</environment_context>")
	return strings.Join(lines, "\n")
}

func formatAgentsMD(dir, content string) string {
	return fmt.Sprintf("# Project Instructions (AGENTS.md) for %s\n\n<INSTRUCTIONS>\n%s\n</INSTRUCTIONS>", dir, content)
}
