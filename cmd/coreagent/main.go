// Command coreagent is a terminal-hosted AI assistant runtime: one agent
// loop, a built-in tool set, and optional MCP-discovered tools, driven
// either non-interactively with a single query argument or interactively
// through a line-oriented REPL.
package main

import (
	"fmt"
	"os"
)

func main() {
	root := buildRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "coreagent:", err)
	}
	os.Exit(exitCodeFor(err))
}
