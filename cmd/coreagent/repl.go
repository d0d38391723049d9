package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"coreagent/pkg/orchestrator"
	"coreagent/pkg/session"
)

// runREPL is a minimal line-oriented front end standing in for the full
// terminal UI: one line in, either a verb command or a user turn. Verb
// commands start with ":" and are idempotent operations on sess.
func runREPL(ctx context.Context, sess *session.Session, root *orchestrator.Node, providers []string) error {
	fmt.Printf("coreagent interactive session %s (model %s). Type :help for commands, :quit to exit.\n",
		sess.Document().ID, sess.Document().Model)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			if quit, err := runVerb(sess, root, providers, line); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			} else if quit {
				return nil
			}
			continue
		}

		result, err := root.Loop.Submit(ctx, line)
		if result != nil {
			sess.RecordUsage(result)
			fmt.Println(result.FinalText)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
	return sess.Save()
}

// runVerb dispatches one ":"-prefixed command. quit reports whether the
// REPL loop should exit.
func runVerb(sess *session.Session, root *orchestrator.Node, providers []string, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	cmd := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, cmd))

	switch cmd {
	case ":help":
		printHelp(providers)
	case ":quit", ":exit":
		if saveErr := sess.Save(); saveErr != nil {
			return true, saveErr
		}
		return true, nil
	case ":clear":
		if err := sess.Clear(); err != nil {
			return false, err
		}
		fmt.Println("conversation cleared")
	case ":model":
		if rest == "" {
			fmt.Println(root.Loop.Model())
			return false, nil
		}
		sess.SwitchModel(rest)
		fmt.Println("model set to", rest)
	case ":save":
		if err := sess.Save(); err != nil {
			return false, err
		}
		fmt.Println("saved as", sess.Document().ID)
	case ":load":
		if rest == "" {
			return false, fmt.Errorf(":load requires a session id")
		}
		if err := sess.Load(rest); err != nil {
			return false, err
		}
		fmt.Println("loaded", rest)
	case ":usage":
		usage := sess.Usage()
		fmt.Printf("prompt=%d completion=%d cached=%d cumulative=%d\n",
			usage.Prompt, usage.Completion, usage.Cached, usage.Cumulative)
	case ":compaction":
		fmt.Println("compaction now", onOff(sess.ToggleCompaction()))
	default:
		return false, fmt.Errorf("unknown command %q, try :help", cmd)
	}
	return false, nil
}

func printHelp(providers []string) {
	fmt.Println("commands:")
	fmt.Println("  :clear               clear the conversation")
	fmt.Println("  :model [name]        show or switch the model")
	fmt.Println("  :save                save the session")
	fmt.Println("  :load <id>           load a saved session")
	fmt.Println("  :usage               show cumulative token usage")
	fmt.Println("  :compaction          toggle between-turn compaction")
	fmt.Println("  :quit, :exit         save and exit")
	fmt.Println("available providers:", strings.Join(providers, ", "))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
