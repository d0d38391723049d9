package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"coreagent/pkg/harness"
)

// buildReplayCmd wires pkg/harness.LoadLog/NewMockFromLog into the CLI as an
// offline debug path: replay one turn's JSONL log (written by
// pkg/harness.WithLogger, see --turn-log-dir / config.LoggingConfig) back
// through a Mock harness, with no provider calls, to inspect exactly what
// the model streamed.
func buildReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <turn-log.jsonl>",
		Short: "Replay a logged turn offline for debugging",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}
}

func runReplay(cmd *cobra.Command, args []string) error {
	data, err := harness.LoadLog(args[0])
	if err != nil {
		return err
	}
	if data.Turn == nil {
		return fmt.Errorf("coreagent: %s has no turn_start entry", args[0])
	}

	mock := harness.NewMockFromLog(data)
	result, err := mock.StreamAndCollect(context.Background(), data.Turn)
	if result != nil {
		fmt.Println(result.FinalText)
		if result.Usage != nil {
			fmt.Printf("usage: input=%d output=%d cached=%d\n",
				result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.CachedTokens)
		}
		for _, tc := range result.ToolCalls {
			fmt.Printf("tool call: %s(%s)\n", tc.Name, tc.Arguments)
		}
	}
	return err
}
