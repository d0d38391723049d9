package subprocess

import (
	"context"
	"testing"
	"time"
)

func TestRun_CapturesStdoutLines(t *testing.T) {
	result, err := Run(context.Background(), Spec{Command: "echo one; echo two"})
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", result.ExitCode)
	}
	var texts []string
	for _, l := range result.Lines {
		texts = append(texts, l.Text)
	}
	if len(texts) != 2 || texts[0] != "one" || texts[1] != "two" {
		t.Errorf("unexpected lines: %v", texts)
	}
}

func TestRun_TagsStdoutAndStderr(t *testing.T) {
	result, err := Run(context.Background(), Spec{Command: "echo out 1>&1; echo err 1>&2"})
	if err != nil {
		t.Fatal(err)
	}
	var streams []Stream
	for _, l := range result.Lines {
		streams = append(streams, l.Stream)
	}
	sawStdout, sawStderr := false, false
	for _, s := range streams {
		if s == Stdout {
			sawStdout = true
		}
		if s == Stderr {
			sawStderr = true
		}
	}
	if !sawStdout || !sawStderr {
		t.Errorf("expected both streams represented, got %v", streams)
	}
}

func TestRun_NonZeroExitCode(t *testing.T) {
	result, err := Run(context.Background(), Spec{Command: "exit 3"})
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", result.ExitCode)
	}
}

func TestRun_TimeoutEscalates(t *testing.T) {
	result, err := Run(context.Background(), Spec{
		Command:     "sleep 30",
		Timeout:     50 * time.Millisecond,
		GracePeriod: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.TimedOut {
		t.Error("expected TimedOut to be set")
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	result, err := Run(ctx, Spec{Command: "sleep 30", GracePeriod: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Cancelled {
		t.Error("expected Cancelled to be set")
	}
}

func TestRun_OnLineCallback(t *testing.T) {
	var seen []string
	_, err := Run(context.Background(), Spec{
		Command: "echo a; echo b; echo c",
		OnLine:  func(l Line) { seen = append(seen, l.Text) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 callback invocations, got %d: %v", len(seen), seen)
	}
}

func TestRun_MissingCommandRejected(t *testing.T) {
	if _, err := Run(context.Background(), Spec{}); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestRun_LLMGatedInterruptFires(t *testing.T) {
	result, err := Run(context.Background(), Spec{
		Command: "for i in $(seq 1 20); do echo line$i; done; sleep 30",
		Interrupt: &Interrupt{
			Threshold: 5,
			Classify:  LineCountClassifier(5),
		},
		GracePeriod: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Interrupted {
		t.Error("expected Interrupted to be set once the line-count threshold was exceeded")
	}
}

func TestRun_PTYRequestDegradesOrSucceeds(t *testing.T) {
	result, err := Run(context.Background(), Spec{Command: "echo hi", PTY: true})
	if err != nil {
		t.Fatal(err)
	}
	if !result.PTYRequested {
		t.Error("expected PTYRequested to be recorded")
	}
	if !result.PTYUsed && result.PTYNote == "" {
		t.Error("expected either PTYUsed or an explanatory PTYNote when pty allocation fails")
	}
}

func TestLineCountClassifier(t *testing.T) {
	classify := LineCountClassifier(3)
	lines := []Line{{Text: "a"}, {Text: "b"}}
	stop, err := classify(context.Background(), lines)
	if err != nil {
		t.Fatal(err)
	}
	if stop {
		t.Error("expected no stop below threshold")
	}
	lines = append(lines, Line{Text: "c"}, Line{Text: "d"})
	stop, err = classify(context.Background(), lines)
	if err != nil {
		t.Fatal(err)
	}
	if !stop {
		t.Error("expected stop above threshold")
	}
}

func TestContainsClassifier(t *testing.T) {
	classify := ContainsClassifier("FATAL")
	stop, err := classify(context.Background(), []Line{{Text: "starting up"}})
	if err != nil {
		t.Fatal(err)
	}
	if stop {
		t.Error("expected no match")
	}
	stop, err = classify(context.Background(), []Line{{Text: "FATAL: disk full"}})
	if err != nil {
		t.Fatal(err)
	}
	if !stop {
		t.Error("expected marker match to stop")
	}
}
