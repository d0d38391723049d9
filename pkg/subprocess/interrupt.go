package subprocess

import (
	"context"
	"strings"
)

// Interrupt is the LLM-gated "should I stop this command" policy (§4.3):
// a pure function of accumulated output, evaluated each time new lines
// land, against a threshold before the classifier is even consulted.
type Interrupt struct {
	// Threshold is the minimum accumulated line count before Classify is
	// consulted at all; below it, shouldStop always returns false.
	Threshold int
	// Classify decides whether the command should be interrupted given the
	// retained line snapshot. It is the only non-deterministic part of the
	// policy; tests substitute a deterministic stub.
	Classify func(ctx context.Context, lines []Line) (bool, error)
}

func (in *Interrupt) shouldStop(ctx context.Context, ring *ringBuffer) bool {
	if in == nil || in.Classify == nil {
		return false
	}
	if ring.len() < in.Threshold {
		return false
	}
	stop, err := in.Classify(ctx, ring.snapshot())
	if err != nil {
		return false
	}
	return stop
}

// LineCountClassifier is a deterministic classifier that interrupts once
// accumulated output exceeds maxLines, independent of any model call.
func LineCountClassifier(maxLines int) func(ctx context.Context, lines []Line) (bool, error) {
	return func(ctx context.Context, lines []Line) (bool, error) {
		return len(lines) > maxLines, nil
	}
}

// ContainsClassifier is a deterministic classifier that interrupts once any
// retained line contains one of the given substrings (e.g. a recognized
// fatal-error marker).
func ContainsClassifier(markers ...string) func(ctx context.Context, lines []Line) (bool, error) {
	return func(ctx context.Context, lines []Line) (bool, error) {
		for _, line := range lines {
			for _, marker := range markers {
				if marker != "" && strings.Contains(line.Text, marker) {
					return true, nil
				}
			}
		}
		return false, nil
	}
}
