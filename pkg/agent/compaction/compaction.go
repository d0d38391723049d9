// Package compaction implements the §4.5 history-compaction pass the agent
// loop runs between turns once cumulative prompt tokens cross a threshold:
// find the largest eligible tool_result content, summarize it with a cheap
// model, and replace it with a short marker block. User-typed text and the
// most recent N turns are never touched, and any cache-point markers that
// fall inside the rewritten prefix are dropped since they no longer cover a
// stable prefix of the conversation.
package compaction

import (
	"context"
	"fmt"
	"sort"

	"coreagent/pkg/agent/tokens"
	"coreagent/pkg/harness"
	"coreagent/pkg/message"
)

// DefaultThresholdRatio is the fraction of a model's context window that
// triggers compaction between turns.
const DefaultThresholdRatio = 0.8

// DefaultRecentTurns is the number of most-recent turns exempt from
// compaction regardless of size.
const DefaultRecentTurns = 2

// DefaultSummaryTargetChars bounds how long a replacement summary may be.
const DefaultSummaryTargetChars = 600

// SummaryPrefix tags every replaced block so a reader (or another
// compaction pass) can recognize already-summarized content.
const SummaryPrefix = "[SUMMARIZED"

// Options configures a compaction pass.
type Options struct {
	// ContextWindow is the model's total token budget. Required.
	ContextWindow int
	// ThresholdRatio overrides DefaultThresholdRatio when non-zero.
	ThresholdRatio float64
	// RecentTurns overrides DefaultRecentTurns when non-zero.
	RecentTurns int
	// SummaryTargetChars overrides DefaultSummaryTargetChars when non-zero.
	SummaryTargetChars int
	// SummaryModel is the cheap model used to produce replacement summaries.
	SummaryModel string
}

// Summarizer is the subset of harness.Harness compaction needs to produce a
// summary of oversized tool output.
type Summarizer interface {
	StreamAndCollect(ctx context.Context, turn *harness.Turn) (*harness.TurnResult, error)
}

// ShouldCompact reports whether the conversation's estimated token usage has
// crossed the compaction threshold for the given model.
func ShouldCompact(counter *tokens.Counter, msgs []message.Message, opts Options) bool {
	if opts.ContextWindow <= 0 {
		return false
	}
	ratio := opts.ThresholdRatio
	if ratio <= 0 {
		ratio = DefaultThresholdRatio
	}
	used := counter.CountConversation(msgs)
	return float64(used) >= ratio*float64(opts.ContextWindow)
}

// candidate identifies one tool_result content block eligible for
// summarization.
type candidate struct {
	msgIndex  int
	partIndex int
	blockIdx  int
	size      int
}

// Compact rewrites the largest eligible tool_result blocks in msgs into
// short summaries until the conversation drops back under the threshold or
// no eligible candidates remain. It returns the rewritten messages, the
// cache-point indices still valid against the rewritten prefix, and whether
// any rewrite happened.
func Compact(ctx context.Context, counter *tokens.Counter, summarizer Summarizer, msgs []message.Message, cachePoints []int, opts Options) ([]message.Message, []int, bool, error) {
	recent := opts.RecentTurns
	if recent <= 0 {
		recent = DefaultRecentTurns
	}
	target := opts.SummaryTargetChars
	if target <= 0 {
		target = DefaultSummaryTargetChars
	}

	cutoff := recencyCutoff(msgs, recent)
	out := make([]message.Message, len(msgs))
	copy(out, msgs)

	rewroteAny := false
	earliestRewritten := len(out)

	for ShouldCompact(counter, out, opts) {
		c := largestCandidate(out, cutoff)
		if c == nil {
			break
		}
		summary, err := summarizeBlock(ctx, summarizer, opts.SummaryModel, out[c.msgIndex].Parts[c.partIndex].Outcome[c.blockIdx].Text, target)
		if err != nil {
			return nil, nil, false, fmt.Errorf("compaction: summarize message %d: %w", c.msgIndex, err)
		}
		out[c.msgIndex] = replaceBlock(out[c.msgIndex], c.partIndex, c.blockIdx, summary)
		rewroteAny = true
		if c.msgIndex < earliestRewritten {
			earliestRewritten = c.msgIndex
		}
	}

	if !rewroteAny {
		return out, cachePoints, false, nil
	}

	var keptPoints []int
	for _, idx := range cachePoints {
		if idx < earliestRewritten {
			keptPoints = append(keptPoints, idx)
		}
	}
	return out, keptPoints, true, nil
}

// recencyCutoff returns the index of the first message belonging to the
// last recentTurns turns; messages at or after this index are exempt from
// compaction. A "turn" boundary is an assistant message.
func recencyCutoff(msgs []message.Message, recentTurns int) int {
	assistantSeen := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == message.RoleAssistant {
			assistantSeen++
			if assistantSeen > recentTurns {
				return i + 1
			}
		}
	}
	return 0
}

// largestCandidate scans messages before cutoff for the biggest eligible
// tool_result content block. Only tool_result parts are eligible, so
// user-typed text is never rewritten, and system messages are skipped;
// blocks already carrying SummaryPrefix are skipped so repeated passes don't
// re-summarize their own output.
func largestCandidate(msgs []message.Message, cutoff int) *candidate {
	var candidates []candidate
	for mi := 0; mi < cutoff && mi < len(msgs); mi++ {
		m := msgs[mi]
		if m.Role == message.RoleSystem {
			continue
		}
		for pi, p := range m.Parts {
			if p.Kind != message.PartToolResult {
				continue
			}
			for bi, block := range p.Outcome {
				if len(block.Text) == 0 || hasSummaryPrefix(block.Text) {
					continue
				}
				candidates = append(candidates, candidate{msgIndex: mi, partIndex: pi, blockIdx: bi, size: len(block.Text)})
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].size > candidates[j].size })
	return &candidates[0]
}

func hasSummaryPrefix(s string) bool {
	return len(s) >= len(SummaryPrefix) && s[:len(SummaryPrefix)] == SummaryPrefix
}

func replaceBlock(m message.Message, partIndex, blockIdx int, summary string) message.Message {
	parts := make([]message.Part, len(m.Parts))
	copy(parts, m.Parts)
	p := parts[partIndex]
	outcome := make([]message.ContentBlock, len(p.Outcome))
	copy(outcome, p.Outcome)
	outcome[blockIdx] = message.TextBlock(fmt.Sprintf("%s %d chars]: %s", SummaryPrefix, len(outcome[blockIdx].Text), summary))
	p.Outcome = outcome
	parts[partIndex] = p
	m.Parts = parts
	return m
}

func summarizeBlock(ctx context.Context, summarizer Summarizer, model, content string, targetChars int) (string, error) {
	turn := &harness.Turn{
		Model:        model,
		Instructions: fmt.Sprintf("Summarize the following tool output in at most %d characters, preserving facts a later step might need.", targetChars),
		Messages: []message.Message{
			{Role: message.RoleUser, Parts: []message.Part{message.NewText(content)}},
		},
	}
	result, err := summarizer.StreamAndCollect(ctx, turn)
	if err != nil {
		return "", err
	}
	summary := result.FinalText
	if len(summary) > targetChars {
		summary = summary[:targetChars]
	}
	return summary, nil
}
