// Package aliases resolves model aliases (e.g. "opus", "flash") to the
// latest concrete model id by querying each harness's ListModels.
package aliases

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"coreagent/pkg/harness"
)

// Rule defines how an alias maps to a model family. The resolver queries
// the named harness and picks the latest model whose id starts with Prefix
// (and, if set, ends with Suffix).
type Rule struct {
	Alias   string // e.g. "opus"
	Prefix  string // e.g. "claude-opus-"
	Suffix  string // e.g. "-codex"; empty means no suffix filter
	Harness string // harness name to query (e.g. "claude", "gemini")
}

// DefaultRules returns the built-in alias resolution rules.
func DefaultRules() []Rule {
	return []Rule{
		{Alias: "opus", Prefix: "claude-opus-", Harness: "claude"},
		{Alias: "sonnet", Prefix: "claude-sonnet-", Harness: "claude"},
		{Alias: "haiku", Prefix: "claude-haiku-", Harness: "claude"},

		{Alias: "gemini", Prefix: "gemini-2.5-pro", Harness: "gemini"},
		{Alias: "flash", Prefix: "gemini-2.5-flash", Harness: "gemini"},

		{Alias: "gpt", Prefix: "gpt-", Suffix: "-codex", Harness: "openai"},
	}
}

// Resolution is the result of resolving one alias.
type Resolution struct {
	Alias    string
	Previous string // old value (empty if new)
	Resolved string
	Changed  bool
	Error    string // non-empty if resolution failed
}

// Resolve queries the given harnesses and resolves each rule's alias to its
// latest matching model id. current is the existing alias map (may be nil).
// rules defaults to DefaultRules() when nil.
func Resolve(ctx context.Context, harnesses map[string]harness.Harness, current map[string]string, rules []Rule) []Resolution {
	if rules == nil {
		rules = DefaultRules()
	}
	if current == nil {
		current = map[string]string{}
	}

	modelCache := map[string][]harness.ModelInfo{}

	results := make([]Resolution, 0, len(rules))
	for _, rule := range rules {
		res := Resolution{
			Alias:    rule.Alias,
			Previous: current[rule.Alias],
		}

		h, ok := harnesses[rule.Harness]
		if !ok {
			res.Error = fmt.Sprintf("harness %q not available", rule.Harness)
			res.Resolved = res.Previous
			results = append(results, res)
			continue
		}

		models, cached := modelCache[rule.Harness]
		if !cached {
			var err error
			models, err = h.ListModels(ctx)
			if err != nil {
				res.Error = fmt.Sprintf("list models: %v", err)
				res.Resolved = res.Previous
				results = append(results, res)
				continue
			}
			modelCache[rule.Harness] = models
		}

		resolved := pickLatest(models, rule.Prefix, rule.Suffix, nil)
		if resolved == "" {
			res.Error = fmt.Sprintf("no model matching prefix %q", rule.Prefix)
			res.Resolved = res.Previous
		} else {
			res.Resolved = resolved
			res.Changed = res.Previous != resolved
		}
		results = append(results, res)
	}
	return results
}

// pickLatest finds the latest model matching prefix (and suffix, if set)
// among models. Candidates are sorted lexicographically ascending — which
// orders both version numbers and dates correctly for this project's model
// id conventions — and the last one wins. exclude lists ids to skip, for
// future use by callers that need to retry past a rejected candidate.
func pickLatest(models []harness.ModelInfo, prefix, suffix string, exclude []string) string {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	var matches []string
	for _, m := range models {
		if skip[m.ID] {
			continue
		}
		if !strings.HasPrefix(m.ID, prefix) {
			continue
		}
		if suffix != "" && !strings.HasSuffix(m.ID, suffix) {
			continue
		}
		matches = append(matches, m.ID)
	}
	if len(matches) == 0 {
		for _, m := range models {
			if !skip[m.ID] && m.ID == prefix {
				return m.ID
			}
		}
		return ""
	}
	sort.Strings(matches)
	return matches[len(matches)-1]
}

// ApplyResolutions updates aliases in place with every successful
// resolution and returns how many entries actually changed.
func ApplyResolutions(aliases map[string]string, resolutions []Resolution) int {
	changed := 0
	for _, r := range resolutions {
		if r.Error == "" && r.Resolved != "" {
			if aliases[r.Alias] != r.Resolved {
				aliases[r.Alias] = r.Resolved
				changed++
			}
		}
	}
	return changed
}
