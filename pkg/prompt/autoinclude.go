package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadAutoIncludes reads every file matching any of patterns (relative to
// dir) and concatenates them into one block meant to be appended to the
// agent's first user message, not the system prompt — so repeated turns
// don't re-pay the token cost of re-sending static context. Matches are
// sorted and de-duplicated so the result is deterministic regardless of
// filesystem iteration order or overlapping patterns.
func LoadAutoIncludes(dir string, patterns []string) (string, error) {
	seen := map[string]bool{}
	var matches []string
	for _, pattern := range patterns {
		full := pattern
		if !filepath.IsAbs(full) {
			full = filepath.Join(dir, pattern)
		}
		hits, err := filepath.Glob(full)
		if err != nil {
			return "", fmt.Errorf("prompt: bad auto-include pattern %q: %w", pattern, err)
		}
		for _, hit := range hits {
			if !seen[hit] {
				seen[hit] = true
				matches = append(matches, hit)
			}
		}
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)

	var blocks []string
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("prompt: auto-include %s: %w", path, err)
		}
		rel := path
		if r, err := filepath.Rel(dir, path); err == nil {
			rel = r
		}
		blocks = append(blocks, fmt.Sprintf("<file path=%q>\n%s\n</file>", rel, string(data)))
	}
	return strings.Join(blocks, "\n\n"), nil
}
