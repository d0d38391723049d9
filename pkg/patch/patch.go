// Package patch implements context-based file patching (§4.4): hunks are
// matched by searching for their "before" text rather than by line number,
// rejected outright on ambiguous matches, and applied atomically.
package patch

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Hunk is one context-based edit: replace the first unambiguous occurrence
// of Before with After.
type Hunk struct {
	Before string
	After  string
}

// Rejection explains why a hunk was not applied.
type Rejection struct {
	Index      int
	Reason     string
	MatchCount int
}

// Result is the outcome of applying a set of hunks to one file.
type Result struct {
	Applied  int
	Rejected []Rejection
}

// ErrBinaryFile is returned when the target file is refused as binary.
var ErrBinaryFile = fmt.Errorf("patch: refusing to patch a binary file")

// Apply reads path, applies hunks in order per §4.4's algorithm, and writes
// the result atomically (temp file in the same directory, fsync, rename).
// A file is either fully patched (every accepted hunk applied) or left
// untouched; rejected hunks never partially apply.
func Apply(path string, hunks []Hunk) (Result, error) {
	original, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("patch: read %s: %w", path, err)
	}
	if looksBinary(original) {
		return Result{}, ErrBinaryFile
	}

	updated, result, err := applyHunks(string(original), hunks)
	if err != nil {
		return Result{}, err
	}
	if result.Applied == 0 {
		return result, nil
	}

	if err := atomicWrite(path, []byte(updated)); err != nil {
		return Result{}, fmt.Errorf("patch: write %s: %w", path, err)
	}
	return result, nil
}

// applyHunks runs the matching algorithm against in-memory content, used
// directly by tests so matching logic can be verified without touching
// disk.
func applyHunks(content string, hunks []Hunk) (string, Result, error) {
	var result Result
	searchFrom := 0

	for i, h := range hunks {
		if h.Before == "" {
			result.Rejected = append(result.Rejected, Rejection{Index: i, Reason: "empty before text"})
			continue
		}

		start, end, matchCount, err := locate(content, h.Before, searchFrom)
		if err != nil {
			return "", Result{}, err
		}

		switch {
		case matchCount == 0:
			result.Rejected = append(result.Rejected, Rejection{Index: i, Reason: "no match found"})
			continue
		case matchCount > 1:
			result.Rejected = append(result.Rejected, Rejection{
				Index: i, Reason: "ambiguous match", MatchCount: matchCount,
			})
			continue
		}

		content = content[:start] + h.After + content[end:]
		searchFrom = start + len(h.After)
		result.Applied++
	}

	return content, result, nil
}

// locate finds the span of before within content at or after searchFrom.
// It tries an exact match first; if none exists, it retries with
// whitespace-normalized comparison while still reporting the original byte
// offsets. matchCount counts occurrences across the searched region so
// ambiguity can be detected even when the exact pass found nothing.
func locate(content, before string, searchFrom int) (start, end, matchCount int, err error) {
	region := content[searchFrom:]

	if count := strings.Count(region, before); count > 0 {
		first := strings.Index(region, before)
		return searchFrom + first, searchFrom + first + len(before), count, nil
	}

	return locateNormalized(region, before, searchFrom)
}

// locateNormalized retries the search collapsing runs of whitespace in both
// the needle and a sliding window of the haystack, preserving the original
// file bytes at the match site.
func locateNormalized(region, before string, offset int) (start, end, matchCount int, err error) {
	normBefore := normalizeWhitespace(before)
	if normBefore == "" {
		return 0, 0, 0, nil
	}

	var matches []int
	for i := 0; i < len(region); i++ {
		// Try progressively longer windows anchored at i until the
		// normalized comparison either matches or clearly diverges length-wise.
		maxLen := len(before) * 2
		if maxLen > len(region)-i {
			maxLen = len(region) - i
		}
		for l := len(before); l <= maxLen; l++ {
			window := region[i : i+l]
			if normalizeWhitespace(window) == normBefore {
				matches = append(matches, i)
				break
			}
		}
	}

	if len(matches) == 0 {
		return 0, 0, 0, nil
	}

	// Find the matching window length again for the first match to compute end.
	first := matches[0]
	maxLen := len(before) * 2
	if maxLen > len(region)-first {
		maxLen = len(region) - first
	}
	matchEnd := first
	for l := len(before); l <= maxLen; l++ {
		window := region[first : first+l]
		if normalizeWhitespace(window) == normBefore {
			matchEnd = first + l
			break
		}
	}

	return offset + first, offset + matchEnd, len(matches), nil
}

func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func looksBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	checkLen := len(data)
	if checkLen > 8000 {
		checkLen = 8000
	}
	return bytes.ContainsRune(data[:checkLen], 0)
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".patch-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	info, statErr := os.Stat(path)
	mode := os.FileMode(0o644)
	if statErr == nil {
		mode = info.Mode()
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
