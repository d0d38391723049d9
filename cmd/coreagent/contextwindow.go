package main

// contextWindowFor returns a conservative token budget for compaction
// purposes, keyed by harness family rather than exact model id — precise
// per-model limits live with each provider and drift faster than this CLI
// should chase.
func contextWindowFor(harnessName string) int {
	switch harnessName {
	case "claude":
		return 200_000
	case "gemini":
		return 1_000_000
	case "openai":
		return 128_000
	default:
		return 0
	}
}
