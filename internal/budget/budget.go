// Package budget provides token budget estimation and context trimming for
// prompt assembly. Because ragserve supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose and code). This
// deliberately under-estimates token counts to leave headroom for
// model-specific overhead.
package budget

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextChars is the default character budget for the retrieved
	// context block of a generation prompt. Matches a ~1000-token context
	// allowance, small enough to fit 8k-context models with room for output.
	DefaultMaxContextChars = 4000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// TrimBlocks drops whole context blocks from the end until the combined
// character length of the kept blocks fits within maxChars. Blocks are
// ordered by retrieval relevance, so the least relevant are dropped first.
// A single oversized block is truncated rather than dropped so the prompt
// never loses its best match entirely.
func TrimBlocks(blocks []string, maxChars int) []string {
	if maxChars <= 0 || len(blocks) == 0 {
		return nil
	}

	kept := make([]string, 0, len(blocks))
	used := 0
	for _, b := range blocks {
		if used+len(b) <= maxChars {
			kept = append(kept, b)
			used += len(b)
			continue
		}
		// First block alone exceeds the budget: truncate instead of dropping.
		if len(kept) == 0 {
			kept = append(kept, b[:maxChars])
		}
		break
	}
	return kept
}
