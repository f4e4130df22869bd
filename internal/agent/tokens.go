package agent

import "strings"

// TokenCounter counts tokens for a text when a real tokenizer is available.
// Without one the estimate falls back to ceil(chars/4).
type TokenCounter interface {
	Count(text string) int
}

const (
	// tokenOverhead covers tool descriptions and reasoning margin on top of
	// the message text itself.
	tokenOverhead = 20000

	// maxSequenceMultiplier caps the multiplier derived from sequencing
	// keywords in the user's task.
	maxSequenceMultiplier = 5
)

// sequencingKeywords suggest a multi-stage task; each occurrence bumps the
// estimate multiplier.
var sequencingKeywords = map[string]bool{
	"then":       true,
	"after":      true,
	"afterwards": true,
	"next":       true,
	"finally":    true,
}

// EstimateTokens returns a rough cost estimate for a request. Advisory only:
// callers surface threshold crossings as warnings, never block on them.
func EstimateTokens(userText, systemPrompt string, counter TokenCounter) int {
	var base int
	if counter != nil {
		base = counter.Count(userText) + counter.Count(systemPrompt)
	} else {
		base = (len(userText) + len(systemPrompt) + 3) / 4
	}
	return (base + tokenOverhead) * sequenceMultiplier(userText)
}

func sequenceMultiplier(text string) int {
	mult := 1
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:()\"'")
		if sequencingKeywords[word] {
			mult++
		}
	}
	if mult > maxSequenceMultiplier {
		return maxSequenceMultiplier
	}
	return mult
}
