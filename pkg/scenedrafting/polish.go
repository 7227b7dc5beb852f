package scenedrafting

import (
	"regexp"
	"strings"
)

// lazyPolishPatterns catch meta-commentary a model emits instead of
// actually rewriting the scene ("the rest is the same as before").
var lazyPolishPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)the rest (is|remains) the same`),
	regexp.MustCompile(`(?i)i won'?t repeat`),
	regexp.MustCompile(`(?i)maintaining the \d[\d,]*[- ]word count`),
	regexp.MustCompile(`(?i)\[\s*rest\s*\]`),
	regexp.MustCompile(`(?i)\[\s*continues? unchanged\s*\]`),
	regexp.MustCompile(`(?i)no changes (needed|necessary) (for|to) the rest`),
}

// PolishRejectReason names why Polish Validation rejected a polish pass.
type PolishRejectReason string

const (
	PolishRejectNone        PolishRejectReason = ""
	PolishRejectLazyPolish  PolishRejectReason = "lazy_polish"
	PolishRejectTooShort    PolishRejectReason = "length_guard"
	PolishRejectEndingDrift PolishRejectReason = "ending_preservation"
)

// ValidatePolish implements §4.7.4's three checks, in the order the spec
// lists them: lazy-polish detection, length guard, ending preservation. It
// returns the first violated reason, or PolishRejectNone if the polish is
// accepted.
func ValidatePolish(prePolish, postPolish string) PolishRejectReason {
	tail := lastNChars(postPolish, 500)
	for _, pattern := range lazyPolishPatterns {
		if pattern.MatchString(tail) {
			return PolishRejectLazyPolish
		}
	}

	preWords := len(strings.Fields(prePolish))
	postWords := len(strings.Fields(postPolish))
	if preWords > 0 && float64(postWords) < 0.85*float64(preWords) {
		return PolishRejectTooShort
	}

	if endingOverlapRatio(prePolish, postPolish) < 0.30 {
		return PolishRejectEndingDrift
	}

	return PolishRejectNone
}

// endingOverlapRatio compares the last 50 words of pre and post as sets and
// returns the fraction of the smaller set found in the other.
func endingOverlapRatio(pre, post string) float64 {
	preTail := lastNWords(pre, 50)
	postTail := lastNWords(post, 50)
	if len(preTail) == 0 || len(postTail) == 0 {
		return 0
	}

	preSet := make(map[string]bool, len(preTail))
	for _, w := range preTail {
		preSet[strings.ToLower(w)] = true
	}
	postSet := make(map[string]bool, len(postTail))
	for _, w := range postTail {
		postSet[strings.ToLower(w)] = true
	}

	overlap := 0
	for w := range preSet {
		if postSet[w] {
			overlap++
		}
	}

	smaller := len(preSet)
	if len(postSet) < smaller {
		smaller = len(postSet)
	}
	if smaller == 0 {
		return 0
	}
	return float64(overlap) / float64(smaller)
}

func lastNWords(s string, n int) []string {
	words := strings.Fields(s)
	if len(words) <= n {
		return words
	}
	return words[len(words)-n:]
}
