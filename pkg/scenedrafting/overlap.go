package scenedrafting

import "strings"

// minOverlapTokens is the token-count floor below which continuation is
// assumed to be a fresh beat rather than an echo of existing content.
const minOverlapTokens = 100

// minStrippedChars is the minimum length a stripped remainder must have to
// be accepted; shorter remainders are treated as a failed strip.
const minStrippedChars = 100

// StripOverlap removes a model's echo of existing content from the start
// of continuation, per §4.7.1. It never mutates its inputs and always
// returns a non-empty result unless continuation itself was empty: a strip
// that would empty the continuation is discarded in favor of the original.
func StripOverlap(existing, continuation string) string {
	contTokens := tokenize(continuation)
	if len(contTokens) < minOverlapTokens {
		return continuation
	}

	existingTokens := tokenize(existing)

	if anchored, ok := stripByAnchor(existingTokens, continuation, 50); ok {
		return anchored
	}

	prefixLen := len(existingTokens) / 2
	if prefixLen > 100 {
		prefixLen = 100
	}
	if prefixLen > 0 && prefixAgreement(existingTokens, contTokens, prefixLen) >= 0.8 {
		if anchored, ok := stripByAnchor(existingTokens, continuation, 30); ok {
			return anchored
		}
	}

	return continuation
}

// stripByAnchor looks for the last n tokens of existing, case-insensitively,
// inside continuation, and returns the substring just after that occurrence
// provided it meets the minimum stripped length.
func stripByAnchor(existingTokens []string, continuation string, n int) (string, bool) {
	if len(existingTokens) == 0 {
		return "", false
	}
	if n > len(existingTokens) {
		n = len(existingTokens)
	}
	anchor := strings.Join(existingTokens[len(existingTokens)-n:], " ")
	if anchor == "" {
		return "", false
	}

	idx := strings.Index(strings.ToLower(continuation), strings.ToLower(anchor))
	if idx < 0 {
		return "", false
	}

	remainder := strings.TrimSpace(continuation[idx+len(anchor):])
	if len(remainder) < minStrippedChars {
		return "", false
	}
	return remainder, true
}

// prefixAgreement compares the first n tokens of each slice and returns the
// fraction that agree position-by-position.
func prefixAgreement(existingTokens, contTokens []string, n int) float64 {
	if n == 0 || len(existingTokens) < n || len(contTokens) < n {
		return 0
	}
	matches := 0
	for i := 0; i < n; i++ {
		if strings.EqualFold(existingTokens[i], contTokens[i]) {
			matches++
		}
	}
	return float64(matches) / float64(n)
}

func tokenize(s string) []string {
	return strings.Fields(s)
}
