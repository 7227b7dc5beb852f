package scenedrafting

import "regexp"

// wordCountHallucinationPatterns matches model-hallucinated word-count
// annotations that must never appear in a draft's prose.
var wordCountHallucinationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[\s*word count\s*:\s*\d+\s*words?\s*\]`),
	regexp.MustCompile(`(?i)\(\s*word count\s*:\s*\d+\s*words?\s*\)`),
	regexp.MustCompile(`(?i)^\s*word count\s*:\s*\d+\s*words?\s*$`),
}

// tripleBlankLines collapses three-or-more consecutive blank lines to two.
var tripleBlankLines = regexp.MustCompile(`\n{3,}`)

// Sanitize strips model-hallucinated word-count annotations from content
// and collapses runs of three or more blank lines to a single blank line.
func Sanitize(content string) string {
	for _, pattern := range wordCountHallucinationPatterns {
		content = pattern.ReplaceAllString(content, "")
	}
	return tripleBlankLines.ReplaceAllString(content, "\n\n")
}
