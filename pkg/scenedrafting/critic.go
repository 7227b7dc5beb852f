package scenedrafting

import (
	"strings"

	"narrator/pkg/proto"
)

// stopwords used by the scope-adherence heuristic; kept deliberately small
// since this is a lightweight heuristic, not an NLP pipeline.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"of": true, "to": true, "in": true, "on": true, "at": true, "for": true,
	"with": true, "is": true, "was": true, "are": true, "were": true,
	"it": true, "as": true, "by": true, "that": true, "this": true,
}

// IsApproved implements §4.7.3's disjunctive approval rule: a critique is
// approved iff revisionNeeded is explicitly false, OR approved is true, OR
// the numeric score is ≥ 8.
func IsApproved(c proto.Critique) bool {
	if !c.RevisionNeeded {
		return true
	}
	if c.Approved {
		return true
	}
	return c.Score >= 8
}

// RequiresRevision implements §4.7.3's unconditional-revision triggers: a
// critique demands revision regardless of IsApproved when word-count
// compliance or scope adherence explicitly failed, the score is low, or any
// issues/revisionRequests were raised.
func RequiresRevision(c proto.Critique) bool {
	if c.WordCountCompliance != nil && !*c.WordCountCompliance {
		return true
	}
	if c.ScopeAdherence != nil && !*c.ScopeAdherence {
		return true
	}
	if c.Score < 7 {
		return true
	}
	if c.Score < 8 && len(c.Issues) > 0 {
		return true
	}
	if len(c.Issues) > 0 || len(c.RevisionRequests) > 0 {
		return true
	}
	return false
}

// WordCountCompliant reports the §4.7.3 word-count pass threshold: actual
// word count must be at least 70% of target.
func WordCountCompliant(actual, target int) bool {
	if target <= 0 {
		return true
	}
	return float64(actual)/float64(target) >= 0.7
}

// ScopeAdherent implements the §4.7.3 server-side heuristic: the last 500
// characters of content must mention at least one non-stopword from the
// scene hook's first three meaningful words, and must not mention any
// declared futureEvents.
func ScopeAdherent(content, hook string, futureEvents []string) bool {
	tail := lastNChars(content, 500)
	lowerTail := strings.ToLower(tail)

	hookWords := meaningfulWords(hook, 3)
	if len(hookWords) > 0 {
		mentioned := false
		for _, w := range hookWords {
			if strings.Contains(lowerTail, strings.ToLower(w)) {
				mentioned = true
				break
			}
		}
		if !mentioned {
			return false
		}
	}

	for _, event := range futureEvents {
		event = strings.TrimSpace(event)
		if event == "" {
			continue
		}
		if strings.Contains(lowerTail, strings.ToLower(event)) {
			return false
		}
	}

	return true
}

// meaningfulWords returns up to n non-stopword tokens from s, in order.
func meaningfulWords(s string, n int) []string {
	out := make([]string, 0, n)
	for _, w := range strings.Fields(s) {
		cleaned := strings.Trim(strings.ToLower(w), ".,;:!?\"'")
		if cleaned == "" || stopwords[cleaned] {
			continue
		}
		out = append(out, cleaned)
		if len(out) == n {
			break
		}
	}
	return out
}

func lastNChars(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
