package scenedrafting

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func words(n int, word string) string {
	ws := make([]string, n)
	for i := range ws {
		ws[i] = word
	}
	return strings.Join(ws, " ")
}

func TestStripOverlap_ShortContinuationUnchanged(t *testing.T) {
	existing := words(60, "lighthouse")
	continuation := "too short to strip"
	require.Equal(t, continuation, StripOverlap(existing, continuation))
}

func TestStripOverlap_AnchorOnLast50Tokens(t *testing.T) {
	// existing is 49 tokens, fewer than 50, so its "last 50 tokens" anchor is
	// the whole string; continuation echoes it verbatim before the real content.
	existing := words(42, "alpha") + " the keeper lit the lamp at dusk"
	remainder := words(120, "beta")
	continuation := existing + " " + remainder

	out := StripOverlap(existing, continuation)
	require.Equal(t, remainder, out)
}

func TestStripOverlap_NoMatchReturnsUnchanged(t *testing.T) {
	existing := words(60, "alpha")
	continuation := words(150, "gamma")
	require.Equal(t, continuation, StripOverlap(existing, continuation))
}

func TestStripOverlap_FailedStripKeepsOriginal(t *testing.T) {
	existing := words(60, "alpha") + " tail phrase here now"
	// only the last four tokens of existing are echoed, so the 50-token anchor
	// is not found, no strip happens, and the continuation is kept.
	continuation := "tail phrase here now short bit " + words(99, "x")
	out := StripOverlap(existing, continuation)
	require.NotEmpty(t, out)
}
