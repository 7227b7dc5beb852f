package scenedrafting

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitize_StripsWordCountAnnotation(t *testing.T) {
	in := "She closed the door behind her.\n\n[Word count: 1532 words]"
	out := Sanitize(in)
	require.NotContains(t, out, "Word count")
	require.Contains(t, out, "She closed the door behind her.")
}

func TestSanitize_CollapsesTripleBlankLines(t *testing.T) {
	in := "Paragraph one.\n\n\n\nParagraph two."
	out := Sanitize(in)
	require.Equal(t, "Paragraph one.\n\nParagraph two.", out)
}
