package normalizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnwrapEnvelope(t *testing.T) {
	wrapped := map[string]any{"characters": []any{"a", "b"}}
	require.Equal(t, []any{"a", "b"}, UnwrapEnvelope(wrapped))

	// Unrecognized single key must pass through untouched.
	other := map[string]any{"notAnEnvelope": 1}
	require.Equal(t, other, UnwrapEnvelope(other))

	// Multi-key objects are never unwrapped.
	multi := map[string]any{"characters": 1, "extra": 2}
	require.Equal(t, multi, UnwrapEnvelope(multi))
}

func TestCanonicalizeFields_FirstNonEmptyWins(t *testing.T) {
	m := map[string]any{"fullName": "Mira", "characterName": "Wrong"}
	out := CanonicalizeFields(m)
	require.Equal(t, "Mira", out["name"])
}

func TestCanonicalizeFields_NeverOverwritesExistingCanonical(t *testing.T) {
	m := map[string]any{"name": "Mira", "fullName": "Someone Else"}
	out := CanonicalizeFields(m)
	require.Equal(t, "Mira", out["name"])
}

func TestNormalizeRole(t *testing.T) {
	cases := map[string]string{
		"hero":           "protagonist",
		"Main":           "protagonist",
		"main character": "protagonist",
		"villain":        "antagonist",
		"Side":           "supporting",
		"minor":          "supporting",
		"comic_relief":   "comic_relief",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeRole(in), in)
	}
}

func TestParseWordCount(t *testing.T) {
	require.Equal(t, 1900, ParseWordCount("1,900"))
	require.Equal(t, 1900, ParseWordCount("~1900 words"))
	require.Equal(t, DefaultWordCount, ParseWordCount(""))
	require.Equal(t, DefaultWordCount, ParseWordCount("none"))
	require.Equal(t, 2000, ParseWordCount(float64(2000)))
	require.Equal(t, DefaultWordCount, ParseWordCount(float64(-5)))
}

func TestNormalizeOutline_WrapsBareArray(t *testing.T) {
	raw := []any{
		map[string]any{"setting": "harbor"},
		map[string]any{"name": "The Storm", "wordCount": "1,200"},
	}
	out := NormalizeOutline(raw)
	scenes, ok := out["scenes"].([]any)
	require.True(t, ok)
	require.Len(t, scenes, 2)

	s0 := scenes[0].(map[string]any)
	require.Equal(t, 1, s0["sceneNumber"])
	require.Equal(t, "Scene 1", s0["title"])
	require.Equal(t, DefaultWordCount, s0["wordCount"])

	s1 := scenes[1].(map[string]any)
	require.Equal(t, 2, s1["sceneNumber"])
	require.Equal(t, "The Storm", s1["title"])
	require.Equal(t, 1200, s1["wordCount"])
}

func TestNormalizeOutline_UnwrapsEnvelope(t *testing.T) {
	raw := map[string]any{
		"outline": map[string]any{
			"scenes": []any{map[string]any{"sceneNumber": 5, "title": "Confrontation"}},
		},
	}
	out := NormalizeOutline(raw)
	scenes := out["scenes"].([]any)
	require.Len(t, scenes, 1)
	s0 := scenes[0].(map[string]any)
	require.Equal(t, 5, s0["sceneNumber"])
	require.Equal(t, "Confrontation", s0["title"])
}

func TestClampScore(t *testing.T) {
	require.Equal(t, 1, ClampScore(-3))
	require.Equal(t, 10, ClampScore(15))
	require.Equal(t, 7, ClampScore(7))
}
