package vectoradapter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbed_DeterministicAndNormalized(t *testing.T) {
	a := embed("a weathered fishing harbor at dawn")
	b := embed("a weathered fishing harbor at dawn")
	assert.Equal(t, a, b)

	var sumSquares float64
	for _, x := range a {
		sumSquares += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-6)
}

func TestEmbed_EmptyStringIsZeroVector(t *testing.T) {
	v := embed("")
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestCosine_IdenticalVectorsScoreOne(t *testing.T) {
	v := embed("a lighthouse keeper finds a message in a bottle")
	assert.InDelta(t, 1.0, cosine(v, v), 1e-6)
}

func TestCosine_UnrelatedTextScoresLower(t *testing.T) {
	related := embed("the harbor storm rises over the docks")
	query := embed("the harbor storm gathers over the docks")
	unrelated := embed("a quiet afternoon of paperwork in a city office")

	assert.Greater(t, cosine(query, related), cosine(query, unrelated))
}

func TestPayloadText_FlattensStringsAndStringSlices(t *testing.T) {
	text := payloadText(map[string]any{
		"name":       "Mira",
		"role":       "protagonist",
		"tags":       []any{"guarded", "resourceful"},
		"wordCount":  500,
		"approved":   true,
		"characters": []any{"Mira", 7},
	})
	assert.Contains(t, text, "Mira")
	assert.Contains(t, text, "protagonist")
	assert.Contains(t, text, "guarded")
	assert.Contains(t, text, "resourceful")
}
