package agentrunner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens_NonEmptyTextReturnsPositiveCount(t *testing.T) {
	assert.Greater(t, estimateTokens("the quick brown fox jumps over the lazy dog"), 0)
}

func TestEstimateTokens_EmptyTextReturnsZero(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
}

func TestCompletionCeiling_ShortPromptUsesDefaultCeiling(t *testing.T) {
	assert.Equal(t, defaultCompletionCeiling, completionCeiling(10))
}

func TestCompletionCeiling_NearFullContextFloorsAtMinimum(t *testing.T) {
	assert.Equal(t, minCompletionBudget, completionCeiling(defaultContextWindow))
}
