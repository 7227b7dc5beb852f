package agentrunner

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// defaultContextWindow approximates the context window shared by the
// providers this core targets; it bounds the completion budget computed
// for a call that doesn't set Options.MaxTokens explicitly.
const defaultContextWindow = 200000

// defaultCompletionCeiling caps the completion budget even when the
// estimated prompt leaves more of the context window free, so a single
// agent call can't balloon in cost just because its prompt was short.
const defaultCompletionCeiling = 4096

// minCompletionBudget is the floor completionCeiling ever returns, even for
// a prompt estimated to already fill the context window.
const minCompletionBudget = 256

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

func sharedCodec() tokenizer.Codec {
	codecOnce.Do(func() {
		c, err := tokenizer.ForModel(tokenizer.GPT4)
		if err == nil {
			codec = c
		}
	})
	return codec
}

// estimateTokens approximates text's token count with the GPT-4 encoding —
// close enough across providers for budgeting and metrics purposes (§2's
// "AgentRunner estimates prompt/response token counts"). A codec that
// failed to load, or a counting error, falls back to a 4-chars-per-token
// approximation.
func estimateTokens(text string) int {
	c := sharedCodec()
	if c == nil {
		return len(text) / 4
	}
	count, err := c.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// completionCeiling picks a MaxTokens budget for a call that left
// Options.MaxTokens unset: whatever's left of defaultContextWindow after
// promptTokens, bounded to [minCompletionBudget, defaultCompletionCeiling].
func completionCeiling(promptTokens int) int {
	remaining := defaultContextWindow - promptTokens
	switch {
	case remaining > defaultCompletionCeiling:
		return defaultCompletionCeiling
	case remaining < minCompletionBudget:
		return minCompletionBudget
	default:
		return remaining
	}
}
