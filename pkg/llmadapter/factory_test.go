package llmadapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narrator/pkg/proto"
)

func TestNew_DispatchesByProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		want     any
	}{
		{"anthropic", ProviderAnthropic, &AnthropicClient{}},
		{"openai", ProviderOpenAI, &OpenAIClient{}},
		{"gemini", ProviderGemini, &GeminiClient{}},
		{"default empty provider falls back to anthropic", "", &AnthropicClient{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(proto.LLMConfig{Provider: tt.provider, APIKey: "key"})
			require.NoError(t, err)
			assert.IsType(t, tt.want, client)
		})
	}
}

func TestNew_OllamaNeedsNoAPIKey(t *testing.T) {
	client, err := New(proto.LLMConfig{Provider: ProviderOllama})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, client)
}

func TestNew_UnknownProviderWithKeyErrors(t *testing.T) {
	_, err := New(proto.LLMConfig{Provider: "not-a-real-provider", APIKey: "key"})
	require.Error(t, err)
}

func TestNew_MissingAPIKeyAndNoSecretErrors(t *testing.T) {
	_, err := New(proto.LLMConfig{Provider: ProviderAnthropic})
	require.Error(t, err)
}
