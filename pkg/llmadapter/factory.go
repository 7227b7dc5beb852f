package llmadapter

import (
	"fmt"
	"os"
	"strings"

	"narrator/internal/ports"
	"narrator/pkg/config"
	"narrator/pkg/proto"
)

// Provider name constants accepted by proto.LLMConfig.Provider.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
)

// ollamaHostEnv names the environment variable used to locate a local Ollama
// server; Ollama has no hosted API key, so it is the one provider that reads
// its endpoint from the environment rather than cfg.APIKey.
const ollamaHostEnv = "OLLAMA_HOST"

// New builds a ports.LLMClient for cfg.Provider, resolving the API key via
// cfg.APIKey if set, else via config.GetAPIKey(cfg.Provider) (§4.9's secrets
// precedence). Ollama requires no API key and instead reads OLLAMA_HOST.
func New(cfg proto.LLMConfig) (ports.LLMClient, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = ProviderAnthropic
	}

	if provider == ProviderOllama {
		return NewOllamaClient(os.Getenv(ollamaHostEnv), cfg.Model), nil
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		resolved, err := config.GetAPIKey(provider)
		if err != nil {
			return nil, fmt.Errorf("llmadapter: %w", err)
		}
		apiKey = resolved
	}

	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, cfg.Model), nil
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey, cfg.Model), nil
	case ProviderGemini:
		return NewGeminiClient(apiKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("llmadapter: unknown provider %q", cfg.Provider)
	}
}
