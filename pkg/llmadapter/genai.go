package llmadapter

import (
	"context"
	"sync"

	"google.golang.org/genai"

	"narrator/internal/ports"
	"narrator/pkg/agentrunner"
)

const defaultGeminiModel = "gemini-2.5-pro"

// GeminiClient wraps the Google GenAI client to implement ports.LLMClient.
// The underlying *genai.Client requires a context to construct, so it is
// created lazily on first use rather than in the constructor.
type GeminiClient struct {
	mu     sync.Mutex
	client *genai.Client
	apiKey string
	model  string
}

// NewGeminiClient builds a client for the given API key and model; an empty
// model falls back to defaultGeminiModel.
func NewGeminiClient(apiKey, model string) *GeminiClient {
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiClient{apiKey: apiKey, model: model}
}

// Complete implements ports.LLMClient.
func (c *GeminiClient) Complete(ctx context.Context, messages []ports.Message, opts ports.CompleteOptions) (string, ports.Usage, error) {
	client, err := c.ensureClient(ctx)
	if err != nil {
		return "", ports.Usage{}, classifiedf(classifyGeneric(err), err, "gemini: client creation failed")
	}

	contents, systemInstruction, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", ports.Usage{}, classifiedf(agentrunner.ErrorValidation, err, "gemini: message conversion failed")
	}

	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}
	maxTokens := int32(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	temperature := float32(opts.Temperature)

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: maxTokens,
	}
	if systemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}}
	}

	result, err := client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", ports.Usage{}, classifiedf(classifyGeneric(err), err, "gemini: generate content failed")
	}
	if result == nil {
		return "", ports.Usage{}, classifiedf(agentrunner.ErrorValidation, nil, "gemini: empty response")
	}

	text := result.Text()
	if text == "" {
		return "", ports.Usage{}, classifiedf(agentrunner.ErrorValidation, nil, "gemini: no text output in response")
	}

	usage := ports.Usage{}
	if result.UsageMetadata != nil {
		usage.PromptTokens = int(result.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(result.UsageMetadata.TotalTokenCount)
	}

	return text, usage, nil
}

func (c *GeminiClient) ensureClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// convertMessagesToGemini converts a role-tagged message list to Gemini's
// Content format, extracting system messages into a separate instruction
// since Gemini has no "system" turn role.
func convertMessagesToGemini(messages []ports.Message) ([]*genai.Content, string, error) {
	var systemInstruction string
	var contents []*genai.Content

	for _, m := range messages {
		if m.Role == "system" {
			if systemInstruction != "" {
				systemInstruction += "\n\n"
			}
			systemInstruction += m.Content
			continue
		}

		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	return contents, systemInstruction, nil
}
