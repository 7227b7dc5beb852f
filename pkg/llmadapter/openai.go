package llmadapter

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"narrator/internal/ports"
	"narrator/pkg/agentrunner"
)

const defaultOpenAIModel = "gpt-5"

// OpenAIClient wraps the official OpenAI SDK's Responses API to implement
// ports.LLMClient.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient builds a client for the given API key and model; an empty
// model falls back to defaultOpenAIModel.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete implements ports.LLMClient. The Responses API takes a single
// input string rather than a message list, so role-prefixed turns are
// concatenated the way every Responses-API caller in the pack does it.
func (c *OpenAIClient) Complete(ctx context.Context, messages []ports.Message, opts ports.CompleteOptions) (string, ports.Usage, error) {
	var input string
	for _, m := range messages {
		switch m.Role {
		case "system":
			input += fmt.Sprintf("System: %s\n\n", m.Content)
		case "assistant":
			input += fmt.Sprintf("Assistant: %s\n\n", m.Content)
		default:
			input += m.Content
		}
	}
	if input == "" {
		return "", ports.Usage{}, classifiedf(agentrunner.ErrorValidation, nil, "openai: at least one message is required")
	}

	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := responses.ResponseNewParams{
		Model:           model,
		MaxOutputTokens: openai.Int(int64(maxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(input)},
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return "", ports.Usage{}, classifiedf(classifyGeneric(err), err, "openai: completion request failed")
	}
	if resp == nil {
		return "", ports.Usage{}, classifiedf(agentrunner.ErrorValidation, nil, "openai: empty response")
	}

	text := resp.OutputText()
	if text == "" {
		return "", ports.Usage{}, classifiedf(agentrunner.ErrorValidation, nil, "openai: no text output in response")
	}

	usage := ports.Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}

	return text, usage, nil
}
