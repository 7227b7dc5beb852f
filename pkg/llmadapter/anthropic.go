package llmadapter

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"narrator/internal/ports"
	"narrator/pkg/agentrunner"
)

// defaultAnthropicModel is used when proto.LLMConfig.Model is empty.
const defaultAnthropicModel = "claude-sonnet-4-5"

// AnthropicClient wraps the Anthropic SDK to implement ports.LLMClient.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

// NewAnthropicClient builds a client for the given API key and model; an
// empty model falls back to defaultAnthropicModel.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicClient{
		client: anthropic.NewClient(
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(0), // AgentRunner owns the retry policy (§4.6)
		),
		model: model,
	}
}

// Complete implements ports.LLMClient. Anthropic requires system content
// out-of-band from the message list and strict user/assistant alternation;
// since every AgentRunner call sends a single user message, messages
// are split rather than merged across turns.
func (c *AnthropicClient) Complete(ctx context.Context, messages []ports.Message, opts ports.CompleteOptions) (string, ports.Usage, error) {
	var system string
	var turns []anthropic.MessageParam

	for _, m := range messages {
		switch m.Role {
		case "system":
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		case "assistant":
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(turns) == 0 {
		return "", ports.Usage{}, classifiedf(agentrunner.ErrorValidation, nil, "anthropic: at least one non-system message is required")
	}

	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		Messages:    turns,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(opts.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system, Type: "text"}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", ports.Usage{}, classifiedf(classifyGeneric(err), err, "anthropic: completion request failed")
	}
	if resp == nil || len(resp.Content) == 0 {
		return "", ports.Usage{}, classifiedf(agentrunner.ErrorValidation, nil, "anthropic: empty response")
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}

	usage := ports.Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}

	return text, usage, nil
}
