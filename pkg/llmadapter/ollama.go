package llmadapter

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"narrator/internal/ports"
	"narrator/pkg/agentrunner"
)

const (
	defaultOllamaHost  = "http://localhost:11434"
	defaultOllamaModel = "llama3.1"
)

// OllamaClient wraps the Ollama API client to implement ports.LLMClient
// against a locally-running Ollama server.
type OllamaClient struct {
	client *api.Client
	model  string
}

// NewOllamaClient builds a client against hostURL (falling back to
// defaultOllamaHost if empty or unparsable) and model (falling back to
// defaultOllamaModel if empty).
func NewOllamaClient(hostURL, model string) *OllamaClient {
	if hostURL == "" {
		hostURL = defaultOllamaHost
	}
	if model == "" {
		model = defaultOllamaModel
	}
	parsed, err := url.Parse(hostURL)
	if err != nil {
		parsed, _ = url.Parse(defaultOllamaHost)
	}
	return &OllamaClient{
		client: api.NewClient(parsed, http.DefaultClient),
		model:  model,
	}
}

// Complete implements ports.LLMClient via Ollama's non-streaming chat
// endpoint.
func (c *OllamaClient) Complete(ctx context.Context, messages []ports.Message, opts ports.CompleteOptions) (string, ports.Usage, error) {
	if len(messages) == 0 {
		return "", ports.Usage{}, classifiedf(agentrunner.ErrorValidation, nil, "ollama: message list cannot be empty")
	}

	chatMessages := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, api.Message{Role: m.Role, Content: m.Content})
	}

	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}
	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: chatMessages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": opts.Temperature,
			"num_predict": opts.MaxTokens,
		},
	}

	var resp api.ChatResponse
	err := c.client.Chat(ctx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	if err != nil {
		return "", ports.Usage{}, classifiedf(classifyOllamaError(err), err, "ollama: chat request failed")
	}
	if resp.Message.Content == "" {
		return "", ports.Usage{}, classifiedf(agentrunner.ErrorValidation, nil, "ollama: empty response")
	}

	usage := ports.Usage{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}

	return resp.Message.Content, usage, nil
}

// classifyOllamaError covers the local-runtime failure modes a hosted-API
// classifier wouldn't see (connection refused to a dev box, an unpulled
// model) before falling back to the shared heuristics.
func classifyOllamaError(err error) agentrunner.ErrorKind {
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "connection refused"):
		return agentrunner.ErrorNetwork
	case strings.Contains(errStr, "model") && strings.Contains(errStr, "not found"):
		return agentrunner.ErrorValidation
	default:
		return classifyGeneric(err)
	}
}
