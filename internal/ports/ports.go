// Package ports defines the external collaborators the orchestrator core
// consumes only through interfaces: the LLM call layer, vector memory,
// relational artifact storage, and prompt template retrieval. Concrete
// adapters live in pkg/llmadapter, pkg/vectoradapter, pkg/artifactstore, and
// pkg/promptstore; nothing in this package imports any of them.
package ports

import "context"

// Message is one turn in an LLM conversation.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// CompleteOptions configures a single LLMClient.Complete call.
type CompleteOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// Usage reports token accounting for a completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMClient is the language-model call layer. AgentRunner and
// SceneDraftingEngine depend on this interface, never on a concrete
// provider SDK.
type LLMClient interface {
	Complete(ctx context.Context, messages []Message, opts CompleteOptions) (text string, usage Usage, err error)
}

// VectorRecord is one stored/retrieved vector-memory payload.
type VectorRecord struct {
	ID      string
	Kind    string
	Payload map[string]any
	Score   float64 // similarity, set only on Search results
}

// VectorStore is the vector-memory collaborator used for semantic context
// retrieval during scene drafting.
type VectorStore interface {
	Store(ctx context.Context, projectID, kind string, payload map[string]any) error
	Search(ctx context.Context, projectID, kind, query string, limit int) ([]VectorRecord, error)
	Scroll(ctx context.Context, projectID, kind string, limit int) ([]VectorRecord, error)
}

// Artifacts is the relational store for run artifacts, keyed by
// (runId, artifactType).
type Artifacts interface {
	Save(ctx context.Context, runID, artifactType string, body any) error
	Load(ctx context.Context, runID, artifactType string, out any) (bool, error)
}

// PromptStore compiles named prompt templates against a variable map,
// falling back to a caller-supplied baked-in template when the named
// template is not found in the registry (or the store itself errors).
type PromptStore interface {
	Compile(ctx context.Context, name string, vars map[string]any, fallback string) (string, error)
}
