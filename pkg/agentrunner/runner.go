// Package agentrunner implements AgentRunner: the uniform wrapper every
// phase and scene step uses to invoke an "agent" — compile a prompt, call
// the LLM, and record success/failure metrics. Normalization of the raw
// response is the caller's job (pkg/normalizer); AgentRunner's contract
// ends at returning the raw completion text and usage.
package agentrunner

import (
	"context"
	"strings"
	"time"

	"narrator/internal/ports"
	"narrator/pkg/agentrunner/metrics"
	"narrator/pkg/logx"
)

// DefaultTemperature is used when opts.Temperature is the zero value.
const DefaultTemperature = 0.7

// Options configures one Run call.
type Options struct {
	Phase       string
	Vars        map[string]any
	Fallback    string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Output is what AgentRunner hands back to its caller; normalization into
// a canonical shape happens downstream.
type Output struct {
	Content   string
	Usage     ports.Usage
	LatencyMs int64
}

// Runner wires a PromptStore, an LLMClient, and a metrics Recorder behind
// the single Run entry point.
type Runner struct {
	prompts  ports.PromptStore
	llm      ports.LLMClient
	recorder metrics.Recorder
	logger   *logx.Logger
}

// New returns a Runner. recorder may be metrics.Nop() to disable metrics.
func New(prompts ports.PromptStore, llm ports.LLMClient, recorder metrics.Recorder) *Runner {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &Runner{
		prompts:  prompts,
		llm:      llm,
		recorder: recorder,
		logger:   logx.NewLogger("agentrunner"),
	}
}

// jsonModeMarkers are the literal substrings in a compiled prompt that
// request JSON response mode from the provider.
var jsonModeMarkers = []string{"Output as JSON", "Output JSON"}

// Run compiles agentID's prompt, calls the LLM, and records the outcome.
// On an ErrorRateLimit failure it tries again, making up to MaxRetryAttempts
// attempts in all with exponential backoff between them; any other failure
// propagates immediately.
func (r *Runner) Run(ctx context.Context, agentID string, opts Options) (Output, error) {
	prompt, err := r.prompts.Compile(ctx, agentID, opts.Vars, opts.Fallback)
	if err != nil {
		return Output{}, &Error{Kind: ErrorUnknown, AgentID: agentID, Phase: opts.Phase, Err: err}
	}

	temperature := opts.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	promptTokens := estimateTokens(prompt)
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = completionCeiling(promptTokens)
	}

	completeOpts := ports.CompleteOptions{
		Model:       opts.Model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		JSONMode:    requestsJSON(prompt),
	}
	messages := []ports.Message{{Role: "user", Content: prompt}}

	var lastErr error
	for attempt := 1; attempt <= MaxRetryAttempts; attempt++ {
		start := time.Now()
		text, usage, callErr := r.llm.Complete(ctx, messages, completeOpts)
		duration := time.Since(start)

		if callErr == nil {
			reportedUsage := metrics.Usage{PromptTokens: usage.PromptTokens, CompletionTokens: usage.CompletionTokens}
			if reportedUsage.PromptTokens == 0 && reportedUsage.CompletionTokens == 0 {
				// Some providers omit usage on certain responses; estimate
				// rather than record a metrics gap.
				reportedUsage = metrics.Usage{PromptTokens: promptTokens, CompletionTokens: estimateTokens(text)}
			}
			r.recorder.ObserveSuccess(agentID, opts.Phase, duration, reportedUsage)
			return Output{Content: text, Usage: usage, LatencyMs: duration.Milliseconds()}, nil
		}

		kind := classify(callErr)
		r.recorder.ObserveFailure(agentID, opts.Phase, kind.String(), duration)
		runnerErr := &Error{Kind: kind, AgentID: agentID, Phase: opts.Phase, Err: callErr}
		lastErr = runnerErr

		if !runnerErr.IsRetryable() || attempt == MaxRetryAttempts {
			break
		}

		delay := DefaultRetryConfig.Delay(attempt)
		r.logger.Warn("agent %s (%s) rate limited, retrying in %s (attempt %d/%d)", agentID, opts.Phase, delay, attempt, MaxRetryAttempts)
		select {
		case <-ctx.Done():
			return Output{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	return Output{}, lastErr
}

func requestsJSON(prompt string) bool {
	for _, marker := range jsonModeMarkers {
		if strings.Contains(prompt, marker) {
			return true
		}
	}
	return false
}
