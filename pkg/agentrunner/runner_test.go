package agentrunner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"narrator/internal/ports"
	"narrator/pkg/agentrunner/metrics"
)

type fakePromptStore struct {
	compiled string
	err      error
}

func (f *fakePromptStore) Compile(_ context.Context, _ string, _ map[string]any, fallback string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.compiled != "" {
		return f.compiled, nil
	}
	return fallback, nil
}

type fakeLLMClient struct {
	calls     int
	responses []func() (string, ports.Usage, error)
}

func (f *fakeLLMClient) Complete(_ context.Context, _ []ports.Message, _ ports.CompleteOptions) (string, ports.Usage, error) {
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		return "", ports.Usage{}, errors.New("no more canned responses")
	}
	return f.responses[i]()
}

type rateLimitErr struct{}

func (rateLimitErr) Error() string       { return "429 rate limited" }
func (rateLimitErr) ErrorKind() ErrorKind { return ErrorRateLimit }

func TestRun_Success(t *testing.T) {
	prompts := &fakePromptStore{compiled: "Output as JSON please"}
	llm := &fakeLLMClient{responses: []func() (string, ports.Usage, error){
		func() (string, ports.Usage, error) {
			return `{"ok":true}`, ports.Usage{PromptTokens: 10, CompletionTokens: 5}, nil
		},
	}}
	recorder := metrics.NewInternalRecorder()
	runner := New(prompts, llm, recorder)

	out, err := runner.Run(context.Background(), "writer", Options{Phase: "drafting"})
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, out.Content)

	snap := recorder.Snapshot()
	require.Equal(t, int64(1), snap["writer"].SuccessCount)
}

func TestRun_RetriesRateLimitThenSucceeds(t *testing.T) {
	prompts := &fakePromptStore{}
	llm := &fakeLLMClient{responses: []func() (string, ports.Usage, error){
		func() (string, ports.Usage, error) { return "", ports.Usage{}, rateLimitErr{} },
		func() (string, ports.Usage, error) { return "", ports.Usage{}, rateLimitErr{} },
		func() (string, ports.Usage, error) { return "recovered", ports.Usage{}, nil },
	}}
	runner := New(prompts, llm, nil)

	start := time.Now()
	out, err := runner.Run(context.Background(), "critic", Options{Phase: "critique"})
	require.NoError(t, err)
	require.Equal(t, "recovered", out.Content)
	require.Equal(t, 3, llm.calls)
	require.GreaterOrEqual(t, time.Since(start), time.Second+2*time.Second, "second retry must wait the backed-off delay")
}

func TestRun_NonRetryableFailsImmediately(t *testing.T) {
	prompts := &fakePromptStore{}
	llm := &fakeLLMClient{responses: []func() (string, ports.Usage, error){
		func() (string, ports.Usage, error) { return "", ports.Usage{}, errors.New("malformed request") },
	}}
	runner := New(prompts, llm, nil)

	_, err := runner.Run(context.Background(), "writer", Options{Phase: "drafting"})
	require.Error(t, err)
	require.Equal(t, 1, llm.calls, "non-rate-limit failures must not be retried by AgentRunner")

	var agentErr *Error
	require.True(t, errors.As(err, &agentErr))
	require.Equal(t, ErrorUnknown, agentErr.Kind)
}

func TestRun_ExhaustsRetriesAndPropagates(t *testing.T) {
	prompts := &fakePromptStore{}
	llm := &fakeLLMClient{responses: []func() (string, ports.Usage, error){
		func() (string, ports.Usage, error) { return "", ports.Usage{}, rateLimitErr{} },
		func() (string, ports.Usage, error) { return "", ports.Usage{}, rateLimitErr{} },
		func() (string, ports.Usage, error) { return "", ports.Usage{}, rateLimitErr{} },
	}}
	runner := New(prompts, llm, nil)

	_, err := runner.Run(context.Background(), "writer", Options{Phase: "drafting"})
	require.Error(t, err)
	require.Equal(t, MaxRetryAttempts, llm.calls)
}

func TestRequestsJSON(t *testing.T) {
	require.True(t, requestsJSON("Please respond. Output as JSON with the scene."))
	require.True(t, requestsJSON("Output JSON only."))
	require.False(t, requestsJSON("Write the scene in prose."))
}
