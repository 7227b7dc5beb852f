package llmadapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narrator/pkg/agentrunner"
)

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestClassifyGeneric(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want agentrunner.ErrorKind
	}{
		{"deadline exceeded", context.DeadlineExceeded, agentrunner.ErrorNetwork},
		{"context canceled", context.Canceled, agentrunner.ErrorNetwork},
		{"429 status code", &testError{"received status code: 429 from provider"}, agentrunner.ErrorRateLimit},
		{"503 status code", &testError{"status: 503 service unavailable"}, agentrunner.ErrorProvider5xx},
		{"rate limit keyword", &testError{"you have hit the rate limit"}, agentrunner.ErrorRateLimit},
		{"quota keyword", &testError{"quota exceeded for this month"}, agentrunner.ErrorRateLimit},
		{"connection refused", &testError{"dial tcp: connection refused"}, agentrunner.ErrorNetwork},
		{"timeout", &testError{"request timeout exceeded"}, agentrunner.ErrorNetwork},
		{"server error", &testError{"internal server error"}, agentrunner.ErrorProvider5xx},
		{"unrecognized", &testError{"something unexpected happened"}, agentrunner.ErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyGeneric(tt.err))
		})
	}
}

func TestExtractStatusCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"status code marker", "received status code: 429 from provider", 429},
		{"status marker", "status: 500 internal error", 500},
		{"http marker", "http 503 from upstream", 503},
		{"no marker", "connection reset by peer", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractStatusCode(tt.in))
		})
	}
}

func TestClassifiedError_WrapsAndReportsKind(t *testing.T) {
	inner := errors.New("boom")
	err := classifiedf(agentrunner.ErrorRateLimit, inner, "provider: %s failed", "call")

	var ce *classifiedError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, agentrunner.ErrorRateLimit, ce.ErrorKind())
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "provider: call failed")
	assert.Contains(t, err.Error(), "boom")
}

func TestClassifiedError_NilInnerOmitsSuffix(t *testing.T) {
	err := classifiedf(agentrunner.ErrorValidation, nil, "provider: bad input")
	assert.Equal(t, "provider: bad input", err.Error())
}
