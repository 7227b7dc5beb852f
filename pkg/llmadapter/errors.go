// Package llmadapter implements ports.LLMClient against the real provider
// SDKs: Anthropic, OpenAI, Ollama, and Google Gemini, selected at runtime by
// proto.LLMConfig.Provider.
package llmadapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"narrator/pkg/agentrunner"
)

// classifiedError lets an adapter report its own ErrorKind, satisfying
// agentrunner.ClassifiableError so AgentRunner's retry loop can distinguish
// a rate limit from a hard failure without needing provider-specific types.
type classifiedError struct {
	kind agentrunner.ErrorKind
	msg  string
	err  error
}

func (e *classifiedError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *classifiedError) Unwrap() error { return e.err }

func (e *classifiedError) ErrorKind() agentrunner.ErrorKind { return e.kind }

func classifiedf(kind agentrunner.ErrorKind, err error, format string, args ...any) error {
	return &classifiedError{kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// classifyGeneric maps an unclassified provider error to an ErrorKind using
// the status-code-in-message and keyword heuristics every provider SDK in
// the pack relies on, since none of them expose a single canonical error
// type across context-deadline, HTTP-status, and wrapped-transport failures.
func classifyGeneric(err error) agentrunner.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return agentrunner.ErrorNetwork
	}

	errStr := strings.ToLower(err.Error())

	if status := extractStatusCode(errStr); status != 0 {
		switch {
		case status == 429:
			return agentrunner.ErrorRateLimit
		case status >= 500 && status < 600:
			return agentrunner.ErrorProvider5xx
		}
	}

	switch {
	case strings.Contains(errStr, "rate") || strings.Contains(errStr, "quota") || strings.Contains(errStr, "429"):
		return agentrunner.ErrorRateLimit
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") || strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "reset") || strings.Contains(errStr, "refused"):
		return agentrunner.ErrorNetwork
	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "server error"):
		return agentrunner.ErrorProvider5xx
	default:
		return agentrunner.ErrorUnknown
	}
}

// extractStatusCode pulls a 3-digit HTTP status out of a lowercased error
// string following "status code: "/"status: "/"http "/"code " markers, the
// pattern every provider SDK in the pack embeds its status in.
func extractStatusCode(errStr string) int {
	for _, marker := range []string{"status code: ", "status: ", "http ", "code "} {
		idx := strings.Index(errStr, marker)
		if idx == -1 {
			continue
		}
		start := idx + len(marker)
		end := start + 3
		if end > len(errStr) {
			continue
		}
		if n, err := strconv.Atoi(errStr[start:end]); err == nil {
			return n
		}
	}
	return 0
}
