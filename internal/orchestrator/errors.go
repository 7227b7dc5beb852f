package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"narrator/pkg/agentrunner"
	"narrator/pkg/proto"
)

// ErrUnknownRun is returned by GetStatus/Pause/Resume/Cancel for a runId
// not present in the registry (§7 ClientError, "unknown runId").
var ErrUnknownRun = errors.New("orchestrator: unknown run")

// ErrInvalidTransition is returned when a caller-requested operation does
// not apply to the run's current state (§7 ClientError).
var ErrInvalidTransition = errors.New("orchestrator: invalid state transition")

// ClientError wraps a bad request: unknown runId, invalid transition, or a
// missing required field. Never retried; surfaced directly to the caller.
type ClientError struct {
	Err error
}

func (e *ClientError) Error() string { return fmt.Sprintf("client error: %v", e.Err) }
func (e *ClientError) Unwrap() error { return e.Err }

// handleError implements §7's HandleError: records the run's terminal
// error, emits a structured ERROR event (plus the legacy
// generation_error alias), and marks the phase as PhaseError. It does not
// itself stop the calling goroutine; callers return immediately after.
func (s *Service) handleError(ctx context.Context, rs *runState, phase proto.Phase, err error) {
	rs.mu.Lock()
	rs.run.Error = err.Error()
	rs.run.Phase = PhaseError
	rs.mu.Unlock()

	data := map[string]any{
		"error":        err.Error(),
		"phase":        string(phase),
		"currentScene": rs.run.CurrentScene,
		"totalScenes":  rs.run.TotalScenes,
		"recoverable":  false,
	}
	s.publish(ctx, rs.run.RunID, proto.EventError, data)
	// Legacy alias some older consumers still listen for (§7).
	s.publish(ctx, rs.run.RunID, proto.EventType("generation_error"), data)

	s.logger.Error("run %s failed in phase %s: %v", rs.run.RunID, phase, err)
}

// isValidationError reports whether err is (or wraps) an
// agentrunner.ValidationError.
func isValidationError(err error) bool {
	var ve *agentrunner.ValidationError
	return errors.As(err, &ve)
}
