package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"narrator/pkg/proto"
)

// runLoop walks rs through the phase graph one handler at a time until a
// terminal phase, a pause/cancel safepoint, or an unrecoverable error is
// reached. It is the Orchestrator's run task: per §5, only this goroutine
// ever mutates rs.artifacts/constraints/world/rawFacts, and it is the only
// writer of rs.run's phase-progression fields.
func (s *Service) runLoop(ctx context.Context, rs *runState) {
	defer close(rs.done)

	for {
		if rs.ShouldStop() {
			if rs.IsCancelled() {
				return // Cancel already evicted the run and published nothing further (§4.8).
			}
			s.snapshotRun(ctx, rs) // pause: persist so a later Resume (possibly after a restart) can pick up here.
			return
		}

		phase := rs.phase()
		if IsTerminalPhase(phase) {
			return
		}

		var err error
		if phase == proto.PhaseDrafting {
			err = draftingHandler(ctx, s, rs)
		} else if handler, ok := setupHandlers[phase]; ok {
			err = handler(ctx, s, rs)
		} else {
			err = fmt.Errorf("orchestrator: no handler registered for phase %q", phase)
		}

		if err != nil {
			if errors.Is(err, errStopped) {
				continue // loop back around to the ShouldStop branch above
			}
			s.handleError(ctx, rs, phase, err)
			return
		}
	}
}
