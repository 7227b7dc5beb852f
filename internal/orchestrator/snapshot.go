package orchestrator

import (
	"context"
	"fmt"
	"time"

	"narrator/internal/wire"
	"narrator/pkg/constraintstore"
	"narrator/pkg/proto"
)

// runSnapshot is the run_state_snapshot artifact's JSON shape (§3, §6,
// §9): every field the owning run task holds that isn't otherwise
// reconstructible from other persisted artifacts. Map fields keyed by scene
// number are projected through internal/wire to the ordered []Keyed shape
// used at this persistence boundary.
type runSnapshot struct {
	Run               proto.GenerationRun           `json:"run"`
	Narrative         proto.Narrative               `json:"narrative"`
	Characters        []proto.Character             `json:"characters"`
	Worldbuilding     map[string]proto.WorldElement `json:"worldbuilding"`
	Outline           proto.Outline                 `json:"outline"`
	Drafts            []wire.Keyed[proto.Draft]     `json:"drafts"`
	Critiques         []wire.Keyed[[]proto.Critique] `json:"critiques"`
	RevisionCount     []wire.Keyed[int]             `json:"revisionCount"`
	Constraints       []proto.KeyConstraint         `json:"constraints"`
	World             proto.WorldState              `json:"world"`
	RawFacts          []proto.RawFact               `json:"rawFacts"`
	ArchivistConsumed int                            `json:"archivistConsumed"`
}

// snapshotRun serializes rs into a run_state_snapshot artifact. Called on
// every pause safepoint and during graceful shutdown (§4.8, §9).
func (s *Service) snapshotRun(ctx context.Context, rs *runState) {
	snap := runSnapshot{
		Run:               rs.snapshot(),
		Narrative:         rs.artifacts.Narrative,
		Characters:        rs.artifacts.Characters,
		Worldbuilding:     rs.artifacts.Worldbuilding,
		Outline:           rs.artifacts.Outline,
		Drafts:            wire.ProjectIntKeyed(rs.artifacts.Drafts),
		Critiques:         wire.ProjectIntKeyed(rs.artifacts.Critiques),
		RevisionCount:     wire.ProjectIntKeyed(rs.artifacts.RevisionCount),
		Constraints:       rs.constraints.Snapshot(),
		World:             rs.world,
		RawFacts:          rs.rawFacts,
		ArchivistConsumed: rs.archivistConsumed,
	}
	if err := s.artifacts.Save(ctx, snap.Run.RunID, string(proto.ArtifactRunStateSnapshot), snap); err != nil {
		s.logger.Warn("snapshot run %s: %v", snap.Run.RunID, err)
	}
}

// RestoreRun loads runID's run_state_snapshot artifact and re-registers it
// in the registry, paused, ready for a caller to invoke Resume (§9,
// "restoration of interrupted snapshots with isPaused=true"). Discovering
// which runIds have a snapshot to restore is the concrete Artifacts
// adapter's job (ports.Artifacts has no List method by design, §4.6);
// cmd/narratived enumerates them and calls RestoreRun once per run at
// startup.
func (s *Service) RestoreRun(ctx context.Context, runID string) error {
	var snap runSnapshot
	found, err := s.artifacts.Load(ctx, runID, string(proto.ArtifactRunStateSnapshot), &snap)
	if err != nil {
		return fmt.Errorf("load snapshot for run %s: %w", runID, err)
	}
	if !found {
		return &ClientError{Err: fmt.Errorf("%w: %s", ErrUnknownRun, runID)}
	}

	rs := newRunState(snap.Run)
	rs.run.IsPaused = true
	rs.pauseRequested = true
	close(rs.done) // no run task owns this state until Resume starts one
	rs.artifacts.Narrative = snap.Narrative
	rs.artifacts.Characters = snap.Characters
	rs.artifacts.Worldbuilding = snap.Worldbuilding
	rs.artifacts.Outline = snap.Outline
	rs.artifacts.Drafts = wire.UnprojectIntKeyed(snap.Drafts)
	rs.artifacts.Critiques = wire.UnprojectIntKeyed(snap.Critiques)
	rs.artifacts.RevisionCount = wire.UnprojectIntKeyed(snap.RevisionCount)
	rs.constraints = constraintstore.Restore(snap.Constraints)
	rs.world = snap.World
	rs.rawFacts = snap.RawFacts
	rs.archivistConsumed = snap.ArchivistConsumed

	s.registry.put(rs)
	s.publish(ctx, runID, proto.EventRunRestored, map[string]any{"phase": string(snap.Run.Phase)})
	return nil
}

// Shutdown snapshots every run still registered and not yet paused, bounded
// by cfg.GracefulShutdownMs (§6, "graceful_shutdown_ms"). Each run is asked
// to pause and its owning goroutine is given until that deadline to reach a
// safepoint and exit; once the deadline passes, the snapshot takes whatever
// state the goroutine has committed so far.
func (s *Service) Shutdown(ctx context.Context) {
	states := s.registry.list()
	s.logger.Info("shutdown initiated: snapshotting %d run(s)", len(states))

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.GracefulShutdownMs)*time.Millisecond)
	defer cancel()

	for _, rs := range states {
		select {
		case <-rs.done:
			continue // already reached a terminal phase; nothing to pause or snapshot
		default:
		}

		s.publish(shutdownCtx, rs.run.RunID, proto.EventShutdownInitiated, nil)
		_ = s.Pause(rs.run.RunID)
		select {
		case <-rs.done:
		case <-shutdownCtx.Done():
		}
		s.snapshotRun(shutdownCtx, rs)
	}
}
