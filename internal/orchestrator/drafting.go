package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"narrator/pkg/proto"
	"narrator/pkg/scenedrafting"
)

// errStopped signals that a safepoint observed ShouldStop; it is never
// surfaced to a caller as a run error (§5 cooperative cancellation).
var errStopped = errors.New("orchestrator: run stopped at safepoint")

// draftingHandler drives the per-scene sub-loop: for each outline scene,
// run SceneDraftingEngine.DraftScene, persist its outputs, append a
// RawFact, and trigger the Archivist at the configured cadence (§4.7,
// §4.7.5, §4.8). rs.run.Phase is set to PhaseDrafting for the whole loop;
// Critique/Revision are sub-states Engine tracks only through its own
// published events, not through GenerationRun.Phase, since a restored
// snapshot only ever needs to resume at scene granularity (§9).
func draftingHandler(ctx context.Context, s *Service, rs *runState) error {
	runID := rs.run.RunID
	s.publishPhase(ctx, runID, proto.EventPhaseStart, proto.PhaseDrafting, nil)

	scenes := append([]proto.OutlineScene(nil), rs.artifacts.Outline.Scenes...)
	sort.Slice(scenes, func(i, j int) bool { return scenes[i].SceneNumber < scenes[j].SceneNumber })

	for i, scene := range scenes {
		if rs.ShouldStop() {
			return errStopped
		}
		if d, ok := rs.artifacts.Drafts[scene.SceneNumber]; ok && d.Status == proto.DraftStatusFinal {
			continue // resumed run: this scene was already finalized before pause/restart
		}

		rs.setCurrentScene(scene.SceneNumber)
		rs.setCurrentSceneOutline(&scene)

		result, err := s.scenes.DraftScene(ctx, scenedrafting.SceneContext{
			RunID:      runID,
			ProjectID:  rs.run.ProjectID,
			Scene:      scene,
			Narrative:  rs.artifacts.Narrative,
			Characters: rs.artifacts.Characters,
		})
		if err != nil {
			// A BeatInsufficient after 3 attempts, or any other Engine
			// failure, has no safe fallback at the scene level: the run
			// transitions to ERROR (§7).
			return fmt.Errorf("scene %d: %w", scene.SceneNumber, err)
		}

		rs.artifacts.Drafts[scene.SceneNumber] = result.Draft
		rs.artifacts.Critiques[scene.SceneNumber] = result.Critiques
		if n := len(result.Critiques); n > 0 {
			rs.artifacts.RevisionCount[scene.SceneNumber] = n - 1
		}
		rs.setCurrentSceneOutline(nil) // state hygiene (§4.7 step 7)

		if err := s.saveSceneArtifacts(ctx, runID, scene.SceneNumber, result); err != nil {
			s.logger.Warn("save scene %d artifacts for run %s: %v", scene.SceneNumber, runID, err)
		}
		s.indexScene(ctx, rs.run.ProjectID, scene, result.Draft)

		rs.rawFacts = append(rs.rawFacts, proto.RawFact{
			Fact:        summarizeDraft(scene, result),
			Source:      "writer",
			SceneNumber: scene.SceneNumber,
			Timestamp:   time.Now().UTC(),
		})

		isLastScene := i == len(scenes)-1
		dueForArchivist := scene.SceneNumber-rs.run.LastArchivistScene >= s.cfg.ArchivistCadence
		if dueForArchivist || isLastScene {
			if err := s.runArchivistPass(ctx, rs, scene.SceneNumber); err != nil {
				if !isValidationError(err) {
					return fmt.Errorf("archivist pass at scene %d: %w", scene.SceneNumber, err)
				}
				// Archivist has a safe fallback (§7): log and keep drafting
				// with the world state as of the last successful pass.
				s.logger.Warn("archivist pass at scene %d for run %s: %v (continuing)", scene.SceneNumber, runID, err)
			}
		}
	}

	// Every scene is finalized (Critique/Revision already resolved inside
	// SceneDraftingEngine per scene, §4.7); the outer run phase skips the
	// Critique/Revision nodes entirely and moves straight to
	// OriginalityCheck, matching the Critique -> OriginalityCheck edge in
	// phaseTransitions taken with revision_needed=false for every scene.
	return s.advanceTo(ctx, rs, proto.PhaseDrafting, proto.PhaseOriginalityCheck, map[string]any{"totalScenes": len(scenes)})
}

func (s *Service) saveSceneArtifacts(ctx context.Context, runID string, sceneNumber int, result scenedrafting.Result) error {
	draftKey := fmt.Sprintf("%s%d", proto.ArtifactDraftScenePrefix, sceneNumber)
	if err := s.artifacts.Save(ctx, runID, draftKey, result.Draft); err != nil {
		return err
	}
	critiqueKey := fmt.Sprintf("%s%d", proto.ArtifactCritiqueScenePrefix, sceneNumber)
	if err := s.artifacts.Save(ctx, runID, critiqueKey, result.Critiques); err != nil {
		return err
	}
	if result.Draft.Status == proto.DraftStatusFinal {
		finalKey := fmt.Sprintf("%s%d", proto.ArtifactFinalScenePrefix, sceneNumber)
		return s.artifacts.Save(ctx, runID, finalKey, result.Draft)
	}
	return nil
}

func summarizeDraft(scene proto.OutlineScene, result scenedrafting.Result) string {
	firstLine := result.Draft.Content
	if idx := strings.IndexAny(firstLine, ".!?"); idx > 0 && idx < 200 {
		firstLine = firstLine[:idx+1]
	} else if len(firstLine) > 200 {
		firstLine = firstLine[:200]
	}
	return fmt.Sprintf("Scene %d (%s): %s", scene.SceneNumber, scene.Title, firstLine)
}

// runArchivistPass hands the Engine every RawFact accumulated since the
// last pass, applies the resulting world-state diff, and advances the
// high-water mark (§4.7.5).
func (s *Service) runArchivistPass(ctx context.Context, rs *runState, sceneNumber int) error {
	runID := rs.run.RunID
	facts := append([]proto.RawFact(nil), rs.rawFacts[rs.archivistConsumed:]...)

	next, err := s.scenes.RunArchivist(ctx, runID, facts, sceneNumber, scenedrafting.ArchivistDeps{
		Constraints: rs.constraints,
		World:       rs.world,
	})
	if err != nil {
		return err
	}

	rs.world = next
	rs.archivistConsumed = len(rs.rawFacts)
	rs.setLastArchivistScene(sceneNumber)

	s.publish(ctx, runID, proto.EventNewDevelopmentsCollected, map[string]any{
		"sceneNumber": sceneNumber,
		"factCount":   len(facts),
	})
	return nil
}
