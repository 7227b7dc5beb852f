// Package orchestrator implements the Orchestrator: the phase state
// machine, per-scene draft/critique/revise loop driver, Archivist cadence
// trigger, pause/resume/cancel, and snapshot/restore (§4.8).
package orchestrator

import (
	"fmt"

	"narrator/pkg/proto"
)

// This file is the single source of truth for the phase graph (§4.8); any
// change here must stay in sync with the narrative each phase handler in
// handlers.go produces. Phase itself is defined in pkg/proto since Event
// payloads and GenerationRun.Phase both carry it.

// phaseTransitions is the canonical map[Phase][]Phase transition table,
// taken directly from the diagram in §4.8. Critique/Revision are per-scene
// sub-states of the outer Drafting phase that run.Phase never takes (it
// stays at Drafting for the whole scene loop); draftingHandler in
// drafting.go moves straight from Drafting to OriginalityCheck once every
// scene has been finalized, which is exactly the Critique -> OriginalityCheck
// edge below taken with revision_needed=false.
var phaseTransitions = map[proto.Phase][]proto.Phase{
	proto.PhaseGenesis:          {proto.PhaseCharacters},
	proto.PhaseCharacters:       {proto.PhaseNarratorDesign},
	proto.PhaseNarratorDesign:   {proto.PhaseWorldbuilding},
	proto.PhaseWorldbuilding:    {proto.PhaseOutlining},
	proto.PhaseOutlining:        {proto.PhaseAdvancedPlanning},
	proto.PhaseAdvancedPlanning: {proto.PhaseDrafting},
	proto.PhaseDrafting:         {proto.PhaseCritique},
	proto.PhaseCritique:         {proto.PhaseRevision, proto.PhaseOriginalityCheck},
	proto.PhaseRevision:         {proto.PhaseCritique},
	proto.PhaseOriginalityCheck: {proto.PhaseImpactAssessment},
	proto.PhaseImpactAssessment: {proto.PhasePolish},
	proto.PhasePolish:           {PhaseCompleted},
}

// PhaseCompleted and PhaseError are not graph nodes any agent runs
// against; they mark the run's terminal status once Polish (or an
// unrecoverable error) has been reached. They live here rather than in
// pkg/proto since only the Orchestrator's own bookkeeping needs them.
const (
	PhaseCompleted proto.Phase = "completed"
	PhaseError     proto.Phase = "error"
)

// allPhases is the deterministic phase order used for validation and for
// resuming a restored run at the right point in the graph.
var allPhases = []proto.Phase{
	proto.PhaseGenesis, proto.PhaseCharacters, proto.PhaseNarratorDesign,
	proto.PhaseWorldbuilding, proto.PhaseOutlining, proto.PhaseAdvancedPlanning,
	proto.PhaseDrafting, proto.PhaseCritique, proto.PhaseRevision,
	proto.PhaseOriginalityCheck, proto.PhaseImpactAssessment, proto.PhasePolish,
}

// ValidNextPhases returns the allowed next phases for from.
func ValidNextPhases(from proto.Phase) []proto.Phase {
	return phaseTransitions[from]
}

// IsValidPhaseTransition reports whether to is reachable from from in one
// hop of the canonical graph.
func IsValidPhaseTransition(from, to proto.Phase) bool {
	for _, p := range ValidNextPhases(from) {
		if p == to {
			return true
		}
	}
	return false
}

// IsTerminalPhase reports whether phase ends the run (no further phase
// handler runs once reached).
func IsTerminalPhase(phase proto.Phase) bool {
	return phase == PhaseCompleted || phase == PhaseError
}

// IsKnownPhase reports whether phase is a recognized graph node (including
// the terminal pseudo-phases).
func IsKnownPhase(phase proto.Phase) bool {
	if IsTerminalPhase(phase) {
		return true
	}
	for _, p := range allPhases {
		if p == phase {
			return true
		}
	}
	return false
}

// NextLinearPhase returns the single successor of from for the phases that
// have exactly one edge out (i.e. everywhere except Critique's
// revision_needed-guarded branch). It is an error to call it on Critique or
// on a terminal phase.
func NextLinearPhase(from proto.Phase) (proto.Phase, error) {
	next := ValidNextPhases(from)
	if len(next) != 1 {
		return "", fmt.Errorf("orchestrator: phase %q has no single linear successor (has %d)", from, len(next))
	}
	return next[0], nil
}
