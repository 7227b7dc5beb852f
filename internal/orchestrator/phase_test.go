package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"narrator/pkg/proto"
)

func TestValidNextPhases_LinearChainToDrafting(t *testing.T) {
	chain := []proto.Phase{
		proto.PhaseGenesis, proto.PhaseCharacters, proto.PhaseNarratorDesign,
		proto.PhaseWorldbuilding, proto.PhaseOutlining, proto.PhaseAdvancedPlanning,
		proto.PhaseDrafting, proto.PhaseCritique,
	}
	for i := 0; i < len(chain)-1; i++ {
		require.True(t, IsValidPhaseTransition(chain[i], chain[i+1]), "%s -> %s", chain[i], chain[i+1])
	}
}

func TestCritique_BranchesToRevisionOrOriginality(t *testing.T) {
	require.True(t, IsValidPhaseTransition(proto.PhaseCritique, proto.PhaseRevision))
	require.True(t, IsValidPhaseTransition(proto.PhaseCritique, proto.PhaseOriginalityCheck))
	require.False(t, IsValidPhaseTransition(proto.PhaseCritique, proto.PhasePolish))
}

func TestRevision_ReturnsToCritique(t *testing.T) {
	require.True(t, IsValidPhaseTransition(proto.PhaseRevision, proto.PhaseCritique))
	require.False(t, IsValidPhaseTransition(proto.PhaseRevision, proto.PhaseOriginalityCheck))
}

func TestPolish_TransitionsToCompleted(t *testing.T) {
	require.True(t, IsValidPhaseTransition(proto.PhasePolish, PhaseCompleted))
	require.True(t, IsTerminalPhase(PhaseCompleted))
	require.True(t, IsTerminalPhase(PhaseError))
	require.False(t, IsTerminalPhase(proto.PhasePolish))
}

func TestNextLinearPhase_ErrorsOnBranchingOrTerminal(t *testing.T) {
	_, err := NextLinearPhase(proto.PhaseCritique)
	require.Error(t, err)

	_, err = NextLinearPhase(PhaseCompleted)
	require.Error(t, err)

	next, err := NextLinearPhase(proto.PhaseGenesis)
	require.NoError(t, err)
	require.Equal(t, proto.PhaseCharacters, next)
}

func TestIsKnownPhase(t *testing.T) {
	require.True(t, IsKnownPhase(proto.PhaseDrafting))
	require.True(t, IsKnownPhase(PhaseCompleted))
	require.False(t, IsKnownPhase(proto.Phase("not_a_phase")))
}
