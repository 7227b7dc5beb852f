package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewGenerationArtifacts(t *testing.T) {
	a := NewGenerationArtifacts()

	require.NotNil(t, a.Worldbuilding)
	require.NotNil(t, a.Drafts)
	require.NotNil(t, a.Critiques)
	require.NotNil(t, a.RevisionCount)
	require.Empty(t, a.Characters)
	require.Empty(t, a.Outline.Scenes)
}

func TestNewWorldState(t *testing.T) {
	ws := NewWorldState()

	require.NotNil(t, ws.Characters)
	require.NotNil(t, ws.Locations)
	require.NotNil(t, ws.Flags)
}

func TestSeedConstraintKeys(t *testing.T) {
	require.ElementsMatch(t, []string{"seed_idea", "genre", "premise", "tone", "narrative_arc"}, SeedConstraintKeys)
}

func TestTerminalEventTypes(t *testing.T) {
	require.True(t, TerminalEventTypes[EventError])
	require.True(t, TerminalEventTypes[EventGenerationCompleted])
	require.False(t, TerminalEventTypes[EventPhaseComplete])
	require.False(t, TerminalEventTypes[EventHeartbeat])
}
