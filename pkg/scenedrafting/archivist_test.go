package scenedrafting

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"narrator/pkg/agentrunner"
	"narrator/pkg/config"
	"narrator/pkg/constraintstore"
	"narrator/pkg/eventlog/local"
	"narrator/pkg/proto"
)

func TestRunArchivist_MergesConstraintsAndAppliesWorldDiff(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{
			"constraints": {"protagonist_scar": "left forearm, from the fire"},
			"worldState": {
				"characters": {
					"additions": {"Mira": {"location": "harbor", "status": "injured", "possessions": [], "relationships": {}}}
				}
			}
		}`,
	}}
	writer := agentrunner.New(scriptedPromptStore{}, llm, nil)
	events := local.New()
	engine := New(writer, nil, nil, events, config.DefaultOrchestrator())

	constraints := constraintstore.New()
	world := proto.NewWorldState()

	deps := ArchivistDeps{Constraints: constraints, World: world}
	next, err := engine.RunArchivist(context.Background(), "run1", []proto.RawFact{
		{Fact: "Mira was burned rescuing the child", Source: "writer", SceneNumber: 4},
	}, 4, deps)
	require.NoError(t, err)

	require.Contains(t, next.Characters, "Mira")
	require.Equal(t, "harbor", next.Characters["Mira"].Location)

	active := constraints.Active()
	require.Len(t, active, 1)
	require.Equal(t, "protagonist_scar", active[0].Key)
	require.Equal(t, 4, active[0].SceneNumber)

	history, err := events.Range(context.Background(), "run1", 0, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, proto.EventArchivistStart, history[0].Type)
	require.Equal(t, proto.EventArchivistComplete, history[1].Type)
}

func TestRunArchivist_InvalidJSONIsValidationError(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"not json at all"}}
	writer := agentrunner.New(scriptedPromptStore{}, llm, nil)
	engine := New(writer, nil, nil, nil, config.DefaultOrchestrator())

	deps := ArchivistDeps{Constraints: constraintstore.New(), World: proto.NewWorldState()}
	_, err := engine.RunArchivist(context.Background(), "run1", nil, 1, deps)
	require.Error(t, err)

	var ve *agentrunner.ValidationError
	require.ErrorAs(t, err, &ve)
}
