package worldstate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"narrator/pkg/proto"
)

func TestInitialFromCharacters(t *testing.T) {
	ws := InitialFromCharacters([]proto.Character{
		{Name: "Mira", Role: string(proto.RoleProtagonist)},
		{Name: "Castellan", Role: string(proto.RoleAntagonist)},
	})

	require.Len(t, ws.Characters, 2)
	for _, name := range []string{"Mira", "Castellan"} {
		cs, ok := ws.Characters[name]
		require.True(t, ok)
		require.Equal(t, "unknown", cs.Location)
		require.Equal(t, "alive", cs.Status)
		require.Empty(t, cs.Possessions)
		require.Empty(t, cs.Relationships)
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	current := InitialFromCharacters([]proto.Character{{Name: "Mira"}})

	diff := map[string]any{
		"characters": map[string]any{
			"fieldSets": map[string]any{
				"Mira": map[string]any{"location": "lighthouse"},
			},
		},
	}

	_ = Apply(current, diff, 1)

	require.Equal(t, "unknown", current.Characters["Mira"].Location, "Apply must not mutate its input WorldState")
}

func TestApply_UnknownTopLevelKeyIsNoOp(t *testing.T) {
	current := InitialFromCharacters([]proto.Character{{Name: "Mira"}})

	diff := map[string]any{
		"weather": map[string]any{
			"additions": map[string]any{"storm": true},
		},
	}

	next := Apply(current, diff, 1)
	require.Equal(t, current, next, "unrecognized section must be ignored, not applied")
}

func TestApply_AdditionsBeforeRemovalsBeforeFieldSets(t *testing.T) {
	current := proto.NewWorldState()
	current.Characters["Mira"] = proto.CharacterState{Location: "harbor", Status: "alive", Relationships: map[string]string{}}

	// A single diff call that adds a character, removes another, and sets a
	// field on the added character — all three must apply within the same
	// call regardless of the order the producer wrote them in the map.
	diff := map[string]any{
		"characters": map[string]any{
			"additions": map[string]any{
				"Dax": map[string]any{"location": "unknown", "status": "alive"},
			},
			"removals": []any{"Mira"},
			"fieldSets": map[string]any{
				"Dax": map[string]any{"location": "lighthouse"},
			},
		},
	}

	next := Apply(current, diff, 2)

	_, stillThere := next.Characters["Mira"]
	require.False(t, stillThere, "removal must apply")

	dax, ok := next.Characters["Dax"]
	require.True(t, ok, "addition must apply")
	require.Equal(t, "lighthouse", dax.Location, "field-set must apply after addition, in the same call")
}

func TestApply_LocationsAndFlagsFieldSetsMerge(t *testing.T) {
	current := proto.NewWorldState()
	current.Locations["lighthouse"] = map[string]any{"lit": false}
	current.Flags["mystery_revealed"] = false

	diff := map[string]any{
		"locations": map[string]any{
			"fieldSets": map[string]any{
				"lighthouse": map[string]any{"flooded": true},
			},
		},
		"flags": map[string]any{
			"additions": map[string]any{"storm_warning": true},
		},
	}

	next := Apply(current, diff, 3)

	loc, ok := next.Locations["lighthouse"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, false, loc["lit"], "existing fields must survive a field-set merge")
	require.Equal(t, true, loc["flooded"])
	require.Equal(t, true, next.Flags["storm_warning"])
}
