package scenedrafting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"narrator/pkg/agentrunner"
	"narrator/pkg/constraintstore"
	"narrator/pkg/proto"
	"narrator/pkg/worldstate"
)

// ArchivistDeps are the stateful collaborators the Archivist pass mutates;
// they are owned by the Orchestrator and passed in per call rather than
// held by Engine, since the Archivist runs between scenes, not inside the
// per-scene pipeline that Engine otherwise owns exclusively.
type ArchivistDeps struct {
	Constraints *constraintstore.Store
	World       proto.WorldState
}

// RunArchivist implements §4.7.5: consume the RawFact suffix since
// lastArchivistScene, have the Archivist propose constraint updates and a
// world-state diff, then apply both. Returns the new WorldState; recording
// the lastArchivistScene high-water mark is left to the caller.
func (e *Engine) RunArchivist(ctx context.Context, runID string, facts []proto.RawFact, sceneNumber int, deps ArchivistDeps) (proto.WorldState, error) {
	e.publish(ctx, runID, proto.EventArchivistStart, map[string]any{"sceneNumber": sceneNumber})

	out, err := e.writer.Run(ctx, "archivist", agentrunner.Options{
		Phase:    "archivist",
		Fallback: archivistFallbackTemplate,
		Vars: map[string]any{
			"sceneNumber": sceneNumber,
			"facts":       facts,
		},
	})
	if err != nil {
		return deps.World, err
	}

	proposal, err := parseArchivistProposal(out.Content)
	if err != nil {
		return deps.World, &agentrunner.ValidationError{FieldPath: "archivist", Err: err}
	}

	now := time.Now()
	constraints := make([]proto.KeyConstraint, 0, len(proposal.Constraints))
	for key, value := range proposal.Constraints {
		constraints = append(constraints, proto.KeyConstraint{
			Key:         key,
			Value:       value,
			SceneNumber: sceneNumber,
			Timestamp:   now,
		})
	}
	deps.Constraints.Merge(constraints)

	next := worldstate.Apply(deps.World, proposal.WorldDiff, sceneNumber)

	e.publish(ctx, runID, proto.EventArchivistComplete, map[string]any{
		"constraintCount": len(deps.Constraints.Active()),
	})

	return next, nil
}

type archivistProposal struct {
	Constraints map[string]string
	WorldDiff   map[string]any
}

func parseArchivistProposal(raw string) (archivistProposal, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return archivistProposal{}, fmt.Errorf("decode archivist output JSON: %w", err)
	}

	proposal := archivistProposal{Constraints: map[string]string{}}
	if c, ok := m["constraints"].(map[string]any); ok {
		for k, v := range c {
			if s, ok := v.(string); ok {
				proposal.Constraints[k] = s
			}
		}
	}
	if wd, ok := m["worldState"].(map[string]any); ok {
		proposal.WorldDiff = wd
	} else if wd, ok := m["worldDiff"].(map[string]any); ok {
		proposal.WorldDiff = wd
	}
	return proposal, nil
}

const archivistFallbackTemplate = "Given the facts recorded since scene {{.sceneNumber}}, output as JSON: {constraints: {key: value}, worldState: {characters, locations, flags}}."
