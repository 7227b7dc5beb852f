package orchestrator

import (
	"context"

	"narrator/pkg/proto"
)

// indexCharacters, indexWorldbuilding, and indexScene feed newly-produced
// artifacts into the VectorStore as they are created, so later scenes'
// SceneDraftingEngine.DraftScene context lookups (the "character",
// "worldbuilding", and "scene" kinds fetchContext searches) have something
// to retrieve. s.vectors is optional (§4.9); every call is a no-op when it
// is nil, matching scenedrafting's own nil-tolerant fetchContext.
func (s *Service) indexCharacters(ctx context.Context, projectID string, characters []proto.Character) {
	if s.vectors == nil {
		return
	}
	for _, c := range characters {
		payload := map[string]any{
			"name":       c.Name,
			"role":       c.Role,
			"psychology": c.Psychology,
			"backstory":  c.Backstory,
		}
		if err := s.vectors.Store(ctx, projectID, "character", payload); err != nil {
			s.logger.Warn("index character %q for project %s: %v", c.Name, projectID, err)
		}
	}
}

func (s *Service) indexWorldbuilding(ctx context.Context, projectID string, elements map[string]proto.WorldElement) {
	if s.vectors == nil {
		return
	}
	for name, el := range elements {
		details := make([]any, 0, len(el.Details))
		for _, v := range el.Details {
			details = append(details, v)
		}
		payload := map[string]any{
			"name":        name,
			"description": el.Description,
			"details":     details,
		}
		if err := s.vectors.Store(ctx, projectID, "worldbuilding", payload); err != nil {
			s.logger.Warn("index worldbuilding %q for project %s: %v", name, projectID, err)
		}
	}
}

func (s *Service) indexScene(ctx context.Context, projectID string, scene proto.OutlineScene, draft proto.Draft) {
	if s.vectors == nil {
		return
	}
	payload := map[string]any{
		"title":      scene.Title,
		"setting":    scene.Setting,
		"characters": toAnySlice(scene.Characters),
		"content":    draft.Content,
	}
	if err := s.vectors.Store(ctx, projectID, "scene", payload); err != nil {
		s.logger.Warn("index scene %d for project %s: %v", scene.SceneNumber, projectID, err)
	}
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
