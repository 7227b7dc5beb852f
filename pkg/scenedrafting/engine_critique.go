package scenedrafting

import (
	"context"
	"encoding/json"
	"fmt"

	"narrator/pkg/agentrunner"
	"narrator/pkg/normalizer"
	"narrator/pkg/proto"
)

// critiqueLoop calls Critic, applies revision when required, and re-
// critiques, bounded by cfg.MaxRevisions. Returns the full critique trail
// and the final critique (approved or not).
func (e *Engine) critiqueLoop(ctx context.Context, sc SceneContext, draft *proto.Draft, target int) ([]proto.Critique, proto.Critique, error) {
	var trail []proto.Critique

	for revision := 0; ; revision++ {
		e.publish(ctx, sc.RunID, proto.EventSceneCritiqueStart, map[string]any{
			"sceneNumber": sc.Scene.SceneNumber,
			"revision":    revision,
		})

		critique, err := e.runCritic(ctx, sc, *draft, target)
		if err != nil {
			return trail, proto.Critique{}, err
		}
		trail = append(trail, critique)

		e.publish(ctx, sc.RunID, proto.EventSceneCritiqueComplete, map[string]any{
			"sceneNumber": sc.Scene.SceneNumber,
			"revision":    revision,
			"score":       critique.Score,
		})

		approved := IsApproved(critique) && !RequiresRevision(critique)
		if approved {
			return trail, critique, nil
		}
		if revision >= e.cfg.MaxRevisions {
			return trail, critique, nil
		}

		e.publish(ctx, sc.RunID, proto.EventSceneRevisionStart, map[string]any{
			"sceneNumber": sc.Scene.SceneNumber,
			"revision":    revision + 1,
		})

		revised, err := e.writer.Run(ctx, "writer", agentrunner.Options{
			Phase:    "revision",
			Fallback: writerFallbackTemplate,
			Vars: map[string]any{
				"mode":             "revision",
				"sceneNumber":      sc.Scene.SceneNumber,
				"existingContent":  draft.Content,
				"critiqueIssues":   critique.Issues,
				"revisionRequests": critique.RevisionRequests,
			},
		})
		if err != nil {
			return trail, critique, err
		}

		draft.Content = Sanitize(revised.Content)
		draft.WordCount = wordCount(draft.Content)
		draft.RevisionNumber = revision + 1
		draft.Status = proto.DraftStatusRevising

		e.publish(ctx, sc.RunID, proto.EventSceneRevisionComplete, map[string]any{
			"sceneNumber": sc.Scene.SceneNumber,
			"revision":    revision + 1,
		})
	}
}

// runCritic invokes the Critic agent, parses its JSON response, and fills
// in the server-side wordCountCompliance/scopeAdherence heuristics if the
// model omitted them.
func (e *Engine) runCritic(ctx context.Context, sc SceneContext, draft proto.Draft, target int) (proto.Critique, error) {
	out, err := e.critic.Run(ctx, "critic", agentrunner.Options{
		Phase:    "critique",
		Fallback: criticFallbackTemplate,
		Vars: map[string]any{
			"sceneNumber": sc.Scene.SceneNumber,
			"content":     draft.Content,
			"hook":        sc.Scene.Hook,
		},
	})
	if err != nil {
		return proto.Critique{}, err
	}

	critique, err := parseCritique(out.Content)
	if err != nil {
		return proto.Critique{}, &agentrunner.ValidationError{FieldPath: "critique", Err: err}
	}

	if critique.WordCountCompliance == nil {
		ok := WordCountCompliant(draft.WordCount, target)
		critique.WordCountCompliance = &ok
	}
	if critique.ScopeAdherence == nil {
		ok := ScopeAdherent(draft.Content, sc.Scene.Hook, sc.Scene.FutureEvents)
		critique.ScopeAdherence = &ok
	}

	return critique, nil
}

func parseCritique(raw string) (proto.Critique, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return proto.Critique{}, fmt.Errorf("decode critique JSON: %w", err)
	}
	m = normalizer.CanonicalizeFields(m)

	c := proto.Critique{}
	if score, ok := m["score"].(float64); ok {
		c.Score = clampScoreInt(score)
	}
	if approved, ok := m["approved"].(bool); ok {
		c.Approved = approved
	}
	if revisionNeeded, ok := m["revisionNeeded"].(bool); ok {
		c.RevisionNeeded = revisionNeeded
	}
	c.Issues = stringSlice(m["issues"])
	c.RevisionRequests = stringSlice(m["revisionRequests"])
	c.Strengths = stringSlice(m["strengths"])
	if v, ok := m["wordCountCompliance"].(bool); ok {
		c.WordCountCompliance = &v
	}
	if v, ok := m["scopeAdherence"].(bool); ok {
		c.ScopeAdherence = &v
	}
	return c, nil
}

func clampScoreInt(score float64) int {
	n := int(score)
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

func stringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

const criticFallbackTemplate = "Critique scene {{.sceneNumber}} against its hook \"{{.hook}}\". Output as JSON: {score, approved, revisionNeeded, issues, revisionRequests, strengths}."

// polish runs Writer in polish mode and validates the result per §4.7.4,
// rejecting in favor of the pre-polish content when validation fails.
func (e *Engine) polish(ctx context.Context, sc SceneContext, prePolish string) (string, proto.PolishStatus) {
	e.publish(ctx, sc.RunID, proto.EventScenePolishStart, map[string]any{"sceneNumber": sc.Scene.SceneNumber})

	out, err := e.writer.Run(ctx, "writer", agentrunner.Options{
		Phase:    "polish",
		Fallback: polishFallbackTemplate,
		Vars: map[string]any{
			"mode":        "polish",
			"sceneNumber": sc.Scene.SceneNumber,
			"content":     prePolish,
		},
	})
	if err != nil {
		e.logger.Warn("scene %d polish failed: %v", sc.Scene.SceneNumber, err)
		return prePolish, proto.PolishStatusNotApproved
	}

	postPolish := Sanitize(out.Content)
	if reason := ValidatePolish(prePolish, postPolish); reason != PolishRejectNone {
		e.logger.Info("scene %d polish rejected: %s", sc.Scene.SceneNumber, reason)
		return prePolish, proto.PolishStatusRejected
	}
	return postPolish, proto.PolishStatusPolished
}

const polishFallbackTemplate = "Polish scene {{.sceneNumber}} for prose quality without summarizing or truncating it."
