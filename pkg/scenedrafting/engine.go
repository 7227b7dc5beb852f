// Package scenedrafting implements the SceneDraftingEngine: the per-scene
// pipeline of context retrieval, drafting (single-shot or Beats mode),
// sanitize, critique/revision loop, polish validation, and the periodic
// Archivist pass.
package scenedrafting

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"narrator/internal/ports"
	"narrator/pkg/agentrunner"
	"narrator/pkg/config"
	"narrator/pkg/eventlog"
	"narrator/pkg/logx"
	"narrator/pkg/normalizer"
	"narrator/pkg/proto"
)

// BeatInsufficient is returned when a Beats-mode part fails to produce
// minimum content after 3 attempts.
type BeatInsufficient struct {
	PartIndex int
}

func (e *BeatInsufficient) Error() string {
	return fmt.Sprintf("scenedrafting: beat part %d insufficient after 3 attempts", e.PartIndex)
}

// Engine drives one scene through drafting, critique/revision, and polish.
type Engine struct {
	writer  *agentrunner.Runner
	critic  *agentrunner.Runner
	vectors ports.VectorStore
	events  eventlog.Store
	cfg     config.Orchestrator
	logger  *logx.Logger
}

// New returns a SceneDraftingEngine. writer and critic are separate
// AgentRunner instances so their prompts/metrics are tracked under
// distinct agent roles, even though both may share the same underlying
// LLMClient.
func New(writer, critic *agentrunner.Runner, vectors ports.VectorStore, events eventlog.Store, cfg config.Orchestrator) *Engine {
	return &Engine{
		writer:  writer,
		critic:  critic,
		vectors: vectors,
		events:  events,
		cfg:     cfg,
		logger:  logx.NewLogger("scenedrafting"),
	}
}

// SceneContext is what the Orchestrator passes in for one scene.
type SceneContext struct {
	RunID      string
	ProjectID  string
	Scene      proto.OutlineScene
	Narrative  proto.Narrative
	Characters []proto.Character
}

// Result is the outcome of DraftScene: the accepted Draft, its critique
// trail, and the PolishStatus for the terminal event.
type Result struct {
	Draft     proto.Draft
	Critiques []proto.Critique
	Polish    proto.PolishStatus
}

// minWordCount is §4.7's floor(0.7 * target).
func minWordCount(target int) int {
	return int(math.Floor(0.7 * float64(target)))
}

// DraftScene runs the full §4.7 algorithm for one scene and emits the
// documented events along the way, including exactly one terminal
// scene_polish_complete event.
func (e *Engine) DraftScene(ctx context.Context, sc SceneContext) (Result, error) {
	target := sc.Scene.WordCount
	if target <= 0 {
		target = normalizer.DefaultWordCount
	}
	minWords := minWordCount(target)

	e.publish(ctx, sc.RunID, proto.EventSceneDraftStart, map[string]any{"sceneNumber": sc.Scene.SceneNumber})

	retrieved, err := e.fetchContext(ctx, sc)
	if err != nil {
		e.logger.Warn("scene %d: context fetch failed: %v", sc.Scene.SceneNumber, err)
	}

	var content, method string
	var partsGenerated int
	if target > e.cfg.BeatsThreshold {
		method = "beats"
		content, partsGenerated, err = e.draftBeats(ctx, sc, target, retrieved)
	} else {
		method = "single_shot"
		content, err = e.draftSingleShot(ctx, sc, retrieved)
		if err == nil {
			content = e.expand(ctx, sc, content, minWords)
		}
	}
	if err != nil {
		return Result{}, err
	}

	content = Sanitize(content)
	draftCompletePayload := map[string]any{
		"sceneNumber": sc.Scene.SceneNumber,
		"wordCount":   wordCount(content),
		"method":      method,
	}
	if method == "beats" {
		draftCompletePayload["partsGenerated"] = partsGenerated
	}
	e.publish(ctx, sc.RunID, proto.EventSceneDraftComplete, draftCompletePayload)

	draft := proto.Draft{
		Title:     sc.Scene.Title,
		Content:   content,
		WordCount: wordCount(content),
		Status:    proto.DraftStatusDrafting,
		CreatedAt: time.Now(),
	}

	critiques, finalCritique, err := e.critiqueLoop(ctx, sc, &draft, target)
	if err != nil {
		return Result{}, err
	}

	polishStatus := proto.PolishStatusNotApproved
	if IsApproved(finalCritique) && !RequiresRevision(finalCritique) {
		draft.Status = proto.DraftStatusApproved
		if finalCritique.Score >= e.cfg.SkipPolishScore {
			polishStatus = proto.PolishStatusSkippedHighScore
		} else {
			polished, status := e.polish(ctx, sc, draft.Content)
			polishStatus = status
			if status == proto.PolishStatusPolished {
				draft.Content = polished
				draft.WordCount = wordCount(polished)
			}
		}
		draft.Status = proto.DraftStatusFinal
	}

	e.publish(ctx, sc.RunID, proto.EventScenePolishComplete, map[string]any{
		"sceneNumber":  sc.Scene.SceneNumber,
		"polishStatus": string(polishStatus),
		"finalContent": draft.Content,
		"wordCount":    draft.WordCount,
	})

	return Result{Draft: draft, Critiques: critiques, Polish: polishStatus}, nil
}

func (e *Engine) fetchContext(ctx context.Context, sc SceneContext) (map[string][]ports.VectorRecord, error) {
	if e.vectors == nil {
		return nil, nil
	}
	query := sc.Scene.Title + " " + sc.Scene.Setting + " " + strings.Join(sc.Scene.Characters, " ")

	out := make(map[string][]ports.VectorRecord, 3)
	for kind, limit := range map[string]int{"character": 3, "worldbuilding": 3, "scene": 2} {
		records, err := e.vectors.Search(ctx, sc.ProjectID, kind, query, limit)
		if err != nil {
			return out, err
		}
		out[kind] = filterBySimilarity(records, e.cfg.SimilarityThreshold)
	}
	return out, nil
}

func filterBySimilarity(records []ports.VectorRecord, threshold float64) []ports.VectorRecord {
	out := make([]ports.VectorRecord, 0, len(records))
	for _, r := range records {
		if r.Score >= threshold {
			out = append(out, r)
		}
	}
	return out
}

func (e *Engine) publish(ctx context.Context, runID string, eventType proto.EventType, data map[string]any) {
	if e.events == nil {
		return
	}
	if _, err := e.events.Publish(ctx, runID, eventType, data); err != nil {
		e.logger.Warn("publish %s failed: %v", eventType, err)
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
