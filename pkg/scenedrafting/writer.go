package scenedrafting

import (
	"context"
	"math"

	"narrator/internal/ports"
	"narrator/pkg/agentrunner"
	"narrator/pkg/proto"
)

const maxBeatAttempts = 3

// draftSingleShot runs one Writer call for scenes at or below the Beats
// threshold.
func (e *Engine) draftSingleShot(ctx context.Context, sc SceneContext, retrieved map[string][]ports.VectorRecord) (string, error) {
	out, err := e.writer.Run(ctx, "writer", writerOptions(sc, map[string]any{
		"mode":    "single_shot",
		"context": retrieved,
	}))
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

// draftBeats runs §4.7's Beats mode: partsTotal parts, each given up to
// maxBeatAttempts attempts in all if short, concatenated with overlap
// stripping.
// partsTotal is also returned so DraftScene can report it on
// scene_draft_complete (§6).
func (e *Engine) draftBeats(ctx context.Context, sc SceneContext, target int, retrieved map[string][]ports.VectorRecord) (string, int, error) {
	partsTotal := clampInt(int(math.Ceil(float64(target)/float64(e.cfg.WordsPerBeat))), 3, 4)
	partTargetWords := int(math.Ceil(float64(target) / float64(partsTotal)))

	var content string
	for part := 1; part <= partsTotal; part++ {
		e.publish(ctx, sc.RunID, proto.EventSceneBeatStart, map[string]any{
			"sceneNumber": sc.Scene.SceneNumber,
			"partIndex":   part,
			"partsTotal":  partsTotal,
		})

		piece, err := e.draftBeatPart(ctx, sc, retrieved, beatPacket{
			PartIndex:       part,
			PartsTotal:      partsTotal,
			PartTargetWords: partTargetWords,
			IsFirstPart:     part == 1,
			IsFinalPart:     part == partsTotal,
			ExistingContent: content,
		})
		if err != nil {
			e.publish(ctx, sc.RunID, proto.EventSceneBeatError, map[string]any{
				"sceneNumber": sc.Scene.SceneNumber,
				"partIndex":   part,
			})
			return "", partsTotal, err
		}

		if part >= 2 {
			piece = StripOverlap(content, piece)
		}
		if content == "" {
			content = piece
		} else {
			content = content + "\n\n" + piece
		}

		e.publish(ctx, sc.RunID, proto.EventSceneBeatComplete, map[string]any{
			"sceneNumber": sc.Scene.SceneNumber,
			"partIndex":   part,
		})
	}
	return content, partsTotal, nil
}

type beatPacket struct {
	PartIndex       int
	PartsTotal      int
	PartTargetWords int
	IsFirstPart     bool
	IsFinalPart     bool
	ExistingContent string
}

// draftBeatPart invokes Writer for one beat, making up to maxBeatAttempts
// attempts in all while the returned content is short, and failing with
// BeatInsufficient if every attempt comes up short.
func (e *Engine) draftBeatPart(ctx context.Context, sc SceneContext, retrieved map[string][]ports.VectorRecord, packet beatPacket) (string, error) {
	for attempt := 1; attempt <= maxBeatAttempts; attempt++ {
		out, err := e.writer.Run(ctx, "writer", writerOptions(sc, map[string]any{
			"mode":            "beats",
			"context":         retrieved,
			"beatsMode":       true,
			"partIndex":       packet.PartIndex,
			"partsTotal":      packet.PartsTotal,
			"partTargetWords": packet.PartTargetWords,
			"isFirstPart":     packet.IsFirstPart,
			"isFinalPart":     packet.IsFinalPart,
			"existingContent": packet.ExistingContent,
		}))
		if err != nil {
			return "", err
		}
		if wordCount(out.Content) >= int(0.5*float64(packet.PartTargetWords)) {
			return out.Content, nil
		}
	}
	return "", &BeatInsufficient{PartIndex: packet.PartIndex}
}

// expand runs up to cfg.MaxExpansions rounds of §4.7.2 Expansion while
// content remains below minWords.
func (e *Engine) expand(ctx context.Context, sc SceneContext, content string, minWords int) string {
	for round := 1; round <= e.cfg.MaxExpansions && wordCount(content) < minWords; round++ {
		e.publish(ctx, sc.RunID, proto.EventSceneExpandStart, map[string]any{
			"sceneNumber": sc.Scene.SceneNumber,
			"round":       round,
		})

		additional := minWords - wordCount(content)
		out, err := e.writer.Run(ctx, "writer", writerOptions(sc, map[string]any{
			"mode":                  "expansion",
			"expansionMode":         true,
			"existingContent":       content,
			"additionalWordsNeeded": additional,
		}))
		if err != nil {
			e.logger.Warn("scene %d expansion round %d failed: %v", sc.Scene.SceneNumber, round, err)
			continue
		}

		stripped := StripOverlap(content, out.Content)
		if stripped == "" {
			// Stripping would empty the continuation; keep content as-is
			// for this round per §4.7.2.
			continue
		}
		content = content + "\n\n" + stripped

		e.publish(ctx, sc.RunID, proto.EventSceneExpandComplete, map[string]any{
			"sceneNumber": sc.Scene.SceneNumber,
			"round":       round,
			"wordCount":   wordCount(content),
		})
	}
	return content
}

func writerOptions(sc SceneContext, vars map[string]any) agentrunner.Options {
	vars["sceneNumber"] = sc.Scene.SceneNumber
	vars["title"] = sc.Scene.Title
	vars["setting"] = sc.Scene.Setting
	vars["characters"] = sc.Scene.Characters
	return agentrunner.Options{Phase: "drafting", Vars: vars, Fallback: writerFallbackTemplate}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

const writerFallbackTemplate = "Write scene {{.sceneNumber}} (\"{{.title}}\") set in {{.setting}}, featuring {{.characters}}."
