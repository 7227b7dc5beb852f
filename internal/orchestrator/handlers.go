package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"narrator/pkg/agentrunner"
	"narrator/pkg/normalizer"
	"narrator/pkg/proto"
	"narrator/pkg/worldstate"
)

// Baked-in fallback templates for every setup-phase agent, used when the
// PromptStore has no named template registered (ports.PromptStore.Compile's
// documented fallback contract).
const (
	genesisFallbackTemplate = "Given the seed idea {{.seedIdea}} (mode: {{.mode}}), output as JSON: " +
		"{premise, genre, tone, arc, themes: [string], hook}."
	charactersFallbackTemplate = "Given this narrative: {{.narrative}}, output as JSON array of characters, " +
		"each {name, role, psychology, backstory}. Output as JSON."
	narratorDesignFallbackTemplate = "Given this narrative: {{.narrative}} and these characters: {{.characters}}, " +
		"refine the narrative voice and point of view. Output as JSON: {premise, genre, tone, arc, themes: [string], hook}."
	worldbuildingFallbackTemplate = "Given this narrative: {{.narrative}} and these characters: {{.characters}}, " +
		"output as JSON object keyed by element type, each {description, details}."
	outliningFallbackTemplate = "Given this narrative: {{.narrative}}, these characters: {{.characters}}, and this " +
		"worldbuilding: {{.worldbuilding}}, output as JSON: {scenes: [{sceneNumber, title, setting, characters: [string], wordCount, hook, futureEvents: [string]}]}."
	advancedPlanningFallbackTemplate = "Given this outline: {{.outline}}, add future-event hooks and continuity notes " +
		"per scene. Output as JSON: {scenes: [{sceneNumber, futureEvents: [string]}]}."
	originalityFallbackTemplate = "Given this manuscript content: {{.content}}, score its originality from 1-10 and " +
		"list any derivative passages. Output as JSON: {score, notes: [string]}."
	impactFallbackTemplate = "Given this manuscript content: {{.content}}, score its narrative impact from 1-10 and " +
		"list its strongest and weakest beats. Output as JSON: {score, notes: [string]}."
)

// phaseHandler runs one setup phase to completion: call the agent, parse
// and store its output, and advance rs.run.Phase. Drafting is handled
// separately (drafting.go) since it owns a per-scene sub-loop rather than
// a single agent call.
type phaseHandler func(ctx context.Context, s *Service, rs *runState) error

var setupHandlers = map[proto.Phase]phaseHandler{
	proto.PhaseGenesis:          genesisHandler,
	proto.PhaseCharacters:       charactersHandler,
	proto.PhaseNarratorDesign:   narratorDesignHandler,
	proto.PhaseWorldbuilding:    worldbuildingHandler,
	proto.PhaseOutlining:        outliningHandler,
	proto.PhaseAdvancedPlanning: advancedPlanningHandler,
	proto.PhaseOriginalityCheck: originalityHandler,
	proto.PhaseImpactAssessment: impactHandler,
	proto.PhasePolish:           polishHandler,
}

func decodeJSONObject(content string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(content), &m); err != nil {
		return nil, fmt.Errorf("decode agent output JSON: %w", err)
	}
	return m, nil
}

func unwrapToObject(v any) (map[string]any, error) {
	unwrapped := normalizer.UnwrapEnvelope(v)
	m, ok := unwrapped.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object after unwrapping, got %T", unwrapped)
	}
	return normalizer.CanonicalizeFields(m), nil
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

// publishPhase emits phase_start/phase_complete for a setup phase.
func (s *Service) publishPhase(ctx context.Context, runID string, eventType proto.EventType, phase proto.Phase, artifact any) {
	data := map[string]any{"phase": string(phase)}
	if artifact != nil {
		data["artifact"] = artifact
	}
	s.publish(ctx, runID, eventType, data)
}

// advanceLinear publishes phase_complete then moves rs.run.Phase to from's
// single successor.
func (s *Service) advanceLinear(ctx context.Context, rs *runState, from proto.Phase, artifact any) error {
	next, err := NextLinearPhase(from)
	if err != nil {
		return err
	}
	return s.advanceTo(ctx, rs, from, next, artifact)
}

// advanceTo publishes phase_complete for from then moves rs.run.Phase
// straight to to, bypassing the phaseTransitions lookup advanceLinear uses.
// draftingHandler is the one caller that needs this: Critique/Revision are
// per-scene sub-states SceneDraftingEngine tracks entirely on its own, so
// the outer run phase never actually visits them (§4.8) even though they
// are real nodes in the documented phase graph.
func (s *Service) advanceTo(ctx context.Context, rs *runState, from, to proto.Phase, artifact any) error {
	s.publishPhase(ctx, rs.run.RunID, proto.EventPhaseComplete, from, artifact)
	rs.setPhase(to)
	return nil
}

func genesisHandler(ctx context.Context, s *Service, rs *runState) error {
	runID := rs.run.RunID
	s.publishPhase(ctx, runID, proto.EventPhaseStart, proto.PhaseGenesis, nil)

	out, err := s.runner.Run(ctx, "architect", agentrunner.Options{
		Phase:    string(proto.PhaseGenesis),
		Fallback: genesisFallbackTemplate,
		Vars:     map[string]any{"seedIdea": rs.run.SeedIdea, "mode": string(rs.run.Mode)},
	})
	if err != nil {
		return err
	}

	obj, err := decodeJSONObject(out.Content)
	if err != nil {
		return &agentrunner.ValidationError{FieldPath: "genesis", Err: err}
	}
	m, err := unwrapToObject(obj)
	if err != nil {
		return &agentrunner.ValidationError{FieldPath: "genesis", Err: err}
	}

	narrative := proto.Narrative{
		Premise: stringField(m, "premise"),
		Genre:   stringField(m, "genre"),
		Tone:    stringField(m, "tone"),
		Arc:     stringField(m, "arc"),
		Themes:  stringSlice(m["themes"]),
		Hook:    stringField(m, "hook"),
	}
	rs.artifacts.Narrative = narrative

	if err := s.artifacts.Save(ctx, runID, string(proto.ArtifactNarrative), narrative); err != nil {
		s.logger.Warn("save narrative artifact for run %s: %v", runID, err)
	}

	installSeedConstraints(rs, narrative)

	return s.advanceLinear(ctx, rs, proto.PhaseGenesis, narrative)
}

// installSeedConstraints implements §4.8's "install seed constraints at the
// end of Genesis": the five immutable keys in proto.SeedConstraintKeys.
func installSeedConstraints(rs *runState, narrative proto.Narrative) {
	now := time.Now().UTC()
	values := map[string]string{
		"seed_idea":     rs.run.SeedIdea,
		"genre":         narrative.Genre,
		"premise":       narrative.Premise,
		"tone":          narrative.Tone,
		"narrative_arc": narrative.Arc,
	}
	seed := make([]proto.KeyConstraint, 0, len(proto.SeedConstraintKeys))
	for _, key := range proto.SeedConstraintKeys {
		seed = append(seed, proto.KeyConstraint{Key: key, Value: values[key], SceneNumber: 0, Timestamp: now})
	}
	rs.constraints.AddSeed(seed)
}

func charactersHandler(ctx context.Context, s *Service, rs *runState) error {
	runID := rs.run.RunID
	s.publishPhase(ctx, runID, proto.EventPhaseStart, proto.PhaseCharacters, nil)

	out, err := s.runner.Run(ctx, "profiler", agentrunner.Options{
		Phase:    string(proto.PhaseCharacters),
		Fallback: charactersFallbackTemplate,
		Vars:     map[string]any{"narrative": rs.artifacts.Narrative},
	})
	if err != nil {
		return err
	}

	var raw any
	if err := json.Unmarshal([]byte(out.Content), &raw); err != nil {
		return &agentrunner.ValidationError{FieldPath: "characters", Err: err}
	}

	unwrapped := normalizer.UnwrapEnvelope(raw)
	arr, ok := unwrapped.([]any)
	if !ok {
		return &agentrunner.ValidationError{FieldPath: "characters", Err: fmt.Errorf("expected a JSON array")}
	}

	characters := make([]proto.Character, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		normalizer.CanonicalizeFields(m)
		characters = append(characters, proto.Character{
			Name:       stringField(m, "name"),
			Role:       normalizer.NormalizeRole(stringField(m, "role")),
			Psychology: stringField(m, "psychology"),
			Backstory:  stringField(m, "backstory"),
		})
	}
	rs.artifacts.Characters = characters

	if err := s.artifacts.Save(ctx, runID, string(proto.ArtifactCharacters), characters); err != nil {
		s.logger.Warn("save characters artifact for run %s: %v", runID, err)
	}
	s.indexCharacters(ctx, rs.run.ProjectID, characters)

	return s.advanceLinear(ctx, rs, proto.PhaseCharacters, characters)
}

// narratorDesignHandler refines the Genesis-produced Narrative with
// point-of-view and voice decisions. The data model has no dedicated
// artifact type for this phase (§3's persisted-state list names only
// narrative/characters/worldbuilding/outline/advanced_plan/scene artifacts),
// so its output is merged back into the existing Narrative: each non-empty
// tone/arc/hook/themes value it returns replaces the Genesis value (premise
// and genre are left as Genesis produced them), and the result is re-saved
// under the narrative artifact type.
func narratorDesignHandler(ctx context.Context, s *Service, rs *runState) error {
	runID := rs.run.RunID
	s.publishPhase(ctx, runID, proto.EventPhaseStart, proto.PhaseNarratorDesign, nil)

	out, err := s.runner.Run(ctx, "profiler", agentrunner.Options{
		Phase:    string(proto.PhaseNarratorDesign),
		Fallback: narratorDesignFallbackTemplate,
		Vars: map[string]any{
			"narrative":  rs.artifacts.Narrative,
			"characters": rs.artifacts.Characters,
		},
	})
	if err != nil {
		return err
	}

	obj, err := decodeJSONObject(out.Content)
	if err != nil {
		return &agentrunner.ValidationError{FieldPath: "narrator_design", Err: err}
	}
	m, err := unwrapToObject(obj)
	if err != nil {
		return &agentrunner.ValidationError{FieldPath: "narrator_design", Err: err}
	}

	refined := rs.artifacts.Narrative
	if v := stringField(m, "tone"); v != "" {
		refined.Tone = v
	}
	if v := stringField(m, "arc"); v != "" {
		refined.Arc = v
	}
	if v := stringField(m, "hook"); v != "" {
		refined.Hook = v
	}
	if themes := stringSlice(m["themes"]); len(themes) > 0 {
		refined.Themes = themes
	}
	rs.artifacts.Narrative = refined

	if err := s.artifacts.Save(ctx, runID, string(proto.ArtifactNarrative), refined); err != nil {
		s.logger.Warn("save narrative artifact for run %s: %v", runID, err)
	}

	return s.advanceLinear(ctx, rs, proto.PhaseNarratorDesign, refined)
}

func worldbuildingHandler(ctx context.Context, s *Service, rs *runState) error {
	runID := rs.run.RunID
	s.publishPhase(ctx, runID, proto.EventPhaseStart, proto.PhaseWorldbuilding, nil)

	out, err := s.runner.Run(ctx, "worldbuilder", agentrunner.Options{
		Phase:    string(proto.PhaseWorldbuilding),
		Fallback: worldbuildingFallbackTemplate,
		Vars: map[string]any{
			"narrative":  rs.artifacts.Narrative,
			"characters": rs.artifacts.Characters,
		},
	})
	if err != nil {
		return err
	}

	obj, err := decodeJSONObject(out.Content)
	if err != nil {
		return &agentrunner.ValidationError{FieldPath: "worldbuilding", Err: err}
	}
	m, err := unwrapToObject(obj)
	if err != nil {
		return &agentrunner.ValidationError{FieldPath: "worldbuilding", Err: err}
	}

	elements := make(map[string]proto.WorldElement, len(m))
	for key, raw := range m {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		element := proto.WorldElement{Description: stringField(entry, "description")}
		if details, ok := entry["details"].(map[string]any); ok {
			element.Details = make(map[string]string, len(details))
			for k, v := range details {
				if s, ok := v.(string); ok {
					element.Details[k] = s
				}
			}
		}
		elements[key] = element
	}
	rs.artifacts.Worldbuilding = elements
	rs.world = worldstate.InitialFromCharacters(rs.artifacts.Characters)

	if err := s.artifacts.Save(ctx, runID, string(proto.ArtifactWorldbuilding), elements); err != nil {
		s.logger.Warn("save worldbuilding artifact for run %s: %v", runID, err)
	}
	s.indexWorldbuilding(ctx, rs.run.ProjectID, elements)

	return s.advanceLinear(ctx, rs, proto.PhaseWorldbuilding, elements)
}

func outliningHandler(ctx context.Context, s *Service, rs *runState) error {
	runID := rs.run.RunID
	s.publishPhase(ctx, runID, proto.EventPhaseStart, proto.PhaseOutlining, nil)

	out, err := s.runner.Run(ctx, "strategist", agentrunner.Options{
		Phase:    string(proto.PhaseOutlining),
		Fallback: outliningFallbackTemplate,
		Vars: map[string]any{
			"narrative":     rs.artifacts.Narrative,
			"characters":    rs.artifacts.Characters,
			"worldbuilding": rs.artifacts.Worldbuilding,
		},
	})
	if err != nil {
		return err
	}

	var raw any
	if err := json.Unmarshal([]byte(out.Content), &raw); err != nil {
		return &agentrunner.ValidationError{FieldPath: "outline", Err: err}
	}

	normalized := normalizer.NormalizeOutline(raw)
	scenes, _ := normalized["scenes"].([]any)

	outline := proto.Outline{Scenes: make([]proto.OutlineScene, 0, len(scenes))}
	for _, item := range scenes {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		outline.Scenes = append(outline.Scenes, proto.OutlineScene{
			SceneNumber:  toInt(m["sceneNumber"]),
			Title:        stringField(m, "title"),
			Setting:      stringField(m, "setting"),
			Characters:   stringSlice(m["characters"]),
			WordCount:    toInt(m["wordCount"]),
			Hook:         stringField(m, "hook"),
			FutureEvents: stringSlice(m["futureEvents"]),
		})
	}
	if len(outline.Scenes) == 0 {
		return &agentrunner.ValidationError{FieldPath: "outline.scenes", Err: fmt.Errorf("outline produced no scenes")}
	}
	rs.artifacts.Outline = outline
	rs.setTotalScenes(len(outline.Scenes))

	if err := s.artifacts.Save(ctx, runID, string(proto.ArtifactOutline), outline); err != nil {
		s.logger.Warn("save outline artifact for run %s: %v", runID, err)
	}

	return s.advanceLinear(ctx, rs, proto.PhaseOutlining, outline)
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	default:
		return 0
	}
}

// advancedPlanningHandler refines each scene's hooks/future-events without
// otherwise changing the outline's structure, and separately persists the
// raw refinement as its own advanced_plan artifact (§3/§6 list this as a
// distinct ArtifactType from outline).
func advancedPlanningHandler(ctx context.Context, s *Service, rs *runState) error {
	runID := rs.run.RunID
	s.publishPhase(ctx, runID, proto.EventPhaseStart, proto.PhaseAdvancedPlanning, nil)

	out, err := s.runner.Run(ctx, "strategist", agentrunner.Options{
		Phase:    string(proto.PhaseAdvancedPlanning),
		Fallback: advancedPlanningFallbackTemplate,
		Vars:     map[string]any{"outline": rs.artifacts.Outline},
	})
	if err != nil {
		return err
	}

	obj, err := decodeJSONObject(out.Content)
	if err != nil {
		return &agentrunner.ValidationError{FieldPath: "advanced_planning", Err: err}
	}
	m, err := unwrapToObject(obj)
	if err != nil {
		return &agentrunner.ValidationError{FieldPath: "advanced_planning", Err: err}
	}

	if rawScenes, ok := m["scenes"].([]any); ok {
		bySceneNumber := make(map[int][]string, len(rawScenes))
		for _, item := range rawScenes {
			sm, ok := item.(map[string]any)
			if !ok {
				continue
			}
			normalizer.CanonicalizeFields(sm)
			bySceneNumber[toInt(sm["sceneNumber"])] = stringSlice(sm["futureEvents"])
		}
		for i, scene := range rs.artifacts.Outline.Scenes {
			if events, ok := bySceneNumber[scene.SceneNumber]; ok && len(events) > 0 {
				rs.artifacts.Outline.Scenes[i].FutureEvents = events
			}
		}
	}

	if err := s.artifacts.Save(ctx, runID, string(proto.ArtifactAdvancedPlan), m); err != nil {
		s.logger.Warn("save advanced_plan artifact for run %s: %v", runID, err)
	}

	return s.advanceLinear(ctx, rs, proto.PhaseAdvancedPlanning, m)
}

// evaluationResult is the common {score, notes} shape both OriginalityCheck
// and ImpactAssessment agents return.
type evaluationResult struct {
	Score int      `json:"score"`
	Notes []string `json:"notes,omitempty"`
}

func runEvaluation(ctx context.Context, s *Service, rs *runState, agentID string, phase proto.Phase, fallback string) (evaluationResult, error) {
	release, err := s.evalLimit.Acquire(ctx)
	if err != nil {
		return evaluationResult{}, err
	}
	defer release()

	content := manuscriptText(rs)
	out, err := s.runner.Run(ctx, agentID, agentrunner.Options{
		Phase:    string(phase),
		Fallback: fallback,
		Vars:     map[string]any{"content": content},
	})
	if err != nil {
		return evaluationResult{}, err
	}

	obj, err := decodeJSONObject(out.Content)
	if err != nil {
		return evaluationResult{}, &agentrunner.ValidationError{FieldPath: string(phase), Err: err}
	}
	m, err := unwrapToObject(obj)
	if err != nil {
		return evaluationResult{}, &agentrunner.ValidationError{FieldPath: string(phase), Err: err}
	}
	return evaluationResult{Score: normalizer.ClampScore(floatField(m, "score")), Notes: stringSlice(m["notes"])}, nil
}

// manuscriptText concatenates every finalized scene's content in scene
// order, for the two whole-manuscript evaluation passes.
func manuscriptText(rs *runState) string {
	var out string
	for _, scene := range rs.artifacts.Outline.Scenes {
		if d, ok := rs.artifacts.Drafts[scene.SceneNumber]; ok {
			out += d.Content + "\n\n"
		}
	}
	return out
}

// neutralEvaluationScore is used when an evaluation agent's output fails
// validation (§7: ValidationError on an evaluator has a safe fallback, so
// the run continues rather than transitioning to ERROR).
const neutralEvaluationScore = 5

func originalityHandler(ctx context.Context, s *Service, rs *runState) error {
	runID := rs.run.RunID
	s.publishPhase(ctx, runID, proto.EventPhaseStart, proto.PhaseOriginalityCheck, nil)

	result, err := runEvaluation(ctx, s, rs, "originality", proto.PhaseOriginalityCheck, originalityFallbackTemplate)
	if err != nil {
		if !isValidationError(err) {
			return err
		}
		s.logger.Warn("originality check for run %s: %v (using neutral fallback score)", runID, err)
		result = evaluationResult{Score: neutralEvaluationScore}
	}

	return s.advanceLinear(ctx, rs, proto.PhaseOriginalityCheck, result)
}

func impactHandler(ctx context.Context, s *Service, rs *runState) error {
	runID := rs.run.RunID
	s.publishPhase(ctx, runID, proto.EventPhaseStart, proto.PhaseImpactAssessment, nil)

	result, err := runEvaluation(ctx, s, rs, "impact", proto.PhaseImpactAssessment, impactFallbackTemplate)
	if err != nil {
		if !isValidationError(err) {
			return err
		}
		s.logger.Warn("impact assessment for run %s: %v (using neutral fallback score)", runID, err)
		result = evaluationResult{Score: neutralEvaluationScore}
	}

	return s.advanceLinear(ctx, rs, proto.PhaseImpactAssessment, result)
}

// polishHandler closes the run out. The real per-scene Writer polish pass
// already ran inside Drafting (§4.7.4); this terminal phase has no agent
// call of its own left to make; it exists only so the graph's documented
// Polish node has a handler that emits phase_start/phase_complete and
// flips the run to its Completed terminal state.
func polishHandler(ctx context.Context, s *Service, rs *runState) error {
	runID := rs.run.RunID
	s.publishPhase(ctx, runID, proto.EventPhaseStart, proto.PhasePolish, nil)

	summary := map[string]any{"totalScenes": rs.run.TotalScenes}
	s.publishPhase(ctx, runID, proto.EventPhaseComplete, proto.PhasePolish, summary)

	rs.setCompleted()
	s.publish(ctx, runID, proto.EventGenerationCompleted, summary)
	return nil
}
