// Package worldstate implements WorldStateApplier: applying Archivist-
// produced diffs to the world model with a deterministic additions-before-
// removals-before-field-sets ordering, and never mutating its inputs.
package worldstate

import (
	"narrator/pkg/logx"
	"narrator/pkg/proto"
)

var logger = logx.NewLogger("worldstate")

// sectionOrder fixes the processing order so that Apply's determinism does
// not depend on how producers ordered the sections in the diff document.
var sectionOrder = []string{"characters", "locations", "flags"}

// section is one top-level diff entry after validation.
type section struct {
	additions map[string]any
	removals  []string
	fieldSets map[string]map[string]any
}

// Apply applies diff to current, returning a new WorldState. diff is the
// loosely-typed document an Archivist pass produces (already run through
// the OutputNormalizer): a map with up to three recognized top-level keys,
// "characters", "locations", "flags", each shaped like
// {"additions": {...}, "removals": [...], "fieldSets": {...}}.
// Unknown top-level keys are logged and ignored. current is never mutated.
func Apply(current proto.WorldState, diff map[string]any, sceneNumber int) proto.WorldState {
	next := clone(current)

	sections := make(map[string]section, len(diff))
	for key, raw := range diff {
		if !isRecognizedSection(key) {
			logger.Warn("worldstate diff: ignoring unknown top-level key %q", key)
			continue
		}
		sections[key] = decodeSection(raw)
	}

	for _, name := range sectionOrder {
		sec, ok := sections[name]
		if !ok {
			continue
		}
		applyAdditions(&next, name, sec.additions)
	}
	for _, name := range sectionOrder {
		sec, ok := sections[name]
		if !ok {
			continue
		}
		applyRemovals(&next, name, sec.removals)
	}
	for _, name := range sectionOrder {
		sec, ok := sections[name]
		if !ok {
			continue
		}
		applyFieldSets(&next, name, sec.fieldSets)
	}

	_ = sceneNumber // reserved for callers that want to stamp provenance on the diff itself
	return next
}

func isRecognizedSection(key string) bool {
	for _, name := range sectionOrder {
		if key == name {
			return true
		}
	}
	return false
}

func decodeSection(raw any) section {
	m, ok := raw.(map[string]any)
	if !ok {
		return section{}
	}

	sec := section{}
	if a, ok := m["additions"].(map[string]any); ok {
		sec.additions = a
	}
	if r, ok := m["removals"].([]any); ok {
		for _, v := range r {
			if s, ok := v.(string); ok {
				sec.removals = append(sec.removals, s)
			}
		}
	} else if r, ok := m["removals"].([]string); ok {
		sec.removals = r
	}
	if fs, ok := m["fieldSets"].(map[string]any); ok {
		sec.fieldSets = make(map[string]map[string]any, len(fs))
		for entity, fields := range fs {
			if fm, ok := fields.(map[string]any); ok {
				sec.fieldSets[entity] = fm
			}
		}
	}
	return sec
}

func clone(ws proto.WorldState) proto.WorldState {
	next := proto.NewWorldState()
	for name, c := range ws.Characters {
		next.Characters[name] = cloneCharacter(c)
	}
	for name, v := range ws.Locations {
		next.Locations[name] = v
	}
	for name, v := range ws.Flags {
		next.Flags[name] = v
	}
	return next
}

func cloneCharacter(c proto.CharacterState) proto.CharacterState {
	out := proto.CharacterState{
		Location: c.Location,
		Status:   c.Status,
	}
	if c.Possessions != nil {
		out.Possessions = append([]string{}, c.Possessions...)
	}
	if c.Relationships != nil {
		out.Relationships = make(map[string]string, len(c.Relationships))
		for k, v := range c.Relationships {
			out.Relationships[k] = v
		}
	}
	return out
}

func applyAdditions(ws *proto.WorldState, section string, additions map[string]any) {
	for name, raw := range additions {
		switch section {
		case "characters":
			ws.Characters[name] = decodeCharacterState(raw)
		case "locations":
			ws.Locations[name] = raw
		case "flags":
			ws.Flags[name] = raw
		}
	}
}

func applyRemovals(ws *proto.WorldState, section string, removals []string) {
	for _, name := range removals {
		switch section {
		case "characters":
			delete(ws.Characters, name)
		case "locations":
			delete(ws.Locations, name)
		case "flags":
			delete(ws.Flags, name)
		}
	}
}

func applyFieldSets(ws *proto.WorldState, section string, fieldSets map[string]map[string]any) {
	for name, fields := range fieldSets {
		switch section {
		case "characters":
			cs, ok := ws.Characters[name]
			if !ok {
				cs = proto.CharacterState{Relationships: map[string]string{}}
			}
			applyCharacterFieldSet(&cs, fields)
			ws.Characters[name] = cs
		case "locations":
			existing, _ := ws.Locations[name].(map[string]any)
			ws.Locations[name] = mergeFields(existing, fields)
		case "flags":
			existing, _ := ws.Flags[name].(map[string]any)
			ws.Flags[name] = mergeFields(existing, fields)
		}
	}
}

func applyCharacterFieldSet(cs *proto.CharacterState, fields map[string]any) {
	if v, ok := fields["location"].(string); ok {
		cs.Location = v
	}
	if v, ok := fields["status"].(string); ok {
		cs.Status = v
	}
	if v, ok := fields["possessions"].([]any); ok {
		possessions := make([]string, 0, len(v))
		for _, p := range v {
			if s, ok := p.(string); ok {
				possessions = append(possessions, s)
			}
		}
		cs.Possessions = possessions
	}
	if v, ok := fields["relationships"].(map[string]any); ok {
		if cs.Relationships == nil {
			cs.Relationships = make(map[string]string, len(v))
		}
		for k, val := range v {
			if s, ok := val.(string); ok {
				cs.Relationships[k] = s
			}
		}
	}
}

func mergeFields(existing map[string]any, fields map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(fields))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func decodeCharacterState(raw any) proto.CharacterState {
	m, ok := raw.(map[string]any)
	if !ok {
		return proto.CharacterState{Location: "unknown", Status: "alive", Relationships: map[string]string{}}
	}
	cs := proto.CharacterState{Location: "unknown", Status: "alive", Relationships: map[string]string{}}
	applyCharacterFieldSet(&cs, m)
	return cs
}

// InitialFromCharacters builds the WorldState installed right after the
// Characters phase: one entry per character, location "unknown", status
// "alive", empty possessions/relationships.
func InitialFromCharacters(characters []proto.Character) proto.WorldState {
	ws := proto.NewWorldState()
	for _, c := range characters {
		ws.Characters[c.Name] = proto.CharacterState{
			Location:      "unknown",
			Status:        "alive",
			Possessions:   []string{},
			Relationships: map[string]string{},
		}
	}
	return ws
}
