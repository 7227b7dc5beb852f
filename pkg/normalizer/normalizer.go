// Package normalizer implements the OutputNormalizer: a purely functional
// set of coercions turning loosely-structured LLM JSON into the canonical
// shapes pkg/proto expects. No step here ever calls out to an LLM or any
// other collaborator — every function is a pure transform over decoded
// JSON values (map[string]any / []any / primitives).
package normalizer

import (
	"strconv"
	"strings"
)

// envelopeKeys are the single-key wrapper names an LLM response may use
// around its real payload; UnwrapEnvelope strips exactly one layer of these.
var envelopeKeys = map[string]bool{
	"characters": true, "worldbuilding": true, "world": true, "outline": true,
	"narrative": true, "genesis": true, "critique": true, "feedback": true,
	"data": true, "result": true,
}

// UnwrapEnvelope removes a single-key wrapper (e.g. {"characters": [...]})
// if the object has exactly one key and that key is a recognized envelope
// name. Any other shape, including a multi-key object, passes through
// unchanged.
func UnwrapEnvelope(v any) any {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v
	}
	for k, inner := range m {
		if envelopeKeys[k] {
			return inner
		}
	}
	return v
}

// fieldAlias is one canonicalization rule: the first of Aliases found
// non-empty in the source map is copied to Canonical, unless Canonical
// already has a non-empty value.
type fieldAlias struct {
	Aliases   []string
	Canonical string
}

var fieldAliases = []fieldAlias{
	{Aliases: []string{"name", "fullName", "characterName"}, Canonical: "name"},
	{Aliases: []string{"psychology", "Psychology"}, Canonical: "psychology"},
	{Aliases: []string{"backstory", "background"}, Canonical: "backstory"},
	{Aliases: []string{"sceneNumber", "scene_number", "number"}, Canonical: "sceneNumber"},
	{Aliases: []string{"revisionNeeded", "revision_needed"}, Canonical: "revisionNeeded"},
	{Aliases: []string{"wordCountCompliance", "word_count_compliance"}, Canonical: "wordCountCompliance"},
	{Aliases: []string{"scopeAdherence", "scope_adherence"}, Canonical: "scopeAdherence"},
	{Aliases: []string{"wordCount", "word_count"}, Canonical: "wordCount"},
	{Aliases: []string{"futureEvents", "future_events"}, Canonical: "futureEvents"},
	{Aliases: []string{"revisionRequests", "revision_requests"}, Canonical: "revisionRequests"},
}

// CanonicalizeFields rewrites m in place, applying each fieldAlias rule
// left-to-right: the first alias with a non-empty value wins, and an
// already-present canonical field is never overwritten. m itself is
// mutated and returned for convenience; callers that must not mutate their
// input should pass a copy.
func CanonicalizeFields(m map[string]any) map[string]any {
	for _, rule := range fieldAliases {
		if isNonEmpty(m[rule.Canonical]) {
			continue
		}
		for _, alias := range rule.Aliases {
			if alias == rule.Canonical {
				continue
			}
			if v, ok := m[alias]; ok && isNonEmpty(v) {
				m[rule.Canonical] = v
				break
			}
		}
	}
	return m
}

func isNonEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	default:
		return true
	}
}

var roleSynonyms = map[string]string{
	"hero":           "protagonist",
	"main":           "protagonist",
	"main character": "protagonist",
	"villain":        "antagonist",
	"side":           "supporting",
	"secondary":      "supporting",
	"minor":          "supporting",
}

// NormalizeRole maps role synonyms onto the canonical set
// {protagonist, antagonist, supporting}. Unknown roles are lowercased and
// passed through unchanged.
func NormalizeRole(role string) string {
	lower := strings.ToLower(strings.TrimSpace(role))
	if canonical, ok := roleSynonyms[lower]; ok {
		return canonical
	}
	return lower
}

// DefaultWordCount is used when an outline scene's word count cannot be
// parsed at all (empty after stripping, or non-positive).
const DefaultWordCount = 1500

// ParseWordCount parses a word count that may arrive as a number or as a
// string with thousands separators ("1,900", "~1900 words"). Non-digit
// characters are stripped before parsing; an empty or non-positive result
// falls back to DefaultWordCount.
func ParseWordCount(v any) int {
	switch t := v.(type) {
	case float64:
		if t > 0 {
			return int(t)
		}
		return DefaultWordCount
	case int:
		if t > 0 {
			return t
		}
		return DefaultWordCount
	case string:
		var digits strings.Builder
		for _, r := range t {
			if r >= '0' && r <= '9' {
				digits.WriteRune(r)
			}
		}
		if digits.Len() == 0 {
			return DefaultWordCount
		}
		n, err := strconv.Atoi(digits.String())
		if err != nil || n <= 0 {
			return DefaultWordCount
		}
		return n
	default:
		return DefaultWordCount
	}
}

// NormalizeOutline coerces raw into the canonical {"scenes": [...]} shape:
// a bare array is wrapped, and each scene is given a sceneNumber (falling
// back to its 1-based position) and a title (falling back to "name", then
// to "Scene N").
func NormalizeOutline(raw any) map[string]any {
	unwrapped := UnwrapEnvelope(raw)

	var scenes []any
	switch t := unwrapped.(type) {
	case []any:
		scenes = t
	case map[string]any:
		if s, ok := t["scenes"].([]any); ok {
			scenes = s
		} else {
			return map[string]any{"scenes": []any{}}
		}
	default:
		return map[string]any{"scenes": []any{}}
	}

	out := make([]any, 0, len(scenes))
	for i, raw := range scenes {
		scene, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		scene = CanonicalizeFields(scene)

		if !isNonEmpty(scene["sceneNumber"]) {
			scene["sceneNumber"] = i + 1
		}
		if !isNonEmpty(scene["title"]) {
			if name, ok := scene["name"].(string); ok && name != "" {
				scene["title"] = name
			} else {
				scene["title"] = "Scene " + strconv.Itoa(toInt(scene["sceneNumber"]))
			}
		}
		if wc, ok := scene["wordCount"]; ok {
			scene["wordCount"] = ParseWordCount(wc)
		} else {
			scene["wordCount"] = DefaultWordCount
		}
		out = append(out, scene)
	}
	return map[string]any{"scenes": out}
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

// ClampScore clamps a critique score into [1, 10].
func ClampScore(score float64) int {
	n := int(score)
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}
