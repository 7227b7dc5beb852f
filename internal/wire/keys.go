// Package wire implements the persistence-boundary transforms from §6/§9:
// a bidirectional camelCase<->snake_case key mapping for JSON-shaped
// documents, and the map[int]T <-> []KeyedT projection used wherever a
// sceneNumber-keyed map (drafts, critiques, revisionCount) crosses into the
// Artifacts store or a snapshot document.
package wire

import (
	"strings"
	"unicode"
)

// ToSnakeCase converts a camelCase (or PascalCase) identifier to snake_case.
// Consecutive uppercase runs are treated as a single word boundary, so
// "apiKey" -> "api_key" and "llmConfig" -> "llm_config".
func ToSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || nextLower) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ToCamelCase converts a snake_case identifier to camelCase.
func ToCamelCase(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// KeysToSnake recursively rewrites every map key in v from camelCase to
// snake_case, for documents about to cross the persistence boundary.
// Non-map values (including slice elements) are walked but not transformed.
func KeysToSnake(v any) any {
	return transformKeys(v, ToSnakeCase)
}

// KeysToCamel recursively rewrites every map key in v from snake_case (or
// already-camelCase) to camelCase, for documents read back from the
// persistence boundary or accepted from an inbound request per spec.md
// §6's "accepts both camelCase and snake_case keys" back-compat rule.
func KeysToCamel(v any) any {
	return transformKeys(v, ToCamelCase)
}

func transformKeys(v any, f func(string) string) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[f(k)] = transformKeys(child, f)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = transformKeys(child, f)
		}
		return out
	default:
		return v
	}
}
