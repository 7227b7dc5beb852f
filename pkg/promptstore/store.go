// Package promptstore implements ports.PromptStore: named prompts are
// compiled from a YAML-defined pack of text/template bodies, following the
// teacher's template.Template-cache-plus-bytes.Buffer rendering shape
// (pkg/templates/renderer.go); a named prompt with no entry in the loaded
// pack falls back to the caller-supplied baked-in template, per the
// interface's documented fallback contract.
package promptstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"narrator/internal/ports"
)

// Store is a ports.PromptStore backed by an optional loaded Pack, with an
// LRU-free cache of parsed fallback templates (fallbacks are a handful of
// constants reused across every run, so a plain map suffices).
type Store struct {
	mu        sync.RWMutex
	pack      map[string]*template.Template
	fallbacks map[string]*template.Template
}

var _ ports.PromptStore = (*Store)(nil)

// funcMap mirrors the teacher renderer's template.FuncMap: a small set of
// string helpers prompt authors can use inside a template body.
var funcMap = template.FuncMap{
	"contains": strings.Contains,
	"join":     strings.Join,
	"upper":    strings.ToUpper,
	"lower":    strings.ToLower,
}

// New returns a Store with no pack loaded — every Compile call falls
// straight through to its caller-supplied fallback. Used by tests and by
// deployments that haven't authored a prompt pack yet.
func New() *Store {
	return &Store{pack: map[string]*template.Template{}, fallbacks: map[string]*template.Template{}}
}

// NewFromPack parses every template body in pack up front, so a malformed
// pack fails at startup instead of on the first Compile call.
func NewFromPack(pack Pack) (*Store, error) {
	s := New()
	for name, def := range pack {
		tmpl, err := template.New(name).Funcs(funcMap).Parse(def.Template)
		if err != nil {
			return nil, fmt.Errorf("promptstore: parse template %q: %w", name, err)
		}
		s.pack[name] = tmpl
	}
	return s, nil
}

// Compile implements ports.PromptStore: render the named template from the
// loaded pack against vars, or, if no such template is registered, parse and
// render fallback instead.
func (s *Store) Compile(_ context.Context, name string, vars map[string]any, fallback string) (string, error) {
	s.mu.RLock()
	tmpl, ok := s.pack[name]
	s.mu.RUnlock()
	if ok {
		return render(tmpl, vars)
	}

	tmpl, err := s.fallbackTemplate(name, fallback)
	if err != nil {
		return "", err
	}
	return render(tmpl, vars)
}

// fallbackTemplate parses fallback on first use and caches it by agentID —
// fallback bodies are fixed Go string constants, so the same body is parsed
// at most once per Store regardless of how many runs call Compile.
func (s *Store) fallbackTemplate(name, fallback string) (*template.Template, error) {
	s.mu.RLock()
	tmpl, ok := s.fallbacks[name]
	s.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tmpl, ok := s.fallbacks[name]; ok {
		return tmpl, nil
	}

	tmpl, err := template.New(name).Funcs(funcMap).Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("promptstore: parse fallback for %q: %w", name, err)
	}
	s.fallbacks[name] = tmpl
	return tmpl, nil
}

func render(tmpl *template.Template, vars map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("promptstore: render %q: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
