package promptstore

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PromptDefinition is one named prompt's YAML shape. Template is a
// text/template body rendered against the Compile caller's vars map.
type PromptDefinition struct {
	Template    string `yaml:"template"`
	Description string `yaml:"description,omitempty"`
}

// Pack is a prompt pack: named templates, keyed by the agentID Compile is
// called with ("architect", "profiler", "worldbuilder", "strategist",
// "writer", "critic", "archivist", "originality", "impact" — §4.8).
type Pack map[string]PromptDefinition

// LoadPack reads and parses a YAML prompt pack from path.
func LoadPack(path string) (Pack, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("promptstore: read pack %s: %w", path, err)
	}

	var pack Pack
	if err := yaml.Unmarshal(raw, &pack); err != nil {
		return nil, fmt.Errorf("promptstore: parse pack %s: %w", path, err)
	}
	return pack, nil
}
