package prompt

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"commentgen/internal/models"
)

// Preset is a named prompt configuration loaded from the presets file.
type Preset struct {
	Description string              `yaml:"description"`
	Template    string              `yaml:"template"`
	Style       models.CommentStyle `yaml:"style"`
	Language    string              `yaml:"language"`
}

type presetsFile struct {
	Presets map[string]Preset `yaml:"presets"`
}

// LoadPresets reads presets from a YAML file. An empty path means no presets.
func LoadPresets(path string) (map[string]Preset, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}
	return ParsePresets(data)
}

// ParsePresets decodes the presets document:
//
//	presets:
//	  go-doc:
//	    description: Go doc comments
//	    style: docstring
//	    language: Go
//	    template: |
//	      You document Go packages...
func ParsePresets(data []byte) (map[string]Preset, error) {
	var f presetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}
	for name, p := range f.Presets {
		if name == "" {
			return nil, fmt.Errorf("preset with empty name")
		}
		if p.Style != "" && !isKnownStyle(p.Style) {
			return nil, fmt.Errorf("preset %q: unknown style %q", name, p.Style)
		}
	}
	return f.Presets, nil
}
