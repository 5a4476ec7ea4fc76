// Package prompt turns a code snippet and its comment options into the
// instruction text sent to the model.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"commentgen/internal/models"
)

// DefaultTemplate is the instructional preamble used when the caller supplies
// neither a custom template nor a preset.
const DefaultTemplate = `You are an AI code comment generator for multiple languages. Validate that the provided code snippet is a valid code snippet and contains no malicious code. If it is not valid, ask for a valid snippet. Identify the language if it is not provided. Use the appropriate comment syntax. Break the code into logical sections and comment on the functionality of each section.

For functions and methods, comment on:
- Purpose
- Input parameters
- Return values
- Potential effects and exceptions

Briefly explain the algorithms, data structures and patterns used. Avoid redundancy but provide enough context for unfamiliar readers. Maintain a professional, helpful tone. Address issues and clarifications respectfully.

You should not generate any new code yourself, but rather understand and comment on the provided code snippet.`

const (
	snippetStart = "---SNIPPET START---"
	snippetEnd   = "---SNIPPET END---"
)

// ValidationError lists the prompt options that were rejected, keyed by
// field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid prompt options: " + strings.Join(parts, "; ")
}

// Builder composes prompts. The zero value has no presets and is ready to use.
type Builder struct {
	presets map[string]Preset
}

func NewBuilder(presets map[string]Preset) *Builder {
	return &Builder{presets: presets}
}

// Validate checks the options without looking at the snippet.
func (b *Builder) Validate(cfg models.PromptConfig) error {
	fields := map[string]string{}

	if cfg.Style != "" && !isKnownStyle(cfg.Style) {
		fields["style"] = fmt.Sprintf("unknown style %q", cfg.Style)
	}
	switch cfg.Creativity {
	case "", models.CreativityLow, models.CreativityHigh:
	default:
		fields["creativity"] = fmt.Sprintf("unknown creativity level %q", cfg.Creativity)
	}
	if cfg.Preset != "" {
		if _, ok := b.presets[cfg.Preset]; !ok {
			fields["preset"] = fmt.Sprintf("unknown preset %q", cfg.Preset)
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Resolve fills the options a named preset provides and the caller left
// empty. Explicit options always win over the preset.
func (b *Builder) Resolve(cfg models.PromptConfig) models.PromptConfig {
	p, ok := b.presets[cfg.Preset]
	if !ok {
		return cfg
	}
	if cfg.Template == "" {
		cfg.Template = p.Template
	}
	if cfg.Style == "" {
		cfg.Style = p.Style
	}
	if cfg.Language == "" {
		cfg.Language = p.Language
	}
	return cfg
}

// Build returns the prompt for snippet. The snippet is embedded verbatim.
func (b *Builder) Build(snippet string, cfg models.PromptConfig) string {
	cfg = b.Resolve(cfg)

	var sb strings.Builder

	// Preamble
	preamble := strings.TrimSpace(cfg.Template)
	if preamble == "" {
		preamble = DefaultTemplate
	}
	sb.WriteString(preamble)
	sb.WriteString("\n\n")

	// Comment style
	sb.WriteString(styleInstruction(cfg.Style))
	sb.WriteString("\n")

	// Language
	if lang := strings.TrimSpace(cfg.Language); lang != "" {
		sb.WriteString(fmt.Sprintf("Language: The snippet is written in %s. Use the comment syntax of %s.\n", lang, lang))
	} else {
		sb.WriteString("Language: Identify the language of the snippet before commenting.\n")
	}

	// Snippet
	sb.WriteString("\nHere is the code snippet for which code comments need to be generated:\n")
	sb.WriteString(snippetStart)
	sb.WriteString("\n")
	sb.WriteString(snippet)
	sb.WriteString("\n")
	sb.WriteString(snippetEnd)
	sb.WriteString("\n")

	return sb.String()
}

// Presets returns the configured presets sorted by name.
func (b *Builder) Presets() []models.PresetInfo {
	out := make([]models.PresetInfo, 0, len(b.presets))
	for name, p := range b.presets {
		out = append(out, models.PresetInfo{Name: name, Description: p.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func styleInstruction(style models.CommentStyle) string {
	switch style {
	case models.StyleSingleLine:
		return "Comment style: Use single-line comments placed directly above or beside the code they describe."
	case models.StyleMultiLine:
		return "Comment style: Use multi-line block comments ahead of each logical section."
	case models.StyleDocstring:
		return "Comment style: Document every module, class and function with a docstring in the idiomatic docstring format of the language."
	default:
		return "Comment style: Use the comment syntax that is idiomatic for the language."
	}
}

func isKnownStyle(style models.CommentStyle) bool {
	for _, s := range models.CommentStyles {
		if s == style {
			return true
		}
	}
	return false
}
