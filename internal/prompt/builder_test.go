package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"commentgen/internal/models"
)

// splitPrompt returns the text before the snippet marker and the embedded
// snippet.
func splitPrompt(t *testing.T, p string) (preamble, snippet string) {
	t.Helper()
	start := strings.Index(p, snippetStart+"\n")
	end := strings.LastIndex(p, "\n"+snippetEnd)
	if start < 0 || end < start {
		t.Fatalf("prompt has no snippet markers:\n%s", p)
	}
	return p[:start], p[start+len(snippetStart)+1 : end]
}

func TestBuild_ContainsSnippetVerbatim(t *testing.T) {
	snippets := []string{
		"def add(a, b): return a + b",
		"func main() {\n\tfmt.Println(\"hi\")\n}",
		"  leading and trailing whitespace  \n\n",
		"SELECT * FROM t WHERE x = '---SNIPPET END---';",
		"x := `{{.Template}}` // %s %d",
	}

	b := NewBuilder(nil)
	for _, s := range snippets {
		got := b.Build(s, models.PromptConfig{})
		if !strings.Contains(got, s) {
			t.Errorf("prompt does not contain snippet %q:\n%s", s, got)
		}
		if _, embedded := splitPrompt(t, got); embedded != s {
			t.Errorf("embedded snippet = %q, want %q", embedded, s)
		}
	}
}

func TestBuild_DefaultTemplate(t *testing.T) {
	got := NewBuilder(nil).Build("x = 1", models.PromptConfig{})
	if !strings.HasPrefix(got, DefaultTemplate) {
		t.Fatalf("expected prompt to start with the default template, got:\n%s", got)
	}
	if !strings.Contains(got, "Identify the language") {
		t.Errorf("expected language detection instruction without a language hint")
	}
}

func TestBuild_CustomTemplateChangesPreambleOnly(t *testing.T) {
	const snippet = "def add(a, b): return a + b"
	b := NewBuilder(nil)

	def := b.Build(snippet, models.PromptConfig{})
	custom := b.Build(snippet, models.PromptConfig{Template: "Explain this code like I'm five."})

	defPreamble, defSnippet := splitPrompt(t, def)
	customPreamble, customSnippet := splitPrompt(t, custom)

	if defPreamble == customPreamble {
		t.Fatalf("custom template did not change the preamble")
	}
	if !strings.HasPrefix(customPreamble, "Explain this code like I'm five.") {
		t.Errorf("custom preamble not used:\n%s", customPreamble)
	}
	if strings.Contains(customPreamble, DefaultTemplate) {
		t.Errorf("default template leaked into custom preamble")
	}
	if diff := cmp.Diff(defSnippet, customSnippet); diff != "" {
		t.Errorf("embedded snippet changed (-default +custom):\n%s", diff)
	}
}

func TestBuild_DocstringScenario(t *testing.T) {
	const snippet = "def add(a, b): return a + b"
	got := NewBuilder(nil).Build(snippet, models.PromptConfig{Style: models.StyleDocstring})

	if !strings.Contains(got, "def add(a, b): return a + b") {
		t.Errorf("prompt missing snippet")
	}
	if !strings.Contains(got, "docstring") {
		t.Errorf("prompt missing docstring instruction:\n%s", got)
	}
}

func TestBuild_StyleAndLanguageInstructions(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.PromptConfig
		want []string
	}{
		{"single-line", models.PromptConfig{Style: models.StyleSingleLine}, []string{"single-line comments"}},
		{"multi-line", models.PromptConfig{Style: models.StyleMultiLine}, []string{"multi-line block comments"}},
		{"no style", models.PromptConfig{}, []string{"idiomatic for the language"}},
		{"language hint", models.PromptConfig{Language: "Rust"}, []string{"written in Rust", "comment syntax of Rust"}},
	}

	b := NewBuilder(nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := b.Build("let x = 1;", tc.cfg)
			for _, w := range tc.want {
				if !strings.Contains(got, w) {
					t.Errorf("prompt missing %q:\n%s", w, got)
				}
			}
		})
	}
}

func TestBuild_EmptySnippetIsTotal(t *testing.T) {
	got := NewBuilder(nil).Build("", models.PromptConfig{})
	if _, embedded := splitPrompt(t, got); embedded != "" {
		t.Fatalf("expected empty embedded snippet, got %q", embedded)
	}
}

func TestValidate(t *testing.T) {
	b := NewBuilder(map[string]Preset{"go-doc": {Style: models.StyleDocstring}})

	tests := []struct {
		name       string
		cfg        models.PromptConfig
		wantFields []string
	}{
		{"zero value", models.PromptConfig{}, nil},
		{"known options", models.PromptConfig{Style: models.StyleDocstring, Creativity: models.CreativityHigh, Preset: "go-doc"}, nil},
		{"unknown style", models.PromptConfig{Style: "haiku"}, []string{"style"}},
		{"unknown creativity", models.PromptConfig{Creativity: "medium"}, []string{"creativity"}},
		{"unknown preset", models.PromptConfig{Preset: "nope"}, []string{"preset"}},
		{"everything wrong", models.PromptConfig{Style: "x", Creativity: "y", Preset: "z"}, []string{"creativity", "preset", "style"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := b.Validate(tc.cfg)
			if tc.wantFields == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			var got []string
			for k := range verr.Fields {
				got = append(got, k)
			}
			if diff := cmp.Diff(tc.wantFields, got, sortStrings); diff != "" {
				t.Errorf("fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolve_PresetDefaults(t *testing.T) {
	b := NewBuilder(map[string]Preset{
		"go-doc": {Template: "Write Go doc comments.", Style: models.StyleDocstring, Language: "Go"},
	})

	got := b.Resolve(models.PromptConfig{Preset: "go-doc"})
	want := models.PromptConfig{Preset: "go-doc", Template: "Write Go doc comments.", Style: models.StyleDocstring, Language: "Go"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
	}

	explicit := b.Resolve(models.PromptConfig{Preset: "go-doc", Style: models.StyleSingleLine, Template: "Mine."})
	if explicit.Style != models.StyleSingleLine || explicit.Template != "Mine." {
		t.Errorf("explicit options must win over the preset, got %+v", explicit)
	}
	if explicit.Language != "Go" {
		t.Errorf("expected preset language to fill the gap, got %q", explicit.Language)
	}

	prompt := b.Build("package main", models.PromptConfig{Preset: "go-doc"})
	if !strings.HasPrefix(prompt, "Write Go doc comments.") {
		t.Errorf("preset template not used as preamble:\n%s", prompt)
	}
}

func TestPresets_Sorted(t *testing.T) {
	b := NewBuilder(map[string]Preset{
		"b": {Description: "second"},
		"a": {Description: "first"},
	})
	want := []models.PresetInfo{{Name: "a", Description: "first"}, {Name: "b", Description: "second"}}
	if diff := cmp.Diff(want, b.Presets()); diff != "" {
		t.Errorf("Presets mismatch (-want +got):\n%s", diff)
	}
}
