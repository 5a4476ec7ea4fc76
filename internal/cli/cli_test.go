package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"commentgen/internal/config"
	"commentgen/internal/middleware"
	"commentgen/internal/models"
	"commentgen/internal/prompt"
	"commentgen/internal/services"
)

type stubGenerator struct {
	got    models.GenerateCommentRequest
	result *models.CommentResult
	err    error
}

func (s *stubGenerator) Generate(ctx context.Context, req models.GenerateCommentRequest) (*models.CommentResult, error) {
	s.got = req
	return s.result, s.err
}

func run(t *testing.T, gen *stubGenerator, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	released := false
	a := &app{
		stdin:  strings.NewReader(stdin),
		stdout: &stdout,
		stderr: &stderr,
		newGenerator: func(cfg *config.Config, b *prompt.Builder) (generator, func(), error) {
			return gen, func() { released = true }, nil
		},
	}
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil && gen != nil && gen.result != nil && !released {
		t.Errorf("Expected generator to be released")
	}
	return stdout.String(), stderr.String(), err
}

func setEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("PROMPT_PRESETS_FILE", "")
	t.Setenv("JWT_SECRET", "")
}

func TestGenerate_FromStdin(t *testing.T) {
	setEnv(t)
	gen := &stubGenerator{result: &models.CommentResult{Comment: "# Adds two numbers."}}

	out, _, err := run(t, gen, "def add(a, b):\n    return a + b\n",
		"generate", "--style", "docstring", "--language", "Python", "--creativity", "high")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "# Adds two numbers.\n" {
		t.Errorf("Unexpected output %q", out)
	}
	if gen.got.Snippet != "def add(a, b):\n    return a + b\n" {
		t.Errorf("Snippet not passed verbatim: %q", gen.got.Snippet)
	}
	if gen.got.Style != models.StyleDocstring || gen.got.Language != "Python" || gen.got.Creativity != models.CreativityHigh {
		t.Errorf("Unexpected options %+v", gen.got.PromptConfig)
	}
}

func TestGenerate_FromFileWithTemplateFile(t *testing.T) {
	setEnv(t)
	dir := t.TempDir()
	snippetPath := filepath.Join(dir, "main.go")
	templatePath := filepath.Join(dir, "preamble.txt")
	os.WriteFile(snippetPath, []byte("package main"), 0o644)
	os.WriteFile(templatePath, []byte("Comment tersely."), 0o644)

	gen := &stubGenerator{result: &models.CommentResult{Comment: "// Package main.\n"}}
	out, _, err := run(t, gen, "", "generate", "--file", snippetPath, "--template-file", templatePath)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "// Package main.\n" {
		t.Errorf("Unexpected output %q", out)
	}
	if gen.got.Snippet != "package main" || gen.got.Template != "Comment tersely." {
		t.Errorf("Unexpected request %+v", gen.got)
	}
}

func TestGenerate_MissingAPIKey(t *testing.T) {
	setEnv(t)
	t.Setenv("GEMINI_API_KEY", "")

	gen := &stubGenerator{}
	_, _, err := run(t, gen, "x := 1", "generate")
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("Expected ErrMissingAPIKey, got %v", err)
	}
}

func TestGenerate_ServiceError(t *testing.T) {
	setEnv(t)
	gen := &stubGenerator{err: &services.GenerationError{Kind: services.KindNetwork, Message: "The model did not answer in time"}}

	_, stderr, err := run(t, gen, "x := 1", "generate")
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("Expected network error, got %v", err)
	}
	if !strings.Contains(stderr, "The model did not answer in time") {
		t.Errorf("Expected readable message on stderr, got %q", stderr)
	}
}

func TestGenerate_MissingFile(t *testing.T) {
	setEnv(t)
	_, _, err := run(t, &stubGenerator{}, "", "generate", "--file", filepath.Join(t.TempDir(), "nope.go"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestStyles_JSON(t *testing.T) {
	setEnv(t)
	dir := t.TempDir()
	presetsPath := filepath.Join(dir, "presets.yaml")
	os.WriteFile(presetsPath, []byte("presets:\n  go-doc:\n    description: Go doc comments\n    style: single-line\n"), 0o644)
	t.Setenv("PROMPT_PRESETS_FILE", presetsPath)

	out, _, err := run(t, nil, "", "styles", "--json")
	if err != nil {
		t.Fatalf("styles: %v", err)
	}

	var info models.StyleInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("Invalid JSON %q: %v", out, err)
	}
	if len(info.Styles) != 3 || len(info.Presets) != 1 || info.Presets[0].Name != "go-doc" {
		t.Errorf("Unexpected styles %+v", info)
	}
}

func TestStyles_Text(t *testing.T) {
	setEnv(t)
	out, _, err := run(t, nil, "", "styles")
	if err != nil {
		t.Fatalf("styles: %v", err)
	}
	if !strings.Contains(out, "single-line, multi-line, docstring") || !strings.Contains(out, "Presets:     none") {
		t.Errorf("Unexpected output %q", out)
	}
}

func TestToken(t *testing.T) {
	setEnv(t)
	t.Setenv("JWT_SECRET", "cli-secret")

	out, _, err := run(t, nil, "", "token", "--subject", "ci-bot", "--ttl", "1h")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	subject, err := middleware.NewJWTAuth("cli-secret").ParseToken(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if subject != "ci-bot" {
		t.Errorf("Expected subject 'ci-bot', got %q", subject)
	}
}

func TestToken_RequiresSecret(t *testing.T) {
	setEnv(t)
	if _, _, err := run(t, nil, "", "token", "--subject", "ci-bot"); err == nil {
		t.Fatal("Expected error without JWT_SECRET")
	}
}
