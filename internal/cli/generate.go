package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"commentgen/internal/config"
	"commentgen/internal/models"
)

type generateFlags struct {
	file         string
	style        string
	language     string
	template     string
	templateFile string
	preset       string
	creativity   string
}

func (a *app) generateCommand() *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate comments for a code snippet",
		Long: `Send a code snippet to Gemini and print the commented reply.
The snippet is read from --file, or from stdin when no file is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.file, "file", "f", "", "File containing the code snippet (default stdin)")
	cmd.Flags().StringVar(&f.style, "style", "", "Comment style: single-line, multi-line or docstring")
	cmd.Flags().StringVar(&f.language, "language", "", "Language of the snippet (default auto-detect)")
	cmd.Flags().StringVar(&f.template, "template", "", "Custom prompt preamble")
	cmd.Flags().StringVar(&f.templateFile, "template-file", "", "File containing a custom prompt preamble")
	cmd.Flags().StringVar(&f.preset, "preset", "", "Named prompt preset from PROMPT_PRESETS_FILE")
	cmd.Flags().StringVar(&f.creativity, "creativity", string(models.CreativityLow), "Creativity level: low or high")
	cmd.MarkFlagsMutuallyExclusive("template", "template-file")

	return cmd
}

func (a *app) runGenerate(cmd *cobra.Command, f generateFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	builder, err := loadBuilder(cfg)
	if err != nil {
		return err
	}

	snippet, err := a.readSnippet(f.file)
	if err != nil {
		return err
	}

	tmpl := f.template
	if f.templateFile != "" {
		data, err := os.ReadFile(f.templateFile)
		if err != nil {
			return fmt.Errorf("failed to read template file: %w", err)
		}
		tmpl = string(data)
	}

	gen, release, err := a.newGenerator(cfg, builder)
	if err != nil {
		return err
	}
	defer release()

	result, err := gen.Generate(cmd.Context(), models.GenerateCommentRequest{
		Snippet: snippet,
		PromptConfig: models.PromptConfig{
			Style:      models.CommentStyle(f.style),
			Language:   f.language,
			Template:   tmpl,
			Preset:     f.preset,
			Creativity: models.Creativity(f.creativity),
		},
	})
	if err != nil {
		return err
	}

	out := result.Comment
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	_, err = io.WriteString(cmd.OutOrStdout(), out)
	return err
}

func (a *app) readSnippet(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read snippet from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read snippet: %w", err)
	}
	return string(data), nil
}
