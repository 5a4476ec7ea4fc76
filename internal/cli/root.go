// Package cli implements the commentgen command line tool.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"commentgen/internal/config"
	"commentgen/internal/logger"
	"commentgen/internal/models"
	"commentgen/internal/prompt"
	"commentgen/internal/services"
)

type generator interface {
	Generate(ctx context.Context, req models.GenerateCommentRequest) (*models.CommentResult, error)
}

// generatorFactory builds the model client for the generate command. The
// returned func releases it.
type generatorFactory func(cfg *config.Config, builder *prompt.Builder) (generator, func(), error)

type app struct {
	stdin        io.Reader
	stdout       io.Writer
	stderr       io.Writer
	logLevel     string
	newGenerator generatorFactory
}

func geminiGenerator(cfg *config.Config, builder *prompt.Builder) (generator, func(), error) {
	svc, err := services.NewGeminiService(services.GeminiConfig{
		APIKey:          cfg.GeminiAPIKey,
		Model:           cfg.GeminiModel,
		MaxOutputTokens: cfg.GeminiMaxOutputTokens,
		Timeout:         cfg.GeminiTimeout,
		Endpoint:        cfg.GeminiEndpoint,
	}, builder, nil, nil)
	if err != nil {
		return nil, nil, err
	}
	return svc, svc.Close, nil
}

// NewRootCommand returns the commentgen command tree wired to the process
// stdio and the Gemini backend.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{
		stdin:        os.Stdin,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		newGenerator: geminiGenerator,
	})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "commentgen",
		Short: "Code Comment Generator - comment code snippets with Gemini",
		Long: `commentgen asks a Gemini model to write explanatory comments for a code snippet.
It reads the snippet from a file or stdin and prints the model's reply unmodified.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(a.logLevel, "development")
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	rootCmd.SetIn(a.stdin)
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn",
		"Set the logging level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(a.generateCommand())
	rootCmd.AddCommand(a.stylesCommand())
	rootCmd.AddCommand(a.tokenCommand())
	return rootCmd
}

// Execute runs the command line tool.
func Execute() error {
	return NewRootCommand().Execute()
}

func loadBuilder(cfg *config.Config) (*prompt.Builder, error) {
	presets, err := prompt.LoadPresets(cfg.PromptPresetsFile)
	if err != nil {
		return nil, err
	}
	return prompt.NewBuilder(presets), nil
}
