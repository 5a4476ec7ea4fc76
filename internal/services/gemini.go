package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gl "cloud.google.com/go/ai/generativelanguage/apiv1beta"
	pb "cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	"github.com/google/uuid"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"commentgen/internal/models"
	"commentgen/internal/prompt"
)

const recordTimeout = 5 * time.Second

// contentGenerator is the part of *gl.GenerativeClient the service uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, req *pb.GenerateContentRequest, opts ...gax.CallOption) (*pb.GenerateContentResponse, error)
}

// GenerationRecorder stores audit metadata for finished generations.
type GenerationRecorder interface {
	Record(ctx context.Context, rec *models.GenerationRecord) error
}

// StatusPublisher delivers progress events to a client session.
type StatusPublisher interface {
	Publish(ctx context.Context, sessionID string, msg models.WSMessage)
}

type GeminiConfig struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
	Timeout         time.Duration
	Endpoint        string // base URL override, empty for the public API
}

type GeminiService struct {
	client          contentGenerator
	closeClient     func() error
	apiKey          string
	modelName       string
	maxOutputTokens int32
	timeout         time.Duration
	builder         *prompt.Builder
	recorder        GenerationRecorder
	publisher       StatusPublisher
	now             func() time.Time
}

// NewGeminiService creates the Gemini REST client. It fails with a
// configuration error, without touching the network, when no API key is
// given. recorder and publisher may be nil.
func NewGeminiService(cfg GeminiConfig, builder *prompt.Builder, recorder GenerationRecorder, publisher StatusPublisher) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, configError("The Gemini API key is not configured")
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	ctx := context.Background()
	client, err := gl.NewGenerativeRESTClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	s := newGeminiService(cfg, builder, recorder, publisher, client)
	s.closeClient = client.Close
	return s, nil
}

func newGeminiService(cfg GeminiConfig, builder *prompt.Builder, recorder GenerationRecorder, publisher StatusPublisher, client contentGenerator) *GeminiService {
	if builder == nil {
		builder = prompt.NewBuilder(nil)
	}
	return &GeminiService{
		client:          client,
		apiKey:          cfg.APIKey,
		modelName:       cfg.Model,
		maxOutputTokens: int32(cfg.MaxOutputTokens),
		timeout:         cfg.Timeout,
		builder:         builder,
		recorder:        recorder,
		publisher:       publisher,
		now:             time.Now,
	}
}

func (s *GeminiService) Close() {
	if s.closeClient != nil {
		s.closeClient()
	}
}

// Builder returns the prompt builder the service validates requests with.
func (s *GeminiService) Builder() *prompt.Builder {
	return s.builder
}

// Model returns the configured model name.
func (s *GeminiService) Model() string {
	return s.modelName
}

// noRetry replaces the client's default policy, which retries 503s until
// the deadline. A generation is attempted exactly once.
func noRetry() gax.Retryer { return nil }

func (s *GeminiService) request(text string, temperature float32) *pb.GenerateContentRequest {
	cfg := &pb.GenerationConfig{Temperature: &temperature}
	if s.maxOutputTokens > 0 {
		tokens := s.maxOutputTokens
		cfg.MaxOutputTokens = &tokens
	}
	return &pb.GenerateContentRequest{
		Model: fullModelName(s.modelName),
		Contents: []*pb.Content{{
			Role:  "user",
			Parts: []*pb.Part{{Data: &pb.Part_Text{Text: text}}},
		}},
		SafetySettings:   safetySettings(),
		GenerationConfig: cfg,
	}
}

func fullModelName(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return "models/" + name
}

func safetySettings() []*pb.SafetySetting {
	categories := []pb.HarmCategory{
		pb.HarmCategory_HARM_CATEGORY_HARASSMENT,
		pb.HarmCategory_HARM_CATEGORY_HATE_SPEECH,
		pb.HarmCategory_HARM_CATEGORY_SEXUALLY_EXPLICIT,
		pb.HarmCategory_HARM_CATEGORY_DANGEROUS_CONTENT,
	}
	settings := make([]*pb.SafetySetting, len(categories))
	for i, c := range categories {
		settings[i] = &pb.SafetySetting{Category: c, Threshold: pb.SafetySetting_BLOCK_NONE}
	}
	return settings
}

// Generate builds the prompt for req and makes exactly one model call. The
// returned comment is the model's text, unmodified. Every failure is a
// *GenerationError.
func (s *GeminiService) Generate(ctx context.Context, req models.GenerateCommentRequest) (*models.CommentResult, error) {
	if strings.TrimSpace(req.Snippet) == "" {
		return nil, inputError("Please enter a code snippet", map[string]string{"snippet": "Snippet is required"})
	}
	if err := s.builder.Validate(req.PromptConfig); err != nil {
		var verr *prompt.ValidationError
		if errors.As(err, &verr) {
			return nil, inputError("Invalid comment options", verr.Fields)
		}
		return nil, inputError("Invalid comment options", nil)
	}
	if s.apiKey == "" || s.client == nil {
		return nil, configError("The Gemini API key is not configured")
	}

	cfg := s.builder.Resolve(req.PromptConfig)
	text := s.builder.Build(req.Snippet, cfg)

	id := uuid.New()
	s.publish(ctx, req.SessionID, id, models.StatusGenerating, "")

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := s.now()
	resp, err := s.client.GenerateContent(callCtx, s.request(text, cfg.Creativity.Temperature()), gax.WithRetry(noRetry))

	var (
		result *models.CommentResult
		gerr   *GenerationError
	)
	if err != nil {
		gerr = classifyError(err)
	} else {
		result, gerr = s.toResult(id, resp)
	}
	latency := s.now().Sub(start)

	s.record(ctx, id, req, cfg, result, gerr, latency)

	if gerr != nil {
		log.Warn().
			Err(gerr.Err).
			Str("generation_id", id.String()).
			Str("kind", string(gerr.Kind)).
			Dur("latency", latency).
			Msg(gerr.Message)
		s.publish(ctx, req.SessionID, id, models.StatusFailed, gerr.Message)
		return nil, gerr
	}

	log.Info().
		Str("generation_id", id.String()).
		Str("model", s.modelName).
		Str("finish_reason", result.FinishReason).
		Int("comment_bytes", len(result.Comment)).
		Dur("latency", latency).
		Msg("comment generated")
	s.publish(ctx, req.SessionID, id, models.StatusCompleted, "")
	return result, nil
}

func (s *GeminiService) toResult(id uuid.UUID, resp *pb.GenerateContentResponse) (*models.CommentResult, *GenerationError) {
	if reason := resp.GetPromptFeedback().GetBlockReason(); reason != pb.GenerateContentResponse_PromptFeedback_BLOCK_REASON_UNSPECIFIED {
		return nil, &GenerationError{
			Kind:    KindBackend,
			Message: "The prompt was blocked by the model's safety filters",
			Err:     fmt.Errorf("block reason %s", reason),
		}
	}
	if len(resp.GetCandidates()) == 0 {
		return nil, &GenerationError{Kind: KindBackend, Message: "The model returned no candidates"}
	}

	cand := resp.GetCandidates()[0]
	switch cand.GetFinishReason() {
	case pb.Candidate_SAFETY, pb.Candidate_RECITATION:
		return nil, &GenerationError{
			Kind:    KindBackend,
			Message: "The response was blocked by the model's safety filters",
			Err:     fmt.Errorf("finish reason %s", cand.GetFinishReason()),
		}
	}

	text := extractText(cand)
	if text == "" {
		return nil, &GenerationError{
			Kind:    KindBackend,
			Message: "The model returned an empty response",
			Err:     fmt.Errorf("finish reason %s", cand.GetFinishReason()),
		}
	}

	result := &models.CommentResult{
		ID:           id.String(),
		Comment:      text,
		Model:        s.modelName,
		FinishReason: cand.GetFinishReason().String(),
	}
	if um := resp.GetUsageMetadata(); um != nil {
		result.PromptTokens = um.GetPromptTokenCount()
		result.CandidatesTokens = um.GetCandidatesTokenCount()
	}
	return result, nil
}

func (s *GeminiService) record(ctx context.Context, id uuid.UUID, req models.GenerateCommentRequest, cfg models.PromptConfig, result *models.CommentResult, genErr *GenerationError, latency time.Duration) {
	if s.recorder == nil {
		return
	}

	rec := &models.GenerationRecord{
		ID:           id,
		RequestID:    req.RequestID,
		Model:        s.modelName,
		Style:        string(cfg.Style),
		Language:     cfg.Language,
		Preset:       cfg.Preset,
		Creativity:   string(cfg.Creativity),
		SnippetBytes: len(req.Snippet),
		Status:       models.StatusCompleted,
		LatencyMS:    latency.Milliseconds(),
	}
	if result != nil {
		rec.CommentBytes = len(result.Comment)
	}
	if genErr != nil {
		kind := string(genErr.Kind)
		rec.Status = models.StatusFailed
		rec.ErrorKind = &kind
	}

	// The audit write must not be cut short by a client that already left.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.recorder.Record(recCtx, rec); err != nil {
		log.Error().Err(err).Str("generation_id", id.String()).Msg("failed to record generation")
	}
}

func (s *GeminiService) publish(ctx context.Context, sessionID string, id uuid.UUID, status, message string) {
	if s.publisher == nil || sessionID == "" {
		return
	}
	s.publisher.Publish(ctx, sessionID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			GenerationID: id.String(),
			Status:       status,
			Message:      message,
		},
	})
}

// Helper functions

func extractText(cand *pb.Candidate) string {
	var text strings.Builder
	for _, part := range cand.GetContent().GetParts() {
		text.WriteString(part.GetText())
	}
	return text.String()
}
