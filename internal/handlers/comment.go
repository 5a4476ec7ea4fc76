package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"commentgen/internal/models"
	"commentgen/internal/prompt"
)

type commentGenerator interface {
	Generate(ctx context.Context, req models.GenerateCommentRequest) (*models.CommentResult, error)
}

type CommentHandler struct {
	generator commentGenerator
	builder   *prompt.Builder
	maxBytes  int64
}

func NewCommentHandler(generator commentGenerator, builder *prompt.Builder, maxBytes int64) *CommentHandler {
	if builder == nil {
		builder = prompt.NewBuilder(nil)
	}
	return &CommentHandler{generator: generator, builder: builder, maxBytes: maxBytes}
}

// Generate handles POST /api/v1/comments.
func (h *CommentHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	var req models.GenerateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("REQUEST_TOO_LARGE", "Request body is too large", r))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	req.RequestID = r.Header.Get("X-Request-ID")

	result, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Styles handles GET /api/v1/styles.
func (h *CommentHandler) Styles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, styleInfo(h.builder))
}

func styleInfo(b *prompt.Builder) models.StyleInfo {
	presets := b.Presets()
	if presets == nil {
		presets = []models.PresetInfo{}
	}
	return models.StyleInfo{
		Styles:       models.CommentStyles,
		Creativities: []models.Creativity{models.CreativityLow, models.CreativityHigh},
		Presets:      presets,
	}
}
