package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"commentgen/internal/models"
)

type generationLister interface {
	ListRecent(ctx context.Context, limit int) ([]*models.GenerationRecord, error)
}

type GenerationHandler struct {
	repo generationLister
}

// NewGenerationHandler serves the audit log. repo is nil when the audit log
// is disabled.
func NewGenerationHandler(repo generationLister) *GenerationHandler {
	return &GenerationHandler{repo: repo}
}

// List handles GET /api/v1/generations?limit=N.
func (h *GenerationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "The generation audit log is not enabled", r))
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Invalid limit",
				map[string]string{"limit": "Must be a positive integer"}, r))
			return
		}
		limit = n
	}

	records, err := h.repo.ListRecent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list generations")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load generations", r))
		return
	}
	if records == nil {
		records = []*models.GenerationRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"generations": records,
	})
}
