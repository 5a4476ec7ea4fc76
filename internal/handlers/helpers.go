package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"commentgen/internal/models"
	"commentgen/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

// errorStatus maps a generation failure onto an HTTP status and API code.
func errorStatus(err error) (int, string) {
	switch services.KindOf(err) {
	case services.KindInput:
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case services.KindConfig:
		return http.StatusInternalServerError, "CONFIGURATION_ERROR"
	case services.KindAuth:
		return http.StatusBadGateway, "AUTH_ERROR"
	case services.KindRateLimited:
		return http.StatusTooManyRequests, "BACKEND_RATE_LIMITED"
	case services.KindNetwork:
		return http.StatusGatewayTimeout, "NETWORK_ERROR"
	case services.KindBackend:
		return http.StatusBadGateway, "BACKEND_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// userMessage is the text shown to end users for err.
func userMessage(err error) string {
	var gerr *services.GenerationError
	if errors.As(err, &gerr) {
		return gerr.Message
	}
	return "An unexpected error occurred"
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError && services.KindOf(err) == "" {
		log.Error().Err(err).Str("request_id", r.Header.Get("X-Request-ID")).Msg("unexpected error")
	}

	var gerr *services.GenerationError
	if errors.As(err, &gerr) && gerr.Kind == services.KindInput {
		writeJSON(w, status, errorRespWithFields(code, gerr.Message, gerr.Fields, r))
		return
	}
	writeJSON(w, status, errorResp(code, userMessage(err), r))
}
