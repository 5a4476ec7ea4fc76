package models

import (
	"time"

	"github.com/google/uuid"
)

// Generation statuses recorded in the audit log and sent as progress events.
const (
	StatusGenerating = "generating"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// GenerationRecord is the audit metadata kept for one generation. It never
// holds the snippet or the generated comment.
type GenerationRecord struct {
	ID           uuid.UUID `json:"id"`
	RequestID    string    `json:"request_id"`
	Model        string    `json:"model"`
	Style        string    `json:"style"`
	Language     string    `json:"language"`
	Preset       string    `json:"preset"`
	Creativity   string    `json:"creativity"`
	SnippetBytes int       `json:"snippet_bytes"`
	CommentBytes int       `json:"comment_bytes"`
	Status       string    `json:"status"` // "completed" | "failed"
	ErrorKind    *string   `json:"error_kind"`
	LatencyMS    int64     `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type StatusUpdate struct {
	GenerationID string `json:"generation_id"`
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
