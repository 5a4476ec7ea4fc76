package services

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// Sentinels for errors.Is. A rejected credential matches both ErrAuth and
// ErrConfig; an HTTP 429 matches both ErrRateLimited and ErrBackend.
var (
	ErrInput       = errors.New("invalid input")
	ErrConfig      = errors.New("configuration error")
	ErrAuth        = errors.New("authentication failed")
	ErrNetwork     = errors.New("network error")
	ErrRateLimited = errors.New("rate limited by backend")
	ErrBackend     = errors.New("backend error")
)

// ErrorKind classifies a failed generation.
type ErrorKind string

const (
	KindInput       ErrorKind = "input"
	KindConfig      ErrorKind = "config"
	KindAuth        ErrorKind = "auth"
	KindNetwork     ErrorKind = "network"
	KindRateLimited ErrorKind = "rate_limited"
	KindBackend     ErrorKind = "backend"
)

// GenerationError is returned by GeminiService for every failure. Message is
// safe to show to end users; Err keeps the underlying cause.
type GenerationError struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string // set for KindInput
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool {
	switch target {
	case ErrInput:
		return e.Kind == KindInput
	case ErrConfig:
		return e.Kind == KindConfig || e.Kind == KindAuth
	case ErrAuth:
		return e.Kind == KindAuth
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrBackend:
		return e.Kind == KindBackend || e.Kind == KindRateLimited
	}
	return false
}

// KindOf returns the kind of a generation error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var gerr *GenerationError
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return ""
}

func inputError(message string, fields map[string]string) *GenerationError {
	return &GenerationError{Kind: KindInput, Message: message, Fields: fields}
}

func configError(message string) *GenerationError {
	return &GenerationError{Kind: KindConfig, Message: message}
}

// classifyError maps an error from the model call onto the taxonomy.
func classifyError(err error) *GenerationError {
	var gerr *GenerationError
	if errors.As(err, &gerr) {
		return gerr
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, apiErr.Message, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &GenerationError{Kind: KindNetwork, Message: "The model did not answer in time", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &GenerationError{Kind: KindNetwork, Message: "The request was cancelled", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &GenerationError{Kind: KindNetwork, Message: "Could not reach the model backend", Err: err}
	}

	return &GenerationError{Kind: KindBackend, Message: "The model backend returned an unusable response", Err: err}
}

func classifyStatus(code int, message string, err error) *GenerationError {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &GenerationError{Kind: KindAuth, Message: "The API key was rejected by the model backend", Err: err}
	case code == http.StatusBadRequest && strings.Contains(strings.ToLower(message), "api key"):
		// Gemini reports a bad key as 400 INVALID_ARGUMENT.
		return &GenerationError{Kind: KindAuth, Message: "The API key was rejected by the model backend", Err: err}
	case code == http.StatusTooManyRequests:
		return &GenerationError{Kind: KindRateLimited, Message: "The model backend is rate limiting requests, try again later", Err: err}
	case code == http.StatusGatewayTimeout:
		return &GenerationError{Kind: KindNetwork, Message: "The model did not answer in time", Err: err}
	default:
		return &GenerationError{Kind: KindBackend, Message: "The model backend returned an error", Err: err}
	}
}
