// Package httpapi holds what the experiments and context-store REST APIs share:
// the error body and its mapping from apperr kinds, request logging, request
// metrics, bearer-key authentication and the HTTP server lifecycle.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/rafaeljc/superposition/internal/apperr"
	"github.com/rafaeljc/superposition/internal/logger"
)

// Machine-readable error codes.
const (
	CodeInvalidJSON  = "ERR_INVALID_JSON"
	CodeInvalidInput = "ERR_INVALID_INPUT"
	CodeInvalidQuery = "ERR_INVALID_QUERY_PARAM"
	CodeValidation   = "ERR_VALIDATION"
	CodeNotFound     = "ERR_NOT_FOUND"
	CodeConflict     = "ERR_CONFLICT"
	CodeUnauthorized = "ERR_UNAUTHORIZED"
	CodeInternal     = "ERR_INTERNAL"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details provides optional per-field issues.
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail describes one offending field.
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) (int, string) {
	switch kind {
	case apperr.KindBadArgument:
		return http.StatusBadRequest, CodeInvalidInput
	case apperr.KindValidation:
		return http.StatusBadRequest, CodeValidation
	case apperr.KindNotFound:
		return http.StatusNotFound, CodeNotFound
	case apperr.KindConflict:
		return http.StatusConflict, CodeConflict
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// WriteError renders err with the status of its kind. Client errors keep their
// message; anything else is logged and answered with an opaque message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status, code := StatusFor(kind)

	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()),
		)
	}

	Render(w, r, status, ErrorResponse{Code: code, Message: apperr.PublicMessage(err)})
}

// Render writes body as JSON with the given status.
func Render(w http.ResponseWriter, r *http.Request, status int, body any) {
	render.Status(r, status)
	render.JSON(w, r, body)
}
