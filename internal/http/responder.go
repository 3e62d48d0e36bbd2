package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/taskhub/internal/application"
	"github.com/example/taskhub/internal/logging"
)

var (
	errBadRequestBody = errors.New("request body is not valid JSON")
	errInvalidOwnerID = errors.New("owner id is required")
	errInvalidEventID = errors.New("event id is required")
)

// Error codes carried in the envelope.
const (
	codeBadRequest             = "BAD_REQUEST"
	codeValidation             = "VALIDATION_FAILED"
	codeNotFound               = "NOT_FOUND"
	codeForbidden              = "FORBIDDEN"
	codeConcurrency            = "CONCURRENCY_CONFLICT"
	codePartialMaterialization = "PARTIAL_MATERIALIZATION"
	codeMethodNotAllowed       = "METHOD_NOT_ALLOWED"
	codeInternal               = "INTERNAL_ERROR"
	codeUnavailable            = "UNAVAILABLE"
)

type envelope struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Data      any               `json:"data"`
	ErrorCode string            `json:"errorCode,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type responder struct {
	logger *slog.Logger
	now    func() time.Time
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger), now: time.Now}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload envelope) {
	if w == nil {
		return
	}

	payload.Timestamp = r.now().UTC()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) success(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	r.writeJSON(ctx, w, status, envelope{Success: true, Message: message, Data: data})
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, envelope{Message: message, ErrorCode: code})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, codeInternal, errors.New("unknown error"))
		return
	}

	var (
		vErr *application.ValidationError
		mErr *application.MaterializationError
	)
	switch {
	case errors.As(err, &mErr):
		r.loggerFor(ctx).ErrorContext(ctx, "instances could not be persisted", "master_id", mErr.MasterID, "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, envelope{
			ErrorCode: codePartialMaterialization,
			Message:   "recurring instances could not be saved; nothing was created",
		})
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, envelope{
			ErrorCode: codeValidation,
			Message:   "request contains invalid fields",
			Errors:    vErr.FieldErrors,
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, envelope{ErrorCode: codeNotFound, Message: "resource not found"})
	case errors.Is(err, application.ErrOwnership):
		r.writeJSON(ctx, w, http.StatusForbidden, envelope{ErrorCode: codeForbidden, Message: "resource belongs to another owner"})
	case errors.Is(err, application.ErrConcurrency):
		w.Header().Set("Retry-After", "1")
		r.writeJSON(ctx, w, http.StatusConflict, envelope{ErrorCode: codeConcurrency, Message: "concurrent update, please retry"})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, envelope{ErrorCode: codeInternal, Message: "internal server error"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

// fieldError wraps a single request level field problem.
func fieldError(field, message string) *application.ValidationError {
	return &application.ValidationError{FieldErrors: map[string]string{field: message}}
}
