package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/taskhub/internal/logging"
)

// RequestLogger stores a request scoped logger in the context. It must run
// after middleware.RequestID so the id is available.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	base = defaultLogger(base)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(ww, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start))
		})
	}
}

// OwnerScope resolves the {ownerID} route parameter and stores it in the
// context for the handlers below it.
func OwnerScope(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID := strings.TrimSpace(chi.URLParam(r, "ownerID"))
			if ownerID == "" {
				responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errInvalidOwnerID)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithOwnerID(r.Context(), ownerID)))
		})
	}
}
