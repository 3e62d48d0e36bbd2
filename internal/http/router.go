package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// HealthCheck reports whether the backing store is reachable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	Events      *EventHandler
	Sequences   *SequenceHandler
	Health      HealthCheck
	CORSOrigins []string
	Logger      *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	responder := newResponder(cfg.Logger)
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusNotFound, codeNotFound, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusMethodNotAllowed, codeMethodNotAllowed, nil)
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Health(ctx); err != nil {
				responder.writeError(req.Context(), w, http.StatusServiceUnavailable, codeUnavailable, errors.New("storage unavailable"))
				return
			}
		}
		responder.success(req.Context(), w, http.StatusOK, "ok", nil)
	})

	r.Route("/api/owners/{ownerID}", func(r chi.Router) {
		r.Use(OwnerScope(cfg.Logger))

		if cfg.Events != nil {
			r.Route("/events", func(r chi.Router) {
				r.Post("/", cfg.Events.Create)
				r.Get("/range", cfg.Events.Range)
				r.Get("/{eventID}", cfg.Events.Get)
				r.Delete("/{eventID}", cfg.Events.Delete)
			})
		}
		if cfg.Sequences != nil {
			r.Post("/sequences/{kind}", cfg.Sequences.Next)
		}
	})

	return r
}
