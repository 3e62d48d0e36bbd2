package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/taskhub/internal/persistence"
)

type sequenceService interface {
	Next(ctx context.Context, ownerID string, kind persistence.Kind) (int64, error)
}

// SequenceHandler hands out display numbers for non-event kinds.
type SequenceHandler struct {
	service   sequenceService
	responder responder
}

func NewSequenceHandler(service sequenceService, logger *slog.Logger) *SequenceHandler {
	return &SequenceHandler{service: service, responder: newResponder(logger)}
}

func (h *SequenceHandler) Next(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ownerID, _ := OwnerIDFromContext(r.Context())

	kind, err := persistence.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, fieldError("kind", err.Error()))
		return
	}

	number, err := h.service.Next(r.Context(), ownerID, kind)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.success(r.Context(), w, http.StatusCreated, "Success", sequenceDTO{
		OwnerID:       ownerID,
		Kind:          string(kind),
		DisplayNumber: number,
	})
}
