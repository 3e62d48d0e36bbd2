package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/taskhub/internal/application"
	"github.com/example/taskhub/internal/persistence"
)

type eventService interface {
	CreateSchedule(ctx context.Context, params application.CreateScheduleParams) (application.ScheduleResult, error)
	GetSchedule(ctx context.Context, ownerID, recordID string) (application.ScheduleResult, error)
	DeleteSchedule(ctx context.Context, ownerID, recordID string) error
	OccurrencesInRange(ctx context.Context, params application.RangeParams) ([]persistence.Record, error)
}

// EventHandler serves the owner scoped event routes.
type EventHandler struct {
	service   eventService
	location  *time.Location
	logger    *slog.Logger
	responder responder
}

// NewEventHandler builds the handler. Zone-less timestamps are read in
// location, and responses are rendered in it; nil means UTC.
func NewEventHandler(service eventService, location *time.Location, logger *slog.Logger) *EventHandler {
	if location == nil {
		location = time.UTC
	}
	return &EventHandler{service: service, location: location, logger: logger, responder: newResponder(logger)}
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ownerID, _ := OwnerIDFromContext(r.Context())

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}

	params, err := req.toParams(ownerID, h.location)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	result, err := h.service.CreateSchedule(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "EventHandler", "Create").DebugContext(r.Context(), "event created",
		"record_id", result.Master.ID, "instances", len(result.Instances))
	h.responder.success(r.Context(), w, http.StatusCreated, "Event created successfully", toScheduleDTO(result, h.location))
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ownerID, _ := OwnerIDFromContext(r.Context())

	eventID := strings.TrimSpace(chi.URLParam(r, "eventID"))
	if eventID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errInvalidEventID)
		return
	}

	result, err := h.service.GetSchedule(r.Context(), ownerID, eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.success(r.Context(), w, http.StatusOK, "Success", toScheduleDTO(result, h.location))
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ownerID, _ := OwnerIDFromContext(r.Context())

	eventID := strings.TrimSpace(chi.URLParam(r, "eventID"))
	if eventID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errInvalidEventID)
		return
	}

	if err := h.service.DeleteSchedule(r.Context(), ownerID, eventID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.success(r.Context(), w, http.StatusOK, "Event deleted successfully", nil)
}

// Range lists events between the startDate and endDate query parameters.
func (h *EventHandler) Range(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ownerID, _ := OwnerIDFromContext(r.Context())

	params := application.RangeParams{OwnerID: ownerID}
	query := r.URL.Query()
	bounds := []struct {
		key, field string
		target     *time.Time
	}{
		{"startDate", "start_date", &params.Start},
		{"endDate", "end_date", &params.End},
	}
	for _, bound := range bounds {
		value := strings.TrimSpace(query.Get(bound.key))
		if value == "" {
			continue
		}
		parsed, err := parseTimestamp(value, h.location)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, fieldError(bound.field, err.Error()))
			return
		}
		*bound.target = parsed
	}

	records, err := h.service.OccurrencesInRange(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.success(r.Context(), w, http.StatusOK, "Success", toEventDTOs(records, h.location))
}
