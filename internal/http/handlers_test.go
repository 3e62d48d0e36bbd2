package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/taskhub/internal/application"
	"github.com/example/taskhub/internal/persistence"
	"github.com/example/taskhub/internal/testfixtures"
)

var jst = time.FixedZone("JST", 9*60*60)

type apiResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Data      json.RawMessage   `json:"data"`
	ErrorCode string            `json:"errorCode"`
	Errors    map[string]string `json:"errors"`
	Timestamp time.Time         `json:"timestamp"`
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	store := testfixtures.NewMemoryStore(t, "alice", "bob")
	logger := testfixtures.DiscardLogger()
	allocator := testfixtures.NewAllocator(store)
	clock := testfixtures.NewClock(time.Time{})

	events := application.NewEventService(store, allocator, logger, clock.NowFunc())
	sequences := application.NewSequenceService(store, allocator, logger)
	return NewRouter(RouterConfig{
		Events:    NewEventHandler(events, jst, logger),
		Sequences: NewSequenceHandler(sequences, logger),
		Logger:    logger,
	})
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func decodeData(t *testing.T, resp apiResponse, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, target))
}

func TestEventRoutes_Create(t *testing.T) {
	router := newTestRouter(t)

	t.Run("one-shot event", func(t *testing.T) {
		rec, resp := doRequest(t, router, http.MethodPost, "/api/owners/alice/events",
			`{"title":"Dentist","eventDateTime":"2024-01-31T10:00:00","location":"Clinic","reminderMinutes":30}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.True(t, resp.Success)
		assert.False(t, resp.Timestamp.IsZero())

		var data scheduleDTO
		decodeData(t, resp, &data)
		assert.Equal(t, int64(1), data.Master.EventNumber)
		assert.True(t, data.Master.IsMaster)
		assert.False(t, data.Master.IsRecurring)
		assert.Empty(t, data.Instances)
		assert.True(t, data.Master.EventDateTime.Equal(time.Date(2024, 1, 31, 10, 0, 0, 0, jst)))
		assert.Contains(t, string(resp.Data), `"eventDateTime":"2024-01-31T10:00:00+09:00"`)
	})

	t.Run("recurring event materializes instances", func(t *testing.T) {
		rec, resp := doRequest(t, router, http.MethodPost, "/api/owners/alice/events", `{
			"title":"Stretch",
			"eventDateTime":"2024-01-31T10:00:00+09:00",
			"isRecurring":true,
			"recurringPattern":"daily",
			"recurringEndDate":"2024-02-03T00:00:00"
		}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var data scheduleDTO
		decodeData(t, resp, &data)
		assert.True(t, data.Master.IsRecurring)
		assert.Equal(t, "DAILY", data.Master.RecurringPattern)
		require.Len(t, data.Instances, 2)
		assert.Equal(t, int64(3), data.Instances[0].EventNumber)
		assert.Equal(t, int64(4), data.Instances[1].EventNumber)
		require.NotNil(t, data.Instances[0].MasterEventID)
		assert.Equal(t, data.Master.ID, *data.Instances[0].MasterEventID)

		rec, resp = doRequest(t, router, http.MethodGet, "/api/owners/alice/events/"+data.Master.ID, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var fetched scheduleDTO
		decodeData(t, resp, &fetched)
		assert.Len(t, fetched.Instances, 2)
	})

	t.Run("pattern without isRecurring is one-shot", func(t *testing.T) {
		rec, resp := doRequest(t, router, http.MethodPost, "/api/owners/alice/events",
			`{"title":"Once","eventDateTime":"2024-03-01T09:00","recurringPattern":"WEEKLY"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var data scheduleDTO
		decodeData(t, resp, &data)
		assert.False(t, data.Master.IsRecurring)
		assert.Empty(t, data.Instances)
	})
}

func TestEventRoutes_CreateRejections(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{"malformed json", "/api/owners/alice/events", `{"title":`, http.StatusBadRequest, codeBadRequest, ""},
		{"missing title", "/api/owners/alice/events", `{"eventDateTime":"2024-01-31T10:00:00"}`, http.StatusUnprocessableEntity, codeValidation, "title"},
		{"missing time", "/api/owners/alice/events", `{"title":"x"}`, http.StatusUnprocessableEntity, codeValidation, "event_date_time"},
		{"unparseable time", "/api/owners/alice/events", `{"title":"x","eventDateTime":"tomorrow"}`, http.StatusUnprocessableEntity, codeValidation, "event_date_time"},
		{"unknown pattern", "/api/owners/alice/events", `{"title":"x","eventDateTime":"2024-01-31T10:00:00","isRecurring":true,"recurringPattern":"HOURLY"}`, http.StatusUnprocessableEntity, codeValidation, "recurring_pattern"},
		{"unknown owner", "/api/owners/carol/events", `{"title":"x","eventDateTime":"2024-01-31T10:00:00"}`, http.StatusNotFound, codeNotFound, ""},
		{"unknown category", "/api/owners/alice/events", `{"title":"x","eventDateTime":"2024-01-31T10:00:00","categoryId":"nope"}`, http.StatusNotFound, codeNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := doRequest(t, router, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.ErrorCode)
			if tt.wantField != "" {
				assert.Contains(t, resp.Errors, tt.wantField)
			}
		})
	}
}

func TestEventRoutes_GetAndDelete(t *testing.T) {
	router := newTestRouter(t)

	_, resp := doRequest(t, router, http.MethodPost, "/api/owners/alice/events",
		`{"title":"Sync","eventDateTime":"2024-01-31T10:00:00","isRecurring":true,"recurringPattern":"WEEKLY","recurringEndDate":"2024-02-29T00:00:00"}`)
	var created scheduleDTO
	decodeData(t, resp, &created)
	path := "/api/owners/alice/events/" + created.Master.ID

	rec, resp := doRequest(t, router, http.MethodGet, "/api/owners/bob/events/"+created.Master.ID, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, codeForbidden, resp.ErrorCode)

	rec, _ = doRequest(t, router, http.MethodDelete, "/api/owners/bob/events/"+created.Master.ID, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp = doRequest(t, router, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)

	rec, _ = doRequest(t, router, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, instance := range created.Instances {
		rec, _ = doRequest(t, router, http.MethodGet, "/api/owners/alice/events/"+instance.ID, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, "instance %s should be gone", instance.ID)
	}
}

func TestEventRoutes_Range(t *testing.T) {
	router := newTestRouter(t)

	rec, _ := doRequest(t, router, http.MethodPost, "/api/owners/alice/events",
		`{"title":"Run","eventDateTime":"2024-01-31T07:00:00","isRecurring":true,"recurringPattern":"EVERY_N_DAYS","recurringInterval":2,"recurringEndDate":"2024-03-01T00:00:00"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := doRequest(t, router, http.MethodGet,
		"/api/owners/alice/events/range?startDate=2024-02-01T00:00:00&endDate=2024-02-06T07:00:00", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var events []eventDTO
	decodeData(t, resp, &events)
	require.Len(t, events, 3, "Feb 2, Feb 4 and Feb 6 with an inclusive end")
	assert.Equal(t, 2, events[0].EventDateTime.Day())
	assert.Equal(t, 6, events[2].EventDateTime.Day())

	rec, resp = doRequest(t, router, http.MethodGet,
		"/api/owners/alice/events/range?startDate=2024-02-06&endDate=2024-02-01", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, resp.Errors, "end_date")

	rec, resp = doRequest(t, router, http.MethodGet, "/api/owners/alice/events/range?startDate=soon&endDate=2024-02-01", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, resp.Errors, "start_date")

	rec, resp = doRequest(t, router, http.MethodGet, "/api/owners/bob/events/range?startDate=2024-01-01&endDate=2024-12-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(resp.Data))
}

func TestSequenceRoutes(t *testing.T) {
	router := newTestRouter(t)

	for _, want := range []int64{1, 2} {
		rec, resp := doRequest(t, router, http.MethodPost, "/api/owners/alice/sequences/task", "")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var data sequenceDTO
		decodeData(t, resp, &data)
		assert.Equal(t, want, data.DisplayNumber)
		assert.Equal(t, "task", data.Kind)
	}

	rec, resp := doRequest(t, router, http.MethodPost, "/api/owners/alice/sequences/widget", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, resp.Errors, "kind")

	rec, _ = doRequest(t, router, http.MethodPost, "/api/owners/carol/sequences/note", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type stubEventService struct {
	err error
}

func (s stubEventService) CreateSchedule(context.Context, application.CreateScheduleParams) (application.ScheduleResult, error) {
	return application.ScheduleResult{}, s.err
}

func (s stubEventService) GetSchedule(context.Context, string, string) (application.ScheduleResult, error) {
	return application.ScheduleResult{}, s.err
}

func (s stubEventService) DeleteSchedule(context.Context, string, string) error {
	return s.err
}

func (s stubEventService) OccurrencesInRange(context.Context, application.RangeParams) ([]persistence.Record, error) {
	return nil, s.err
}

func TestResponder_ServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"partial materialization", &application.MaterializationError{MasterID: "m-1", Instances: 3, Err: errors.New("disk full")}, http.StatusInternalServerError, codePartialMaterialization},
		{"concurrency", application.ErrConcurrency, http.StatusConflict, codeConcurrency},
		{"ownership", application.ErrOwnership, http.StatusForbidden, codeForbidden},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, codeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(RouterConfig{
				Events: NewEventHandler(stubEventService{err: tt.err}, nil, testfixtures.DiscardLogger()),
				Logger: testfixtures.DiscardLogger(),
			})
			rec, resp := doRequest(t, router, http.MethodPost, "/api/owners/alice/events",
				`{"title":"x","eventDateTime":"2024-01-31T10:00:00Z"}`)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, resp.ErrorCode)
			assert.False(t, resp.Success)
			if tt.wantStatus == http.StatusConflict {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestRouter_Infrastructure(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		router := NewRouter(RouterConfig{Health: func(context.Context) error { return nil }})
		rec, resp := doRequest(t, router, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)
	})

	t.Run("unhealthy storage", func(t *testing.T) {
		router := NewRouter(RouterConfig{
			Health: func(context.Context) error { return errors.New("database is locked") },
			Logger: testfixtures.DiscardLogger(),
		})
		rec, resp := doRequest(t, router, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, codeUnavailable, resp.ErrorCode)
	})

	t.Run("unknown route", func(t *testing.T) {
		rec, resp := doRequest(t, NewRouter(RouterConfig{Logger: testfixtures.DiscardLogger()}), http.MethodGet, "/nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, codeNotFound, resp.ErrorCode)
	})

	t.Run("cors preflight", func(t *testing.T) {
		router := NewRouter(RouterConfig{CORSOrigins: []string{"https://app.example"}, Logger: testfixtures.DiscardLogger()})
		req := httptest.NewRequest(http.MethodOptions, "/api/owners/alice/events", nil)
		req.Header.Set("Origin", "https://app.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
