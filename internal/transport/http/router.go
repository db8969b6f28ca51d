package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rlegorreta/audit-service/auditstore"
	"github.com/rlegorreta/audit-service/internal/query"
)

// Query fields accepted on the events endpoints. Unknown parameters are
// ignored, matching the filter builder.
var filterParams = []string{"eventName", "username", "applicationName", "correlationId"}

const (
	paramPage     = "page"
	paramSize     = "size"
	paramFrom     = "from"
	paramUntil    = "until"
	paramDate     = "date"
	paramUserID   = "userId"
	paramPhone    = "phone"
	paramUsername = "username"
)

const defaultPageSize = 50

// QueryService is the slice of the query layer the handlers need.
type QueryService interface {
	ListPage(ctx context.Context, criteria auditstore.Criteria, page int, size int) (query.Page, error)
	Count(ctx context.Context, criteria auditstore.Criteria) (int64, error)
	EventsDetail(ctx context.Context, userID int, phone string) ([]auditstore.Event, error)
}

// NotificationSource provides catch-up queries and live subscriptions.
type NotificationSource interface {
	RecentForUser(ctx context.Context, username string) ([]auditstore.Notification, error)
	Subscribe() (<-chan auditstore.Notification, func())
}

// Deps carries the collaborators of the HTTP surface.
type Deps struct {
	Queries       QueryService
	Notifications NotificationSource
	Logger        *slog.Logger
}

// NewRouter builds the HTTP surface of the audit service.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	h := &handlers{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.listEvents)
		r.Get("/count", h.countEvents)
		r.Get("/detail", h.eventsDetail)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.recentNotifications)
		r.Get("/stream", h.streamNotifications)
	})

	return r
}

type handlers struct {
	deps Deps
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	criteria, criteriaErr := criteriaFromRequest(r)
	if criteriaErr != nil {
		h.writeError(w, r, criteriaErr)
		return
	}

	page, pageErr := intParam(r, paramPage, 0)
	if pageErr != nil {
		h.writeError(w, r, pageErr)
		return
	}

	size, sizeErr := intParam(r, paramSize, defaultPageSize)
	if sizeErr != nil {
		h.writeError(w, r, sizeErr)
		return
	}

	result, err := h.deps.Queries.ListPage(r.Context(), criteria, page, size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) countEvents(w http.ResponseWriter, r *http.Request) {
	criteria, criteriaErr := criteriaFromRequest(r)
	if criteriaErr != nil {
		h.writeError(w, r, criteriaErr)
		return
	}

	count, err := h.deps.Queries.Count(r.Context(), criteria)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

func (h *handlers) eventsDetail(w http.ResponseWriter, r *http.Request) {
	userID, userErr := intParam(r, paramUserID, -1)
	if userErr != nil || userID < 0 {
		h.writeError(w, r, errors.Join(auditstore.ErrInvalidQuery, errors.New("userId is required")))
		return
	}

	events, err := h.deps.Queries.EventsDetail(r.Context(), userID, r.URL.Query().Get(paramPhone))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *handlers) recentNotifications(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get(paramUsername)
	if username == "" {
		h.writeError(w, r, errors.Join(auditstore.ErrInvalidQuery, errors.New("username is required")))
		return
	}

	notifications, err := h.deps.Notifications.RecentForUser(r.Context(), username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if notifications == nil {
		notifications = []auditstore.Notification{}
	}

	writeJSON(w, http.StatusOK, notifications)
}

// criteriaFromRequest maps the request's query string onto search criteria.
// Date parameters accept RFC 3339 timestamps or plain yyyy-mm-dd days.
func criteriaFromRequest(r *http.Request) (auditstore.Criteria, error) {
	values := r.URL.Query()

	criteria := auditstore.NewCriteria()

	for _, param := range filterParams {
		if value := values.Get(param); value != "" {
			criteria = criteria.With(param, auditstore.MatchOperation, value)
		}
	}

	if day := values.Get(paramDate); day != "" {
		parsed, err := parseTimeParam(day)
		if err != nil {
			return auditstore.Criteria{}, err
		}
		criteria = criteria.WithDate(parsed)
	}

	from, until := values.Get(paramFrom), values.Get(paramUntil)
	if from != "" || until != "" {
		if from == "" || until == "" {
			return auditstore.Criteria{}, errors.Join(
				auditstore.ErrInvalidQuery, errors.New("from and until must be supplied together"))
		}

		fromTime, fromErr := parseTimeParam(from)
		if fromErr != nil {
			return auditstore.Criteria{}, fromErr
		}

		untilTime, untilErr := parseTimeParam(until)
		if untilErr != nil {
			return auditstore.Criteria{}, untilErr
		}

		criteria = criteria.WithDateRange(fromTime, untilTime)
	}

	return criteria, nil
}

func parseTimeParam(value string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}

	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, errors.Join(auditstore.ErrInvalidQuery, err)
	}

	return parsed, nil
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Join(auditstore.ErrInvalidQuery, err)
	}

	return value, nil
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, auditstore.ErrInvalidQuery):
		status = http.StatusBadRequest
	case errors.Is(err, auditstore.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		h.deps.Logger.Error("request failed", "path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
