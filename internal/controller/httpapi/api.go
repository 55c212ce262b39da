// Package httpapi — HTTP-интерфейс движка расписаний.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/fieldsched/internal/apperr"
	"github.com/Freeeeeet/fieldsched/internal/dispatcher"
	"github.com/Freeeeeet/fieldsched/internal/model"
	"github.com/Freeeeeet/fieldsched/internal/service"
	"github.com/Freeeeeet/fieldsched/internal/telemetry"
)

const maxBodyBytes = 1 << 20

type Availability interface {
	ComputeSlots(ctx context.Context, q service.AvailabilityQuery) ([]model.Slot, error)
}

type Suggester interface {
	Suggest(ctx context.Context, q service.SuggestionQuery) (*service.Suggestions, error)
}

type Bookings interface {
	Get(ctx context.Context, id int64) (*model.Booking, error)
	Create(ctx context.Context, in service.CreateBookingInput) (*model.Booking, error)
	Patch(ctx context.Context, id int64, patch model.BookingPatch) (*model.Booking, error)
	Delete(ctx context.Context, id int64) (*model.Booking, error)
}

// OutboxAdmin — ручная работа с dead-letter событиями
type OutboxAdmin interface {
	DeadLettered(ctx context.Context, maxRetries, limit int) ([]model.OutboxEvent, error)
	Requeue(ctx context.Context, id uuid.UUID) error
}

type DispatchRunner interface {
	RunOnce(ctx context.Context) (dispatcher.Report, error)
}

// Deps — зависимости API
type Deps struct {
	Availability Availability
	Suggester    Suggester
	Bookings     Bookings
	Outbox       OutboxAdmin
	Dispatcher   DispatchRunner
	MaxRetries   int
	Pinger       func(ctx context.Context) error
}

type API struct {
	deps   Deps
	logger *zap.Logger
}

func New(deps Deps, logger *zap.Logger) *API {
	return &API{deps: deps, logger: logger.Named("http")}
}

// NewRouter собирает chi-роутер со служебными middleware и маршрутами API
func (a *API) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.MetricsMiddleware)

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", telemetry.Handler())
	a.Routes(r)
	return r
}

// Routes монтирует маршруты /api/v1 на переданный роутер
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/availability", a.handleAvailability)
		r.Get("/suggestions", a.handleSuggestions)

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", a.handleBookingCreate)
			r.Route("/{bookingID}", func(r chi.Router) {
				r.Get("/", a.handleBookingGet)
				r.Patch("/", a.handleBookingPatch)
				r.Delete("/", a.handleBookingDelete)
			})
		})

		r.Route("/outbox", func(r chi.Router) {
			r.Get("/dead-letters", a.handleDeadLetters)
			r.Post("/{eventID}/requeue", a.handleRequeue)
			r.Post("/dispatch", a.handleDispatch)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.deps.Pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.deps.Pinger(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidTransition, apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindOverlapConflict:
		return http.StatusConflict
	case apperr.KindPermissionDenied:
		return http.StatusForbidden
	case apperr.KindChannelDelivery:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError переводит ошибку в HTTP-ответ по её категории
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusForKind(kind)

	msg := apperr.PublicMessage(err)
	if status == http.StatusInternalServerError {
		a.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		msg = "internal error"
	}

	writeJSON(w, status, errorResponse{Error: kind.String(), Message: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Validation("request body too large")
		}
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s %q", name, raw)
	}
	return id, nil
}
