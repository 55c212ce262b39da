package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Freeeeeet/fieldsched/internal/apperr"
	"github.com/Freeeeeet/fieldsched/internal/model"
)

func (a *API) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	p := &queryParams{values: r.URL.Query()}
	limit := p.int("limit", 100)
	if p.err == nil && (limit <= 0 || limit > 1000) {
		p.fail("limit must be in 1..1000, got %d", limit)
	}
	if p.err != nil {
		a.writeError(w, r, p.err)
		return
	}

	events, err := a.deps.Outbox.DeadLettered(r.Context(), a.deps.MaxRetries, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []model.OutboxEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (a *API) handleRequeue(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "eventID")
	id, err := uuid.Parse(raw)
	if err != nil {
		a.writeError(w, r, apperr.Validation("invalid event id %q", raw))
		return
	}

	if err := a.deps.Outbox.Requeue(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// POST /api/v1/outbox/dispatch — внеплановый запуск диспетчера
func (a *API) handleDispatch(w http.ResponseWriter, r *http.Request) {
	report, err := a.deps.Dispatcher.RunOnce(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
