package httpapi

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Freeeeeet/fieldsched/internal/apperr"
	"github.com/Freeeeeet/fieldsched/internal/model"
	"github.com/Freeeeeet/fieldsched/internal/service"
)

type availabilityResponse struct {
	Slots           []model.Slot `json:"slots"`
	SlotMinutes     int          `json:"slotMinutes"`
	TravelBufferMin int          `json:"travelBufferMin"`
}

type suggestionResponse struct {
	Suggestions   []model.Interval        `json:"suggestions"`
	WithinSLA     bool                    `json:"withinSLA"`
	NextAvailable *model.Interval         `json:"nextAvailable"`
	Phase         service.SuggestionPhase `json:"phase,omitempty"`
}

// queryParams разбирает параметры запроса и запоминает первую ошибку
type queryParams struct {
	values url.Values
	err    error
}

func (p *queryParams) fail(format string, args ...any) {
	if p.err == nil {
		p.err = apperr.Validation(format, args...)
	}
}

func (p *queryParams) int64(name string, required bool) int64 {
	raw := p.values.Get(name)
	if raw == "" {
		if required {
			p.fail("%s is required", name)
		}
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		p.fail("%s must be an integer, got %q", name, raw)
	}
	return v
}

func (p *queryParams) int(name string, fallback int) int {
	raw := p.values.Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail("%s must be an integer, got %q", name, raw)
	}
	return v
}

func (p *queryParams) time(name string, required bool) *time.Time {
	raw := p.values.Get(name)
	if raw == "" {
		if required {
			p.fail("%s is required", name)
		}
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		p.fail("%s must be an ISO-8601 timestamp, got %q", name, raw)
		return nil
	}
	return &t
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// GET /api/v1/availability?technicianId=&from=&to=&slotMinutes=&travelBufferMin=
func (a *API) handleAvailability(w http.ResponseWriter, r *http.Request) {
	p := &queryParams{values: r.URL.Query()}
	q := service.AvailabilityQuery{
		TechnicianID:        p.int64("technicianId", true),
		From:                deref(p.time("from", true)),
		To:                  deref(p.time("to", true)),
		SlotMinutes:         p.int("slotMinutes", 0),
		TravelBufferMinutes: p.int("travelBufferMin", 0),
	}
	if p.err != nil {
		a.writeError(w, r, p.err)
		return
	}

	slots, err := a.deps.Availability.ComputeSlots(r.Context(), q)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	step := q.SlotMinutes
	if len(slots) > 0 {
		step = int(slots[0].End.Sub(slots[0].Start) / time.Minute)
	} else {
		slots = []model.Slot{}
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		Slots:           slots,
		SlotMinutes:     step,
		TravelBufferMin: q.TravelBufferMinutes,
	})
}

// GET /api/v1/suggestions?technicianId=&durationMin=&from=&to=&slaFrom=&slaTo=&preferStart=&slotMinutes=
func (a *API) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	p := &queryParams{values: r.URL.Query()}
	q := service.SuggestionQuery{
		TechnicianID:        p.int64("technicianId", true),
		DurationMinutes:     p.int("durationMin", 0),
		From:                deref(p.time("from", true)),
		To:                  deref(p.time("to", true)),
		SLAFrom:             p.time("slaFrom", false),
		SLATo:               p.time("slaTo", false),
		PreferStart:         p.time("preferStart", false),
		SlotMinutes:         p.int("slotMinutes", 0),
		TravelBufferMinutes: p.int("travelBufferMin", 0),
	}
	if p.err != nil {
		a.writeError(w, r, p.err)
		return
	}

	res, err := a.deps.Suggester.Suggest(r.Context(), q)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	candidates := res.Candidates
	if candidates == nil {
		candidates = []model.Interval{}
	}
	writeJSON(w, http.StatusOK, suggestionResponse{
		Suggestions:   candidates,
		WithinSLA:     res.WithinSLA,
		NextAvailable: res.NextAvailable,
		Phase:         res.Phase,
	})
}
