package httpapi

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/fieldsched/internal/model"
	"github.com/Freeeeeet/fieldsched/internal/service"
)

type createBookingRequest struct {
	TechnicianID int64               `json:"technician_id"`
	StartAt      time.Time           `json:"start_datetime"`
	EndAt        time.Time           `json:"end_datetime"`
	Status       model.BookingStatus `json:"status,omitempty"`
	RequestID    *int64              `json:"request_id,omitempty"`
	Notes        string              `json:"notes,omitempty"`
}

type patchBookingRequest struct {
	StartAt      *time.Time           `json:"start_datetime,omitempty"`
	EndAt        *time.Time           `json:"end_datetime,omitempty"`
	TechnicianID *int64               `json:"technician_id,omitempty"`
	Status       *model.BookingStatus `json:"status,omitempty"`
}

type bookingResponse struct {
	OK      bool           `json:"ok"`
	Booking *model.Booking `json:"booking"`
}

func (a *API) handleBookingCreate(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	booking, err := a.deps.Bookings.Create(r.Context(), service.CreateBookingInput{
		TechnicianID: req.TechnicianID,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		Status:       req.Status,
		RequestID:    req.RequestID,
		Notes:        req.Notes,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, bookingResponse{OK: true, Booking: booking})
}

func (a *API) handleBookingGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "bookingID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	booking, err := a.deps.Bookings.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, bookingResponse{OK: true, Booking: booking})
}

// PATCH /api/v1/bookings/{id} → 200 {ok, booking} | 404 | 400 | 409 | 403
func (a *API) handleBookingPatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "bookingID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	var req patchBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	booking, err := a.deps.Bookings.Patch(r.Context(), id, model.BookingPatch{
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		TechnicianID: req.TechnicianID,
		Status:       req.Status,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, bookingResponse{OK: true, Booking: booking})
}

// DELETE переводит бронирование в canceled, строка остаётся
func (a *API) handleBookingDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "bookingID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	booking, err := a.deps.Bookings.Delete(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, bookingResponse{OK: true, Booking: booking})
}
