package model

import (
	"time"

	"github.com/Freeeeeet/fieldsched/internal/apperr"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"   // Ожидает подтверждения
	BookingStatusConfirmed BookingStatus = "confirmed" // Подтверждено
	BookingStatusDone      BookingStatus = "done"      // Выполнено
	BookingStatusCanceled  BookingStatus = "canceled"  // Отменено
)

// ActiveBookingStatuses — статусы, которые занимают время техника
var ActiveBookingStatuses = []BookingStatus{BookingStatusPending, BookingStatusConfirmed}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCanceled},
	BookingStatusConfirmed: {BookingStatusDone, BookingStatusCanceled},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusDone, BookingStatusCanceled:
		return true
	}
	return false
}

// IsTerminal — из done и canceled переходов нет
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusDone || s == BookingStatusCanceled
}

// IsActive — бронирование участвует в проверке пересечений
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// ValidateTransition проверяет переход по машине состояний
func (s BookingStatus) ValidateTransition(to BookingStatus) error {
	if !to.Valid() {
		return apperr.Validation("unknown booking status %q", to)
	}
	for _, allowed := range bookingTransitions[s] {
		if allowed == to {
			return nil
		}
	}
	return apperr.InvalidTransition("invalid status transition %s→%s", s, to)
}

type Booking struct {
	ID           int64         `json:"id"`
	TechnicianID int64         `json:"technician_id"`
	StartAt      time.Time     `json:"start_datetime"`
	EndAt        time.Time     `json:"end_datetime"`
	Status       BookingStatus `json:"status"`
	RequestID    *int64        `json:"request_id,omitempty"` // исходная заявка на обслуживание
	Notes        string        `json:"notes,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (b *Booking) Interval() Interval {
	return Interval{Start: b.StartAt, End: b.EndAt}
}

// BookingPatch — частичное изменение бронирования, nil означает "не менять"
type BookingPatch struct {
	StartAt      *time.Time
	EndAt        *time.Time
	TechnicianID *int64
	Status       *BookingStatus
}

func (p BookingPatch) IsEmpty() bool {
	return p.StartAt == nil && p.EndAt == nil && p.TechnicianID == nil && p.Status == nil
}
