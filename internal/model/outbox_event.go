package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OutboxEventType string

const (
	EventBookingCreated       OutboxEventType = "created"
	EventBookingMoved         OutboxEventType = "moved"
	EventBookingResized       OutboxEventType = "resized"
	EventBookingStatusChanged OutboxEventType = "status_changed"
	EventBookingDeleted       OutboxEventType = "deleted"
)

// OutboxEvent — событие об изменении бронирования, ожидающее доставки
type OutboxEvent struct {
	ID          uuid.UUID       `json:"id"`
	BookingID   int64           `json:"booking_id"`
	EventType   OutboxEventType `json:"event_type"`
	Payload     EventPayload    `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	Processed   bool            `json:"processed"`
	ProcessedAt *time.Time      `json:"processed_at"`
	RetryCount  int             `json:"retry_count"`
	LastError   *string         `json:"last_error"`
}

// NewOutboxEvent создаёт событие, тип берётся из варианта payload
func NewOutboxEvent(bookingID int64, payload EventPayload, now time.Time) *OutboxEvent {
	return &OutboxEvent{
		ID:        uuid.New(),
		BookingID: bookingID,
		EventType: payload.EventType(),
		Payload:   payload,
		CreatedAt: now,
	}
}

// EventPayload — сумма типов: у каждого event_type свой вариант
type EventPayload interface {
	EventType() OutboxEventType
}

// BookingSnapshot — полный снимок бронирования на момент события
type BookingSnapshot struct {
	ID           int64         `json:"id"`
	TechnicianID int64         `json:"technician_id"`
	StartAt      time.Time     `json:"start_datetime"`
	EndAt        time.Time     `json:"end_datetime"`
	Status       BookingStatus `json:"status"`
	RequestID    *int64        `json:"request_id,omitempty"`
	Notes        string        `json:"notes,omitempty"`
}

func SnapshotOf(b *Booking) BookingSnapshot {
	return BookingSnapshot{
		ID:           b.ID,
		TechnicianID: b.TechnicianID,
		StartAt:      b.StartAt,
		EndAt:        b.EndAt,
		Status:       b.Status,
		RequestID:    b.RequestID,
		Notes:        b.Notes,
	}
}

// FieldChange — изменение одного поля
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// DiffBookings возвращает изменённые поля в фиксированном порядке
func DiffBookings(prev, next *Booking) []FieldChange {
	var diff []FieldChange
	if !prev.StartAt.Equal(next.StartAt) {
		diff = append(diff, FieldChange{"start_datetime", prev.StartAt.Format(time.RFC3339), next.StartAt.Format(time.RFC3339)})
	}
	if !prev.EndAt.Equal(next.EndAt) {
		diff = append(diff, FieldChange{"end_datetime", prev.EndAt.Format(time.RFC3339), next.EndAt.Format(time.RFC3339)})
	}
	if prev.TechnicianID != next.TechnicianID {
		diff = append(diff, FieldChange{"technician_id", fmt.Sprint(prev.TechnicianID), fmt.Sprint(next.TechnicianID)})
	}
	if prev.Status != next.Status {
		diff = append(diff, FieldChange{"status", string(prev.Status), string(next.Status)})
	}
	return diff
}

type BookingCreated struct {
	Booking BookingSnapshot `json:"booking"`
}

type BookingMoved struct {
	Booking BookingSnapshot `json:"booking"`
	Diff    []FieldChange   `json:"diff"`
}

type BookingResized struct {
	Booking BookingSnapshot `json:"booking"`
	Diff    []FieldChange   `json:"diff"`
}

type BookingStatusChanged struct {
	Booking BookingSnapshot `json:"booking"`
	From    BookingStatus   `json:"from"`
	To      BookingStatus   `json:"to"`
	Diff    []FieldChange   `json:"diff"`
}

type BookingDeleted struct {
	Booking BookingSnapshot `json:"booking"`
}

func (BookingCreated) EventType() OutboxEventType       { return EventBookingCreated }
func (BookingMoved) EventType() OutboxEventType         { return EventBookingMoved }
func (BookingResized) EventType() OutboxEventType       { return EventBookingResized }
func (BookingStatusChanged) EventType() OutboxEventType { return EventBookingStatusChanged }
func (BookingDeleted) EventType() OutboxEventType       { return EventBookingDeleted }

// PatchPayload выбирает вариант события для изменения бронирования.
// Смена статуса важнее перемещения, перемещение важнее изменения длительности.
func PatchPayload(prev, next *Booking) EventPayload {
	diff := DiffBookings(prev, next)
	snap := SnapshotOf(next)
	switch {
	case prev.Status != next.Status:
		return BookingStatusChanged{Booking: snap, From: prev.Status, To: next.Status, Diff: diff}
	case !prev.StartAt.Equal(next.StartAt) || prev.TechnicianID != next.TechnicianID:
		return BookingMoved{Booking: snap, Diff: diff}
	default:
		return BookingResized{Booking: snap, Diff: diff}
	}
}

// EncodePayload сериализует вариант в JSON для колонки payload
func EncodePayload(p EventPayload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.EventType(), err)
	}
	return data, nil
}

// DecodePayload восстанавливает вариант по event_type
func DecodePayload(t OutboxEventType, data []byte) (EventPayload, error) {
	var (
		p   EventPayload
		err error
	)
	switch t {
	case EventBookingCreated:
		var v BookingCreated
		err = json.Unmarshal(data, &v)
		p = v
	case EventBookingMoved:
		var v BookingMoved
		err = json.Unmarshal(data, &v)
		p = v
	case EventBookingResized:
		var v BookingResized
		err = json.Unmarshal(data, &v)
		p = v
	case EventBookingStatusChanged:
		var v BookingStatusChanged
		err = json.Unmarshal(data, &v)
		p = v
	case EventBookingDeleted:
		var v BookingDeleted
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown outbox event type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return p, nil
}

// SnapshotFromPayload достаёт снимок бронирования из любого варианта
func SnapshotFromPayload(p EventPayload) BookingSnapshot {
	switch v := p.(type) {
	case BookingCreated:
		return v.Booking
	case BookingMoved:
		return v.Booking
	case BookingResized:
		return v.Booking
	case BookingStatusChanged:
		return v.Booking
	case BookingDeleted:
		return v.Booking
	}
	return BookingSnapshot{}
}
