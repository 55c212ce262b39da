package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/fieldsched/internal/apperr"
	"github.com/Freeeeeet/fieldsched/internal/model"
	"github.com/Freeeeeet/fieldsched/internal/repository"
)

const techID = int64(1)

// monday — 2026-10-19, понедельник
func monday(hour, minute int) time.Time {
	return time.Date(2026, 10, 19, hour, minute, 0, 0, time.UTC)
}

func mondayShift() []model.WorkingHoursRule {
	return []model.WorkingHoursRule{
		{ID: 1, TechnicianID: techID, Weekday: 1, StartMinute: 8 * 60, EndMinute: 18 * 60, IsActive: true},
	}
}

func newTestAvailability(cal *mockCalendar, store *mockBookingStore) *AvailabilityService {
	return NewAvailabilityService(cal, store, time.UTC, DefaultSlotMinutes, zap.NewNop())
}

func seedBooking(t *testing.T, store *mockBookingStore, tech int64, start, end time.Time, status model.BookingStatus) *model.Booking {
	t.Helper()
	b := &model.Booking{TechnicianID: tech, StartAt: start, EndAt: end, Status: status}
	err := store.WithinTx(context.Background(), func(tx repository.BookingTx) error {
		return tx.CreateBooking(context.Background(), b)
	})
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return b
}

func TestComputeSlots_ExampleScenario(t *testing.T) {
	store := newMockBookingStore(techID)
	seedBooking(t, store, techID, monday(9, 0), monday(10, 0), model.BookingStatusConfirmed)
	svc := newTestAvailability(&mockCalendar{rules: mondayShift()}, store)

	slots, err := svc.ComputeSlots(context.Background(), AvailabilityQuery{
		TechnicianID: techID,
		From:         monday(8, 0),
		To:           monday(11, 0),
		SlotMinutes:  30,
	})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}

	want := []struct {
		start     time.Time
		available bool
		reason    model.SlotReason
	}{
		{monday(8, 0), true, ""},
		{monday(8, 30), true, ""},
		{monday(9, 0), false, model.SlotReasonBooked},
		{monday(9, 30), false, model.SlotReasonBooked},
		{monday(10, 0), true, ""},
		{monday(10, 30), true, ""},
	}
	if len(slots) != len(want) {
		t.Fatalf("got %d slots, want %d", len(slots), len(want))
	}
	for i, w := range want {
		s := slots[i]
		if !s.Start.Equal(w.start) || s.Available != w.available || s.Reason != w.reason {
			t.Fatalf("slot %d = %+v, want start=%s available=%v reason=%q", i, s, w.start, w.available, w.reason)
		}
	}
}

func TestComputeSlots_CoverageIsComplete(t *testing.T) {
	store := newMockBookingStore(techID)
	svc := newTestAvailability(&mockCalendar{rules: mondayShift()}, store)

	tests := []struct {
		name        string
		from, to    time.Time
		slotMinutes int
		wantSlots   int
	}{
		{"whole day", monday(0, 0), monday(0, 0).Add(24 * time.Hour), 30, 48},
		{"odd step", monday(8, 0), monday(12, 0), 20, 12},
		{"partial tail dropped", monday(8, 0), monday(9, 10), 30, 2},
		{"multi day", monday(0, 0), monday(0, 0).Add(72 * time.Hour), 60, 72},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := svc.ComputeSlots(context.Background(), AvailabilityQuery{
				TechnicianID: techID, From: tt.from, To: tt.to, SlotMinutes: tt.slotMinutes,
			})
			if err != nil {
				t.Fatalf("ComputeSlots: %v", err)
			}
			if len(slots) != tt.wantSlots {
				t.Fatalf("got %d slots, want %d", len(slots), tt.wantSlots)
			}
			if !slots[0].Start.Equal(tt.from) {
				t.Fatalf("first slot starts at %s, want %s", slots[0].Start, tt.from)
			}
			for i := range slots {
				if got := slots[i].End.Sub(slots[i].Start); got != time.Duration(tt.slotMinutes)*time.Minute {
					t.Fatalf("slot %d has width %s", i, got)
				}
				if i > 0 && !slots[i].Start.Equal(slots[i-1].End) {
					t.Fatalf("slot %d is not adjacent to slot %d", i, i-1)
				}
			}
		})
	}
}

func TestComputeSlots_Reasons(t *testing.T) {
	tech, other := techID, int64(2)
	store := newMockBookingStore(techID, other)
	seedBooking(t, store, techID, monday(12, 0), monday(13, 0), model.BookingStatusPending)
	seedBooking(t, store, techID, monday(15, 0), monday(16, 0), model.BookingStatusCanceled)
	seedBooking(t, store, other, monday(14, 0), monday(15, 0), model.BookingStatusConfirmed)

	cal := &mockCalendar{
		rules: mondayShift(),
		timeOff: []model.TimeOff{
			{ID: 1, TechnicianID: &tech, StartAt: monday(10, 0), EndAt: monday(11, 0), Status: model.TimeOffStatusApproved},
			{ID: 2, TechnicianID: nil, StartAt: monday(16, 30), EndAt: monday(17, 0), Status: model.TimeOffStatusApproved},
			{ID: 3, TechnicianID: &tech, StartAt: monday(8, 0), EndAt: monday(9, 0), Status: model.TimeOffStatusPending},
			{ID: 4, TechnicianID: &other, StartAt: monday(9, 0), EndAt: monday(10, 0), Status: model.TimeOffStatusApproved},
		},
	}
	svc := newTestAvailability(cal, store)

	slots, err := svc.ComputeSlots(context.Background(), AvailabilityQuery{
		TechnicianID: techID, From: monday(7, 0), To: monday(19, 0), SlotMinutes: 60,
	})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}

	want := map[int]model.SlotReason{
		7:  model.SlotReasonOutOfHours,
		8:  "", // pending time-off is ignored
		9:  "", // other technician's time-off
		10: model.SlotReasonTimeOff,
		12: model.SlotReasonBooked,
		14: "", // other technician's booking
		15: "", // canceled booking
		16: model.SlotReasonTimeOff,
		18: model.SlotReasonOutOfHours,
	}
	for _, s := range slots {
		reason, ok := want[s.Start.Hour()]
		if !ok {
			continue
		}
		if s.Reason != reason || s.Available != (reason == "") {
			t.Fatalf("slot %s: available=%v reason=%q, want reason %q", s.Start.Format("15:04"), s.Available, s.Reason, reason)
		}
	}
}

func TestComputeSlots_TravelBuffer(t *testing.T) {
	store := newMockBookingStore(techID)
	// Закончилось до начала окна, но буфер задевает первый слот
	seedBooking(t, store, techID, monday(8, 0), monday(9, 0), model.BookingStatusConfirmed)
	svc := newTestAvailability(&mockCalendar{rules: mondayShift()}, store)

	slots, err := svc.ComputeSlots(context.Background(), AvailabilityQuery{
		TechnicianID: techID, From: monday(9, 0), To: monday(10, 0), SlotMinutes: 15, TravelBufferMinutes: 20,
	})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}

	wantAvailable := []bool{false, false, true, true}
	for i, s := range slots {
		if s.Available != wantAvailable[i] {
			t.Fatalf("slot %s available=%v, want %v", s.Start.Format("15:04"), s.Available, wantAvailable[i])
		}
		if !s.Available && s.Reason != model.SlotReasonBooked {
			t.Fatalf("slot %s reason=%q, want booked", s.Start.Format("15:04"), s.Reason)
		}
	}
}

func TestComputeSlots_NoWorkingHours(t *testing.T) {
	svc := newTestAvailability(&mockCalendar{}, newMockBookingStore(techID))

	slots, err := svc.ComputeSlots(context.Background(), AvailabilityQuery{
		TechnicianID: techID, From: monday(8, 0), To: monday(12, 0),
	})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if len(slots) != 8 {
		t.Fatalf("default slot size must be 30 minutes, got %d slots", len(slots))
	}
	for _, s := range slots {
		if s.Available || s.Reason != model.SlotReasonOutOfHours {
			t.Fatalf("slot %s must be out_of_hours, got %+v", s.Start.Format("15:04"), s)
		}
	}
}

func TestComputeSlots_LocalTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	svc := NewAvailabilityService(&mockCalendar{rules: mondayShift()}, newMockBookingStore(techID), loc, 60, zap.NewNop())

	// 05:00 UTC = 08:00 местного времени
	slots, err := svc.ComputeSlots(context.Background(), AvailabilityQuery{
		TechnicianID: techID, From: monday(4, 0), To: monday(6, 0),
	})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if slots[0].Available || !slots[1].Available {
		t.Fatalf("rules must be evaluated in the configured zone: %+v", slots)
	}
}

func TestComputeSlots_Validation(t *testing.T) {
	svc := newTestAvailability(&mockCalendar{}, newMockBookingStore(techID))

	tests := []struct {
		name string
		q    AvailabilityQuery
	}{
		{"missing technician", AvailabilityQuery{From: monday(8, 0), To: monday(9, 0)}},
		{"inverted window", AvailabilityQuery{TechnicianID: techID, From: monday(9, 0), To: monday(8, 0)}},
		{"negative slot", AvailabilityQuery{TechnicianID: techID, From: monday(8, 0), To: monday(9, 0), SlotMinutes: -5}},
		{"negative buffer", AvailabilityQuery{TechnicianID: techID, From: monday(8, 0), To: monday(9, 0), TravelBufferMinutes: -1}},
		{"window too long", AvailabilityQuery{TechnicianID: techID, From: monday(8, 0), To: monday(8, 0).Add(40 * 24 * time.Hour)}},
		{"slot overflows duration", AvailabilityQuery{TechnicianID: techID, From: monday(8, 0), To: monday(9, 0), SlotMinutes: 200000000}},
		{"buffer overflows duration", AvailabilityQuery{TechnicianID: techID, From: monday(8, 0), To: monday(9, 0), TravelBufferMinutes: 200000000}},
		{"too many slots", AvailabilityQuery{TechnicianID: techID, From: monday(0, 0), To: monday(0, 0).Add(30 * 24 * time.Hour), SlotMinutes: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ComputeSlots(context.Background(), tt.q)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
