package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/fieldsched/internal/apperr"
	"github.com/Freeeeeet/fieldsched/internal/model"
)

func newTestSuggestions(cal *mockCalendar, store *mockBookingStore) *SuggestionService {
	return NewSuggestionService(newTestAvailability(cal, store), zap.NewNop())
}

func tuesday(hour, minute int) time.Time {
	return monday(hour, minute).Add(24 * time.Hour)
}

func ptr(t time.Time) *time.Time { return &t }

func TestSuggest_PreferredDayExample(t *testing.T) {
	store := newMockBookingStore(techID)
	seedBooking(t, store, techID, monday(9, 0), monday(10, 0), model.BookingStatusConfirmed)
	svc := newTestSuggestions(&mockCalendar{rules: mondayShift()}, store)

	res, err := svc.Suggest(context.Background(), SuggestionQuery{
		TechnicianID:    techID,
		DurationMinutes: 90,
		From:            monday(8, 0),
		To:              monday(18, 0),
		PreferStart:     ptr(monday(9, 0)),
	})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if res.Phase != PhasePreferredDay {
		t.Fatalf("phase = %q, want preferred_day", res.Phase)
	}
	if len(res.Candidates) == 0 {
		t.Fatalf("expected candidates")
	}
	first := res.Candidates[0]
	if !first.Start.Equal(monday(10, 0)) || !first.End.Equal(monday(11, 30)) {
		t.Fatalf("first candidate = %s–%s, want 10:00–11:30", first.Start.Format("15:04"), first.End.Format("15:04"))
	}
	if res.NextAvailable == nil || !res.NextAvailable.Start.Equal(first.Start) {
		t.Fatalf("nextAvailable must be the first candidate, got %+v", res.NextAvailable)
	}
	if len(res.Candidates) > MaxSuggestions {
		t.Fatalf("got %d candidates, max is %d", len(res.Candidates), MaxSuggestions)
	}
	if !res.WithinSLA {
		t.Fatalf("without an SLA window any candidate is within SLA")
	}
}

func TestSuggest_ExactDurationAndContiguity(t *testing.T) {
	store := newMockBookingStore(techID)
	seedBooking(t, store, techID, monday(9, 0), monday(10, 0), model.BookingStatusConfirmed)
	seedBooking(t, store, techID, monday(11, 0), monday(12, 0), model.BookingStatusPending)
	cal := &mockCalendar{rules: mondayShift()}
	svc := newTestSuggestions(cal, store)

	q := SuggestionQuery{
		TechnicianID:    techID,
		DurationMinutes: 45,
		From:            monday(8, 0),
		To:              monday(18, 0),
		SlotMinutes:     30,
	}
	res, err := svc.Suggest(context.Background(), q)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}

	slots, err := newTestAvailability(cal, store).ComputeSlots(context.Background(), AvailabilityQuery{
		TechnicianID: techID, From: q.From, To: q.To, SlotMinutes: 30,
	})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}

	for _, c := range res.Candidates {
		if c.Duration() != 45*time.Minute {
			t.Fatalf("candidate %s lasts %s, want 45m", c.Start.Format("15:04"), c.Duration())
		}
		for _, s := range slots {
			if (model.Interval{Start: s.Start, End: s.End}).Overlaps(c) && !s.Available {
				t.Fatalf("candidate %s–%s touches unavailable slot %s", c.Start.Format("15:04"), c.End.Format("15:04"), s.Start.Format("15:04"))
			}
		}
	}

	wantStarts := []time.Time{monday(8, 0), monday(10, 0), monday(12, 0), monday(12, 30), monday(13, 0)}
	if len(res.Candidates) != len(wantStarts) {
		t.Fatalf("got %d candidates, want %d", len(res.Candidates), len(wantStarts))
	}
	for i, want := range wantStarts {
		if !res.Candidates[i].Start.Equal(want) {
			t.Fatalf("candidate %d starts at %s, want %s", i, res.Candidates[i].Start.Format("15:04"), want.Format("15:04"))
		}
	}
}

func TestSuggest_PhaseFallback(t *testing.T) {
	// Понедельник занят целиком, вторник свободен
	store := newMockBookingStore(techID)
	seedBooking(t, store, techID, monday(8, 0), monday(18, 0), model.BookingStatusConfirmed)
	rules := append(mondayShift(), model.WorkingHoursRule{
		ID: 2, TechnicianID: techID, Weekday: 2, StartMinute: 8 * 60, EndMinute: 18 * 60, IsActive: true,
	})
	svc := newTestSuggestions(&mockCalendar{rules: rules}, store)

	tests := []struct {
		name          string
		slaFrom       *time.Time
		slaTo         *time.Time
		wantPhase     SuggestionPhase
		wantStart     time.Time
		wantWithinSLA bool
	}{
		{"sla phase after preferred day fails", ptr(tuesday(12, 0)), ptr(tuesday(18, 0)), PhaseSLA, tuesday(12, 0), true},
		{"open phase when sla window is blocked", ptr(monday(8, 0)), ptr(monday(18, 0)), PhaseOpen, tuesday(8, 0), false},
		{"open phase without sla", nil, nil, PhaseOpen, tuesday(8, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Suggest(context.Background(), SuggestionQuery{
				TechnicianID:    techID,
				DurationMinutes: 60,
				From:            monday(0, 0),
				To:              tuesday(23, 0),
				SLAFrom:         tt.slaFrom,
				SLATo:           tt.slaTo,
				PreferStart:     ptr(monday(10, 0)),
			})
			if err != nil {
				t.Fatalf("Suggest: %v", err)
			}
			if res.Phase != tt.wantPhase {
				t.Fatalf("phase = %q, want %q", res.Phase, tt.wantPhase)
			}
			if !res.Candidates[0].Start.Equal(tt.wantStart) {
				t.Fatalf("first candidate at %s, want %s", res.Candidates[0].Start, tt.wantStart)
			}
			if res.WithinSLA != tt.wantWithinSLA {
				t.Fatalf("withinSLA = %v, want %v", res.WithinSLA, tt.wantWithinSLA)
			}
		})
	}
}

func TestSuggest_WithinSLARequiresFullFit(t *testing.T) {
	slots := BuildSlots(
		AvailabilityQuery{TechnicianID: techID, From: monday(8, 0), To: monday(12, 0), SlotMinutes: 30},
		mondayShift(), nil, nil, time.UTC,
	)
	// Старт внутри SLA, но окно заканчивается позже дедлайна
	res := SuggestFromSlots(slots, SuggestionQuery{
		DurationMinutes: 60,
		SlotMinutes:     30,
		SLAFrom:         ptr(monday(11, 0)),
		SLATo:           ptr(monday(11, 30)),
	}, time.UTC)

	if res.Phase != PhaseSLA {
		t.Fatalf("phase = %q, want sla", res.Phase)
	}
	if res.WithinSLA {
		t.Fatalf("candidate 11:00–12:00 does not fit into SLA 11:00–11:30")
	}
}

func TestSuggest_NothingFound(t *testing.T) {
	svc := newTestSuggestions(&mockCalendar{}, newMockBookingStore(techID))

	res, err := svc.Suggest(context.Background(), SuggestionQuery{
		TechnicianID:    techID,
		DurationMinutes: 30,
		From:            monday(8, 0),
		To:              monday(18, 0),
		SLAFrom:         ptr(monday(8, 0)),
		SLATo:           ptr(monday(12, 0)),
	})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(res.Candidates) != 0 || res.WithinSLA || res.NextAvailable != nil || res.Phase != "" {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestSuggest_Validation(t *testing.T) {
	svc := newTestSuggestions(&mockCalendar{}, newMockBookingStore(techID))

	tests := []struct {
		name string
		q    SuggestionQuery
	}{
		{"zero duration", SuggestionQuery{TechnicianID: techID, From: monday(8, 0), To: monday(9, 0)}},
		{"half sla", SuggestionQuery{TechnicianID: techID, DurationMinutes: 30, From: monday(8, 0), To: monday(9, 0), SLAFrom: ptr(monday(8, 0))}},
		{"inverted sla", SuggestionQuery{TechnicianID: techID, DurationMinutes: 30, From: monday(8, 0), To: monday(9, 0), SLAFrom: ptr(monday(9, 0)), SLATo: ptr(monday(8, 0))}},
		{"duration overflow", SuggestionQuery{TechnicianID: techID, DurationMinutes: math.MaxInt, From: monday(8, 0), To: monday(12, 0)}},
		{"duration longer than window", SuggestionQuery{TechnicianID: techID, DurationMinutes: 300, From: monday(8, 0), To: monday(12, 0)}},
		{"bad window", SuggestionQuery{TechnicianID: techID, DurationMinutes: 30, From: monday(9, 0), To: monday(8, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Suggest(context.Background(), tt.q); !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
