package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/fieldsched/internal/apperr"
	"github.com/Freeeeeet/fieldsched/internal/model"
	"github.com/Freeeeeet/fieldsched/internal/repository"
)

// ── Mock CalendarStore ──

type mockCalendar struct {
	rules   []model.WorkingHoursRule
	timeOff []model.TimeOff
}

func (m *mockCalendar) ActiveWorkingHours(_ context.Context, technicianID int64) ([]model.WorkingHoursRule, error) {
	var out []model.WorkingHoursRule
	for _, r := range m.rules {
		if r.TechnicianID == technicianID && r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockCalendar) ApprovedTimeOff(_ context.Context, technicianID int64, from, to time.Time) ([]model.TimeOff, error) {
	window := model.Interval{Start: from, End: to}
	var out []model.TimeOff
	for _, t := range m.timeOff {
		if t.Status != model.TimeOffStatusApproved {
			continue
		}
		if t.TechnicianID != nil && *t.TechnicianID != technicianID {
			continue
		}
		if t.Interval().Overlaps(window) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ── Mock BookingStore ──
// Эмулирует exclusion constraint: активные бронирования техника не пересекаются.

type mockBookingStore struct {
	mu          sync.Mutex
	nextID      int64
	technicians map[int64]*model.Technician
	bookings    map[int64]*model.Booking
	events      []*model.OutboxEvent
}

func newMockBookingStore(technicianIDs ...int64) *mockBookingStore {
	s := &mockBookingStore{
		technicians: make(map[int64]*model.Technician),
		bookings:    make(map[int64]*model.Booking),
	}
	for _, id := range technicianIDs {
		s.technicians[id] = &model.Technician{ID: id, DisplayName: "tech", IsActive: true}
	}
	return s
}

func (s *mockBookingStore) GetBooking(_ context.Context, id int64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, apperr.NotFound("booking %d not found", id)
	}
	cp := *b
	return &cp, nil
}

func (s *mockBookingStore) ActiveInRange(_ context.Context, technicianID int64, from, to time.Time) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	window := model.Interval{Start: from, End: to}
	var out []model.Booking
	for _, b := range s.bookings {
		if b.TechnicianID == technicianID && b.Status.IsActive() && b.Interval().Overlaps(window) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (s *mockBookingStore) WithinTx(_ context.Context, fn func(tx repository.BookingTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[int64]*model.Booking, len(s.bookings))
	for id, b := range s.bookings {
		cp := *b
		snapshot[id] = &cp
	}
	events := len(s.events)
	nextID := s.nextID

	if err := fn(&mockTx{store: s}); err != nil {
		s.bookings = snapshot
		s.events = s.events[:events]
		s.nextID = nextID
		return err
	}
	return nil
}

func (s *mockBookingStore) activeFor(technicianID int64) []model.Booking {
	var out []model.Booking
	for _, b := range s.bookings {
		if b.TechnicianID == technicianID && b.Status.IsActive() {
			out = append(out, *b)
		}
	}
	return out
}

type mockTx struct {
	store *mockBookingStore
}

func (t *mockTx) Technician(_ context.Context, id int64) (*model.Technician, error) {
	tech, ok := t.store.technicians[id]
	if !ok {
		return nil, apperr.NotFound("technician %d not found", id)
	}
	return tech, nil
}

func (t *mockTx) GetBookingForUpdate(_ context.Context, id int64) (*model.Booking, error) {
	b, ok := t.store.bookings[id]
	if !ok {
		return nil, apperr.NotFound("booking %d not found", id)
	}
	cp := *b
	return &cp, nil
}

func (t *mockTx) checkExclusion(b *model.Booking) error {
	if !b.Status.IsActive() {
		return nil
	}
	for _, other := range t.store.bookings {
		if other.ID == b.ID || other.TechnicianID != b.TechnicianID || !other.Status.IsActive() {
			continue
		}
		if other.Interval().Overlaps(b.Interval()) {
			return apperr.OverlapConflict("booking overlaps booking %d", other.ID)
		}
	}
	return nil
}

func (t *mockTx) CreateBooking(_ context.Context, b *model.Booking) error {
	if err := t.checkExclusion(b); err != nil {
		return err
	}
	t.store.nextID++
	b.ID = t.store.nextID
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	t.store.bookings[b.ID] = &cp
	return nil
}

func (t *mockTx) UpdateBooking(_ context.Context, b *model.Booking) error {
	if _, ok := t.store.bookings[b.ID]; !ok {
		return apperr.NotFound("booking %d not found", b.ID)
	}
	if err := t.checkExclusion(b); err != nil {
		return err
	}
	b.UpdatedAt = time.Now()
	cp := *b
	t.store.bookings[b.ID] = &cp
	return nil
}

func (t *mockTx) Enqueue(_ context.Context, event *model.OutboxEvent) error {
	t.store.events = append(t.store.events, event)
	return nil
}
