package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/fieldsched/internal/apperr"
	"github.com/Freeeeeet/fieldsched/internal/model"
)

const (
	DefaultSlotMinutes = 30
	MaxWindow          = 31 * 24 * time.Hour
	MaxSlots           = 5000

	// maxMinutes — верхняя граница для любых параметров в минутах.
	// Большие значения переполняют time.Duration
	maxMinutes = int(MaxWindow / time.Minute)
)

// CalendarStore — источник рабочих часов и отпусков
type CalendarStore interface {
	ActiveWorkingHours(ctx context.Context, technicianID int64) ([]model.WorkingHoursRule, error)
	ApprovedTimeOff(ctx context.Context, technicianID int64, from, to time.Time) ([]model.TimeOff, error)
}

// BookingReader — источник активных бронирований
type BookingReader interface {
	ActiveInRange(ctx context.Context, technicianID int64, from, to time.Time) ([]model.Booking, error)
}

// AvailabilityQuery — параметры расчёта слотов
type AvailabilityQuery struct {
	TechnicianID        int64
	From                time.Time
	To                  time.Time
	SlotMinutes         int // 0 означает DefaultSlotMinutes
	TravelBufferMinutes int // дорога/подготовка после каждого бронирования
}

func (q *AvailabilityQuery) normalize(defaultSlot int) error {
	if q.TechnicianID <= 0 {
		return apperr.Validation("technicianId is required")
	}
	if err := (model.Interval{Start: q.From, End: q.To}).Validate(); err != nil {
		return err
	}
	if q.SlotMinutes == 0 {
		q.SlotMinutes = defaultSlot
	}
	if q.SlotMinutes < 0 {
		return apperr.Validation("slotMinutes must be positive, got %d", q.SlotMinutes)
	}
	if q.SlotMinutes > maxMinutes {
		return apperr.Validation("slotMinutes must not exceed %d, got %d", maxMinutes, q.SlotMinutes)
	}
	if q.TravelBufferMinutes < 0 {
		return apperr.Validation("travelBufferMin must not be negative, got %d", q.TravelBufferMinutes)
	}
	if q.TravelBufferMinutes > maxMinutes {
		return apperr.Validation("travelBufferMin must not exceed %d, got %d", maxMinutes, q.TravelBufferMinutes)
	}
	window := q.To.Sub(q.From)
	if window > MaxWindow {
		return apperr.Validation("window %s exceeds maximum of %s", window, MaxWindow)
	}
	if slots := window / q.step(); slots > MaxSlots {
		return apperr.Validation("window produces %d slots, maximum is %d", slots, MaxSlots)
	}
	return nil
}

func (q *AvailabilityQuery) step() time.Duration {
	return time.Duration(q.SlotMinutes) * time.Minute
}

func (q *AvailabilityQuery) buffer() time.Duration {
	return time.Duration(q.TravelBufferMinutes) * time.Minute
}

// AvailabilityService вычисляет, какие слоты техника можно забронировать.
// Сервис ничего не блокирует: гонки разрешает ограничение в базе при записи
type AvailabilityService struct {
	calendar    CalendarStore
	bookings    BookingReader
	location    *time.Location
	defaultSlot int
	logger      *zap.Logger
}

func NewAvailabilityService(
	calendar CalendarStore,
	bookings BookingReader,
	location *time.Location,
	defaultSlotMinutes int,
	logger *zap.Logger,
) *AvailabilityService {
	if location == nil {
		location = time.UTC
	}
	if defaultSlotMinutes <= 0 {
		defaultSlotMinutes = DefaultSlotMinutes
	}
	return &AvailabilityService{
		calendar:    calendar,
		bookings:    bookings,
		location:    location,
		defaultSlot: defaultSlotMinutes,
		logger:      logger,
	}
}

// Location — часовой пояс, в котором трактуются рабочие часы и календарные дни
func (s *AvailabilityService) Location() *time.Location {
	return s.location
}

// ComputeSlots возвращает слоты [From, To) с шагом SlotMinutes
func (s *AvailabilityService) ComputeSlots(ctx context.Context, q AvailabilityQuery) ([]model.Slot, error) {
	if err := q.normalize(s.defaultSlot); err != nil {
		return nil, err
	}

	rules, err := s.calendar.ActiveWorkingHours(ctx, q.TechnicianID)
	if err != nil {
		return nil, fmt.Errorf("load working hours: %w", err)
	}

	timeOff, err := s.calendar.ApprovedTimeOff(ctx, q.TechnicianID, q.From, q.To)
	if err != nil {
		return nil, fmt.Errorf("load time off: %w", err)
	}

	// Бронирование, закончившееся до From, может задевать окно своим буфером
	bookings, err := s.bookings.ActiveInRange(ctx, q.TechnicianID, q.From.Add(-q.buffer()), q.To)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	if len(rules) == 0 {
		s.logger.Debug("No working hours for technician",
			zap.Int64("technician_id", q.TechnicianID),
		)
	}

	return BuildSlots(q, rules, timeOff, bookings, s.location), nil
}

// BuildSlots — чистая функция расчёта слотов по правилам, отпускам и бронированиям.
// q должен быть уже нормализован
func BuildSlots(
	q AvailabilityQuery,
	rules []model.WorkingHoursRule,
	timeOff []model.TimeOff,
	bookings []model.Booking,
	loc *time.Location,
) []model.Slot {
	coverage := model.NewWeeklyCoverage(rules)
	step := q.step()

	blocked := make([]model.Interval, 0, len(timeOff))
	for i := range timeOff {
		if timeOff[i].Status != model.TimeOffStatusApproved {
			continue
		}
		blocked = append(blocked, timeOff[i].Interval())
	}

	busy := make([]model.Interval, 0, len(bookings))
	for i := range bookings {
		if !bookings[i].Status.IsActive() {
			continue
		}
		iv := bookings[i].Interval()
		iv.End = iv.End.Add(q.buffer())
		busy = append(busy, iv)
	}

	slots := make([]model.Slot, 0, int(q.To.Sub(q.From)/step))
	for start := q.From; !start.Add(step).After(q.To); start = start.Add(step) {
		slot := model.Slot{Start: start, End: start.Add(step)}
		iv := model.Interval{Start: slot.Start, End: slot.End}

		switch {
		case !covered(coverage, iv, loc):
			slot.Reason = model.SlotReasonOutOfHours
		case overlapsAny(iv, blocked):
			slot.Reason = model.SlotReasonTimeOff
		case overlapsAny(iv, busy):
			slot.Reason = model.SlotReasonBooked
		default:
			slot.Available = true
		}
		slots = append(slots, slot)
	}

	return slots
}

// covered переводит слот в секунды от локальной полуночи и сверяет с покрытием дня
func covered(coverage model.WeeklyCoverage, iv model.Interval, loc *time.Location) bool {
	local := iv.Start.In(loc)
	startSec := local.Hour()*3600 + local.Minute()*60 + local.Second()
	endSec := startSec + int(iv.Duration()/time.Second)

	startMinute := startSec / 60
	endMinute := (endSec + 59) / 60
	return coverage.Covers(local.Weekday(), startMinute, endMinute)
}

func overlapsAny(iv model.Interval, list []model.Interval) bool {
	for _, other := range list {
		if iv.Overlaps(other) {
			return true
		}
	}
	return false
}
