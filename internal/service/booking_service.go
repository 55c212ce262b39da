package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/fieldsched/internal/apperr"
	"github.com/Freeeeeet/fieldsched/internal/model"
	"github.com/Freeeeeet/fieldsched/internal/repository"
	"github.com/Freeeeeet/fieldsched/internal/telemetry"
)

// BookingStore — транзакционное хранилище бронирований с outbox
type BookingStore interface {
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	WithinTx(ctx context.Context, fn func(tx repository.BookingTx) error) error
}

// CreateBookingInput — данные нового бронирования
type CreateBookingInput struct {
	TechnicianID int64
	StartAt      time.Time
	EndAt        time.Time
	Status       model.BookingStatus // pending по умолчанию
	RequestID    *int64
	Notes        string
}

// BookingService применяет изменения бронирований. Пересечения не проверяются
// заранее: запись идёт сразу, конфликт возвращает ограничение хранилища.
// Каждое успешное изменение ставит событие в outbox в той же транзакции
type BookingService struct {
	store  BookingStore
	logger *zap.Logger
	now    func() time.Time
}

func NewBookingService(store BookingStore, logger *zap.Logger) *BookingService {
	return &BookingService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Get получает бронирование по ID
func (s *BookingService) Get(ctx context.Context, id int64) (*model.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

// Create создаёт бронирование и событие created
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	if in.TechnicianID <= 0 {
		return nil, apperr.Validation("technician_id is required")
	}
	if err := (model.Interval{Start: in.StartAt, End: in.EndAt}).Validate(); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = model.BookingStatusPending
	}
	if !in.Status.IsActive() {
		return nil, apperr.Validation("new booking status must be pending or confirmed, got %q", in.Status)
	}

	booking := &model.Booking{
		TechnicianID: in.TechnicianID,
		StartAt:      in.StartAt,
		EndAt:        in.EndAt,
		Status:       in.Status,
		RequestID:    in.RequestID,
		Notes:        in.Notes,
	}

	err := s.store.WithinTx(ctx, func(tx repository.BookingTx) error {
		if err := requireActiveTechnician(ctx, tx, in.TechnicianID); err != nil {
			return err
		}
		if err := tx.CreateBooking(ctx, booking); err != nil {
			return err
		}
		payload := model.BookingCreated{Booking: model.SnapshotOf(booking)}
		return tx.Enqueue(ctx, model.NewOutboxEvent(booking.ID, payload, s.now()))
	})
	if err != nil {
		s.observe("create", err)
		return nil, err
	}
	s.observe("create", nil)

	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("technician_id", booking.TechnicianID),
		zap.Time("start", booking.StartAt),
		zap.Time("end", booking.EndAt),
		zap.String("status", string(booking.Status)),
	)

	return booking, nil
}

// Patch применяет частичное изменение: интервал, техника и/или статус
func (s *BookingService) Patch(ctx context.Context, id int64, patch model.BookingPatch) (*model.Booking, error) {
	if patch.IsEmpty() {
		return nil, apperr.Validation("nothing to update")
	}

	var (
		result *model.Booking
		event  *model.OutboxEvent
	)
	err := s.store.WithinTx(ctx, func(tx repository.BookingTx) error {
		current, err := tx.GetBookingForUpdate(ctx, id)
		if err != nil {
			return err
		}

		next, err := applyPatch(current, patch)
		if err != nil {
			return err
		}

		if next.TechnicianID != current.TechnicianID {
			if err := requireActiveTechnician(ctx, tx, next.TechnicianID); err != nil {
				return err
			}
		}

		if len(model.DiffBookings(current, next)) == 0 {
			result = current
			return nil
		}

		if err := tx.UpdateBooking(ctx, next); err != nil {
			return err
		}

		event = model.NewOutboxEvent(next.ID, model.PatchPayload(current, next), s.now())
		if err := tx.Enqueue(ctx, event); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		s.observe("patch", err)
		return nil, err
	}
	s.observe("patch", nil)

	if event != nil {
		s.logger.Info("Booking updated",
			zap.Int64("booking_id", result.ID),
			zap.Int64("technician_id", result.TechnicianID),
			zap.String("event_type", string(event.EventType)),
			zap.String("event_id", event.ID.String()),
		)
	}

	return result, nil
}

// Delete — мягкое удаление: перевод в canceled и событие deleted
func (s *BookingService) Delete(ctx context.Context, id int64) (*model.Booking, error) {
	var result *model.Booking
	err := s.store.WithinTx(ctx, func(tx repository.BookingTx) error {
		current, err := tx.GetBookingForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := current.Status.ValidateTransition(model.BookingStatusCanceled); err != nil {
			return err
		}

		next := *current
		next.Status = model.BookingStatusCanceled
		if err := tx.UpdateBooking(ctx, &next); err != nil {
			return err
		}

		payload := model.BookingDeleted{Booking: model.SnapshotOf(&next)}
		if err := tx.Enqueue(ctx, model.NewOutboxEvent(next.ID, payload, s.now())); err != nil {
			return err
		}
		result = &next
		return nil
	})
	if err != nil {
		s.observe("delete", err)
		return nil, err
	}
	s.observe("delete", nil)

	s.logger.Info("Booking deleted",
		zap.Int64("booking_id", result.ID),
		zap.Int64("technician_id", result.TechnicianID),
	)

	return result, nil
}

// applyPatch проверяет переход статуса и собирает новую версию бронирования
func applyPatch(current *model.Booking, patch model.BookingPatch) (*model.Booking, error) {
	next := *current

	if patch.Status != nil && (*patch.Status != current.Status || current.Status.IsTerminal()) {
		if err := current.Status.ValidateTransition(*patch.Status); err != nil {
			return nil, err
		}
		next.Status = *patch.Status
	}

	if patch.StartAt != nil || patch.EndAt != nil || patch.TechnicianID != nil {
		if current.Status.IsTerminal() {
			return nil, apperr.InvalidTransition("booking %d is %s and can no longer be modified", current.ID, current.Status)
		}
	}
	if patch.StartAt != nil {
		next.StartAt = *patch.StartAt
	}
	if patch.EndAt != nil {
		next.EndAt = *patch.EndAt
	}
	if patch.TechnicianID != nil {
		if *patch.TechnicianID <= 0 {
			return nil, apperr.Validation("technician_id must be positive")
		}
		next.TechnicianID = *patch.TechnicianID
	}

	if err := next.Interval().Validate(); err != nil {
		return nil, err
	}
	return &next, nil
}

func requireActiveTechnician(ctx context.Context, tx repository.BookingTx, id int64) error {
	tech, err := tx.Technician(ctx, id)
	if err != nil {
		return err
	}
	if !tech.IsActive {
		return apperr.Validation("technician %d is not active", id)
	}
	return nil
}

func (s *BookingService) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = apperr.KindOf(err).String()
		s.logger.Debug("Booking mutation rejected",
			zap.String("op", op),
			zap.String("kind", result),
			zap.Error(err),
		)
	}
	telemetry.BookingMutations.WithLabelValues(op, result).Inc()
}
