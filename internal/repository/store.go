package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/fieldsched/internal/model"
)

// BookingTx — операции, выполняемые в одной транзакции с бронированием
type BookingTx interface {
	Technician(ctx context.Context, id int64) (*model.Technician, error)
	GetBookingForUpdate(ctx context.Context, id int64) (*model.Booking, error)
	CreateBooking(ctx context.Context, booking *model.Booking) error
	UpdateBooking(ctx context.Context, booking *model.Booking) error
	Enqueue(ctx context.Context, event *model.OutboxEvent) error
}

// Store — единая точка входа в транзакционную запись бронирований
type Store struct {
	pool     *pgxpool.Pool
	bookings *BookingRepository
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:     pool,
		bookings: NewBookingRepository(pool),
	}
}

// GetBooking читает бронирование вне транзакции
func (s *Store) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

// WithinTx выполняет fn в транзакции: коммит при nil, откат при ошибке
func (s *Store) WithinTx(ctx context.Context, fn func(tx BookingTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{
		technicians: NewTechnicianRepository(tx),
		bookings:    NewBookingRepository(tx),
		outbox:      NewOutboxRepository(tx),
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	technicians *TechnicianRepository
	bookings    *BookingRepository
	outbox      *OutboxRepository
}

func (t *pgTx) Technician(ctx context.Context, id int64) (*model.Technician, error) {
	return t.technicians.GetByID(ctx, id)
}

func (t *pgTx) GetBookingForUpdate(ctx context.Context, id int64) (*model.Booking, error) {
	return t.bookings.GetForUpdate(ctx, id)
}

func (t *pgTx) CreateBooking(ctx context.Context, booking *model.Booking) error {
	return t.bookings.Create(ctx, booking)
}

func (t *pgTx) UpdateBooking(ctx context.Context, booking *model.Booking) error {
	return t.bookings.Update(ctx, booking)
}

func (t *pgTx) Enqueue(ctx context.Context, event *model.OutboxEvent) error {
	return t.outbox.Enqueue(ctx, event)
}
