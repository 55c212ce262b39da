package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Freeeeeet/fieldsched/internal/apperr"
	"github.com/Freeeeeet/fieldsched/internal/model"
	"github.com/Freeeeeet/fieldsched/internal/repository/base"
)

const bookingColumns = `id, technician_id, start_datetime, end_datetime, status, request_id, notes, created_at, updated_at`

type BookingRepository struct {
	db base.DBTX
}

func NewBookingRepository(db base.DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var booking model.Booking
	err := row.Scan(
		&booking.ID,
		&booking.TechnicianID,
		&booking.StartAt,
		&booking.EndAt,
		&booking.Status,
		&booking.RequestID,
		&booking.Notes,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// Create создаёт новое бронирование. Пересечение ловит exclusion constraint
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (technician_id, start_datetime, end_datetime, status, request_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		booking.TechnicianID,
		booking.StartAt,
		booking.EndAt,
		booking.Status,
		booking.RequestID,
		booking.Notes,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)

	if err != nil {
		return base.Classify(err, "create booking")
	}

	return nil
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// GetForUpdate получает бронирование с блокировкой строки до конца транзакции
func (r *BookingRepository) GetForUpdate(ctx context.Context, id int64) (*model.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *BookingRepository) get(ctx context.Context, query string, id int64) (*model.Booking, error) {
	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, apperr.NotFound("booking %d not found", id)
		}
		return nil, base.Classify(err, "get booking by id")
	}
	return booking, nil
}

// ActiveInRange получает pending/confirmed бронирования техника, пересекающие [from, to)
func (r *BookingRepository) ActiveInRange(ctx context.Context, technicianID int64, from, to time.Time) ([]model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE technician_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND start_datetime < $3
		  AND end_datetime > $2
		ORDER BY start_datetime
	`

	rows, err := r.db.Query(ctx, query, technicianID, from, to)
	if err != nil {
		return nil, base.Classify(err, "get active bookings")
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, base.Classify(err, "scan booking")
		}
		bookings = append(bookings, *booking)
	}
	if err := rows.Err(); err != nil {
		return nil, base.Classify(err, "iterate bookings")
	}

	return bookings, nil
}

// Update записывает изменённые поля. Пересечение с другим активным
// бронированием возвращается как OverlapConflict
func (r *BookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	query := `
		UPDATE bookings
		SET technician_id = $2, start_datetime = $3, end_datetime = $4, status = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		booking.ID,
		booking.TechnicianID,
		booking.StartAt,
		booking.EndAt,
		booking.Status,
	).Scan(&booking.UpdatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return apperr.NotFound("booking %d not found", booking.ID)
		}
		return base.Classify(err, "update booking")
	}

	return nil
}
