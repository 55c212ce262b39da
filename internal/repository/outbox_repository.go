package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Freeeeeet/fieldsched/internal/apperr"
	"github.com/Freeeeeet/fieldsched/internal/model"
	"github.com/Freeeeeet/fieldsched/internal/repository/base"
)

const outboxColumns = `id, booking_id, event_type, payload, created_at, processed, processed_at, retry_count, last_error`

// OutboxRepository хранит события об изменениях бронирований
type OutboxRepository struct {
	db base.DBTX
}

func NewOutboxRepository(db base.DBTX) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue добавляет событие. Внутри транзакции — атомарно с изменением бронирования
func (r *OutboxRepository) Enqueue(ctx context.Context, event *model.OutboxEvent) error {
	payload, err := model.EncodePayload(event.Payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO outbox_events (id, booking_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = r.db.Exec(ctx, query, event.ID, event.BookingID, event.EventType, payload, event.CreatedAt)
	if err != nil {
		return base.Classify(err, "enqueue outbox event")
	}

	return nil
}

func scanOutboxEvents(rows pgx.Rows) ([]model.OutboxEvent, error) {
	defer rows.Close()

	var events []model.OutboxEvent
	for rows.Next() {
		var (
			event   model.OutboxEvent
			payload []byte
		)
		err := rows.Scan(
			&event.ID,
			&event.BookingID,
			&event.EventType,
			&payload,
			&event.CreatedAt,
			&event.Processed,
			&event.ProcessedAt,
			&event.RetryCount,
			&event.LastError,
		)
		if err != nil {
			return nil, base.Classify(err, "scan outbox event")
		}
		event.Payload, err = model.DecodePayload(event.EventType, payload)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, base.Classify(err, "iterate outbox events")
	}

	return events, nil
}

// FetchPending получает необработанные события с retry_count < maxRetries, старые первыми
func (r *OutboxRepository) FetchPending(ctx context.Context, limit, maxRetries int) ([]model.OutboxEvent, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE NOT processed AND retry_count < $2
		ORDER BY created_at, id
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit, maxRetries)
	if err != nil {
		return nil, base.Classify(err, "fetch pending outbox events")
	}
	return scanOutboxEvents(rows)
}

// DeadLettered получает события, исчерпавшие попытки доставки
func (r *OutboxRepository) DeadLettered(ctx context.Context, maxRetries, limit int) ([]model.OutboxEvent, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE NOT processed AND retry_count >= $1
		ORDER BY created_at, id
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, maxRetries, limit)
	if err != nil {
		return nil, base.Classify(err, "fetch dead-lettered outbox events")
	}
	return scanOutboxEvents(rows)
}

// MarkProcessed отмечает событие доставленным и очищает last_error
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE outbox_events
		SET processed = TRUE, processed_at = $2, last_error = NULL
		WHERE id = $1
	`

	affected, err := base.ExecAffected(ctx, r.db, query, id, at)
	if err != nil {
		return base.Classify(err, "mark outbox event processed")
	}
	if affected == 0 {
		return apperr.NotFound("outbox event %s not found", id)
	}
	return nil
}

// MarkFailed увеличивает retry_count и сохраняет ошибку. Возвращает новый retry_count
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) (int, error) {
	query := `
		UPDATE outbox_events
		SET retry_count = retry_count + 1, last_error = $2
		WHERE id = $1
		RETURNING retry_count
	`

	var retries int
	if err := r.db.QueryRow(ctx, query, id, lastError).Scan(&retries); err != nil {
		if base.IsNotFound(err) {
			return 0, apperr.NotFound("outbox event %s not found", id)
		}
		return 0, base.Classify(err, "mark outbox event failed")
	}
	return retries, nil
}

// Requeue возвращает событие из dead-letter в очередь
func (r *OutboxRepository) Requeue(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET retry_count = 0, last_error = NULL
		WHERE id = $1 AND NOT processed
	`

	affected, err := base.ExecAffected(ctx, r.db, query, id)
	if err != nil {
		return base.Classify(err, "requeue outbox event")
	}
	if affected == 0 {
		return apperr.NotFound("unprocessed outbox event %s not found", id)
	}
	return nil
}

// PurgeProcessed удаляет обработанные события старше before
func (r *OutboxRepository) PurgeProcessed(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM outbox_events WHERE processed AND processed_at < $1`

	affected, err := base.ExecAffected(ctx, r.db, query, before)
	if err != nil {
		return 0, base.Classify(err, "purge processed outbox events")
	}
	return affected, nil
}
