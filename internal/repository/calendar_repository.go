package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/fieldsched/internal/model"
	"github.com/Freeeeeet/fieldsched/internal/repository/base"
)

const microsecondsPerMinute = int64(time.Minute / time.Microsecond)

// CalendarRepository читает рабочие часы и отпуска. Для движка только чтение
type CalendarRepository struct {
	db base.DBTX
}

func NewCalendarRepository(pool *pgxpool.Pool) *CalendarRepository {
	return &CalendarRepository{db: pool}
}

// ActiveWorkingHours получает активные недельные правила техника
func (r *CalendarRepository) ActiveWorkingHours(ctx context.Context, technicianID int64) ([]model.WorkingHoursRule, error) {
	query := `
		SELECT id, technician_id, weekday, start_time, end_time, is_active, created_at, updated_at
		FROM working_hours_rules
		WHERE technician_id = $1 AND is_active
		ORDER BY weekday, start_time
	`

	rows, err := r.db.Query(ctx, query, technicianID)
	if err != nil {
		return nil, base.Classify(err, "get working hours")
	}
	defer rows.Close()

	var rules []model.WorkingHoursRule
	for rows.Next() {
		var (
			rule       model.WorkingHoursRule
			start, end pgtype.Time
		)
		err := rows.Scan(
			&rule.ID,
			&rule.TechnicianID,
			&rule.Weekday,
			&start,
			&end,
			&rule.IsActive,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		)
		if err != nil {
			return nil, base.Classify(err, "scan working hours rule")
		}
		rule.StartMinute = int(start.Microseconds / microsecondsPerMinute)
		rule.EndMinute = int(end.Microseconds / microsecondsPerMinute)
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, base.Classify(err, "iterate working hours")
	}

	return rules, nil
}

// ApprovedTimeOff получает одобренные отпуска техника и глобальные блокировки,
// пересекающие [from, to)
func (r *CalendarRepository) ApprovedTimeOff(ctx context.Context, technicianID int64, from, to time.Time) ([]model.TimeOff, error) {
	query := `
		SELECT id, technician_id, start_datetime, end_datetime, status, reason, created_at
		FROM time_off
		WHERE status = 'approved'
		  AND (technician_id = $1 OR technician_id IS NULL)
		  AND start_datetime < $3
		  AND end_datetime > $2
		ORDER BY start_datetime
	`

	rows, err := r.db.Query(ctx, query, technicianID, from, to)
	if err != nil {
		return nil, base.Classify(err, "get time off")
	}
	defer rows.Close()

	var items []model.TimeOff
	for rows.Next() {
		var item model.TimeOff
		err := rows.Scan(
			&item.ID,
			&item.TechnicianID,
			&item.StartAt,
			&item.EndAt,
			&item.Status,
			&item.Reason,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, base.Classify(err, "scan time off")
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, base.Classify(err, "iterate time off")
	}

	return items, nil
}
