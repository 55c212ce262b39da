package base

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Freeeeeet/fieldsched/internal/apperr"
)

// SQLSTATE коды, которые движок различает
const (
	CodeExclusionViolation    = "23P01"
	CodeCheckViolation        = "23514"
	CodeForeignKeyViolation   = "23503"
	CodeInsufficientPrivilege = "42501"
	CodeInvalidDatetimeFormat = "22007"
	CodeDatetimeOverflow      = "22008"
)

// DBTX — общий интерфейс пула и транзакции, репозитории работают с обоими
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ExecAffected выполняет команду и возвращает количество затронутых строк
func ExecAffected(ctx context.Context, db DBTX, query string, args ...any) (int64, error) {
	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// IsNotFound проверяет является ли ошибка "строка не найдена"
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Classify переводит ошибку Postgres в типизированную ошибку по SQLSTATE.
// Неизвестные ошибки оборачиваются с контекстом op.
func Classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) {
		return apperr.NotFound("%s", op).WithCause(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case CodeExclusionViolation:
			return apperr.OverlapConflict("%s: interval overlaps an existing booking", op).WithCause(err)
		case CodeInsufficientPrivilege:
			return apperr.PermissionDenied("%s: permission denied", op).WithCause(err)
		case CodeCheckViolation, CodeInvalidDatetimeFormat, CodeDatetimeOverflow:
			return apperr.Validation("%s: invalid value", op).WithCause(err)
		case CodeForeignKeyViolation:
			return apperr.NotFound("%s: referenced row missing", op).WithCause(err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
