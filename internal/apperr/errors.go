// Package apperr описывает типизированные ошибки движка расписаний.
package apperr

import (
	"errors"
	"fmt"
)

// Kind — категория ошибки, по которой вызывающий код выбирает реакцию
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidTransition
	KindOverlapConflict
	KindPermissionDenied
	KindValidation
	KindChannelDelivery
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindInvalidTransition:
		return "InvalidTransition"
	case KindOverlapConflict:
		return "OverlapConflict"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindValidation:
		return "ValidationError"
	case KindChannelDelivery:
		return "ChannelDeliveryError"
	default:
		return "InternalError"
	}
}

// Error — ошибка с категорией
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по категории, чтобы работал errors.Is(err, apperr.ErrNotFound)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Сентинелы для errors.Is
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrOverlapConflict   = &Error{Kind: KindOverlapConflict}
	ErrPermissionDenied  = &Error{Kind: KindPermissionDenied}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrChannelDelivery   = &Error{Kind: KindChannelDelivery}
)

// KindOf возвращает категорию первой типизированной ошибки в цепочке
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func InvalidTransition(format string, args ...any) *Error {
	return newf(KindInvalidTransition, format, args...)
}

func OverlapConflict(format string, args ...any) *Error {
	return newf(KindOverlapConflict, format, args...)
}

func PermissionDenied(format string, args ...any) *Error {
	return newf(KindPermissionDenied, format, args...)
}

func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

// ChannelDelivery оборачивает ошибку доставки в конкретный канал
func ChannelDelivery(channel string, err error) *Error {
	return &Error{Kind: KindChannelDelivery, Message: channel, Err: err}
}

// WithCause прикрепляет исходную ошибку. Клиенту она не показывается
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// PublicMessage — текст для клиента API без деталей исходной ошибки
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return KindInternal.String()
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}
