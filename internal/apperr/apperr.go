// Package apperr описывает типизированные ошибки, которые обработчики
// превращают в ответ {"success": false, "error": kind}.
package apperr

import (
	"errors"
	"fmt"
)

// Kind – класс ошибки
type Kind string

const (
	KindInvalidRequest      Kind = "invalid_request"
	KindUnauthenticated     Kind = "unauthenticated"
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindInvalidState        Kind = "invalid_state"
	KindConflict            Kind = "conflict"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindInternal            Kind = "internal"
)

// Error – ошибка с классом, текстом для пользователя и необязательной причиной блокировки
type Error struct {
	Kind    Kind
	Message string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New создаёт ошибку заданного класса
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap создаёт ошибку заданного класса поверх причины
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Blocked возвращает отказ с конкретной причиной, которую клиент покажет пользователю
func Blocked(reason, msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg, Reason: reason}
}

// Shortcuts
func InvalidRequest(msg string) *Error { return New(KindInvalidRequest, msg) }
func NotFound(msg string) *Error       { return New(KindNotFound, msg) }
func Forbidden(msg string) *Error      { return New(KindForbidden, msg) }
func InvalidState(msg string) *Error   { return New(KindInvalidState, msg) }
func Conflict(msg string) *Error       { return New(KindConflict, msg) }

// As достаёт *Error из цепочки
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf возвращает класс ошибки; неизвестные ошибки считаются внутренними
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Is сообщает, относится ли ошибка к классу kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage возвращает текст, который можно отдать клиенту
func PublicMessage(err error) string {
	if e, ok := As(err); ok && e.Message != "" {
		return e.Message
	}
	return "Внутренняя ошибка сервера"
}
