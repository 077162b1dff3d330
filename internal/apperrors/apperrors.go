// Package apperrors описывает классы ошибок, общие для сервисного слоя и HTTP.
package apperrors

import "errors"

var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrDecode       = errors.New("decode error")
	ErrUnauthorized = errors.New("authorization error")
	ErrDependency   = errors.New("dependency error")
	ErrRender       = errors.New("render error")
	ErrConflict     = errors.New("conflict")
)

// Error несёт сообщение для клиента отдельно от внутренней причины.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func New(kind error, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind error, msg string, err error) error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// PublicMessage возвращает безопасное для клиента сообщение или fallback.
func PublicMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
