package audit

import "errors"

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
)

// Error pairs a taxonomy sentinel with the message shown to API clients.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}
