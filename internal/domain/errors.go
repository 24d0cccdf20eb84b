package domain

import "errors"

var (
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("conflict")
	ErrUpstream    = errors.New("upstream scraper failed")
	ErrTimeout     = errors.New("scrape timeout")
	ErrPersistence = errors.New("persistence failed")
	ErrAuth        = errors.New("unauthorized")
	ErrNotFound    = errors.New("not found")
)

// Invalid wraps ErrValidation with a user facing message.
func Invalid(msg string) error {
	return &userError{kind: ErrValidation, msg: msg}
}

// Conflict wraps ErrConflict with a user facing message.
func Conflict(msg string) error {
	return &userError{kind: ErrConflict, msg: msg}
}

// Unauthorized wraps ErrAuth with a user facing message.
func Unauthorized(msg string) error {
	return &userError{kind: ErrAuth, msg: msg}
}

type userError struct {
	kind error
	msg  string
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Unwrap() error { return e.kind }
