package services

import "errors"

// ErrInvalidCredentials is returned for unknown emails and wrong passwords
// alike, so a login failure never reveals whether an account exists.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrForbidden is returned when an authenticated caller tries to mutate an
// item owned by someone else.
var ErrForbidden = errors.New("forbidden")

// ValidationError reports malformed or missing request input. The reason is
// safe to show to clients.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}
