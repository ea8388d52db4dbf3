package domain

import "errors"

// Error kinds shared across packages. Callers wrap them with context and
// match with errors.Is.
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrExternalService = errors.New("external service error")
	ErrPersistence     = errors.New("persistence error")
)
