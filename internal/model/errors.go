package model

import "errors"

// Failure kinds. Wrap them with a reason: fmt.Errorf("%w: title is required", ErrValidation).
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)
