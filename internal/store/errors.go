package store

import "errors"

var (
	// ErrEmailConflict is returned when an email address is already registered
	ErrEmailConflict = errors.New("email already registered")

	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")
)
