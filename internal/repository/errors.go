package repository

import "errors"

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken is returned when an insert collides with an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrActivationTokenTaken is returned when a new token collides with a pending one.
	ErrActivationTokenTaken = errors.New("activation token already issued")
)
