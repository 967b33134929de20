package service

import (
	"errors"

	"github.com/spec-kit/registration-service/internal/validator"
)

var (
	// ErrEmailDelivery means the activation email could not be delivered and
	// the account created for it was removed again.
	ErrEmailDelivery = errors.New("activation email delivery failed")
	// ErrInvalidToken covers unknown, consumed and already-activated tokens alike.
	ErrInvalidToken = errors.New("invalid activation token")
)

// ValidationError carries one reason code per invalid field, in declaration order.
type ValidationError struct {
	Fields validator.FieldErrors
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Fields.Error()
}

func emailInUse() *ValidationError {
	return &ValidationError{Fields: validator.FieldErrors{
		{Field: validator.FieldEmail, Code: validator.CodeEmailInUse},
	}}
}
