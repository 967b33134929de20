// Package validator checks registration candidates and reports one stable
// reason code per invalid field.
package validator

import (
	"context"
	"errors"

	"github.com/asaskevich/govalidator"
	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/spec-kit/registration-service/internal/domain"
	"github.com/spec-kit/registration-service/internal/repository"
)

// Reason codes. They double as translation keys.
const (
	CodeUsernameNull    = "username_null"
	CodeUsernameSize    = "username_size"
	CodeEmailNull       = "email_null"
	CodeEmailInvalid    = "email_invalid"
	CodeEmailInUse      = "email_inuse"
	CodePasswordNull    = "password_null"
	CodePasswordSize    = "password_size"
	CodePasswordPattern = "password_pattern"
)

// Field names in the order they are declared and reported.
const (
	FieldUsername = "username"
	FieldEmail    = "email"
	FieldPassword = "password"
)

var fieldOrder = []string{FieldUsername, FieldEmail, FieldPassword}

const (
	usernameMin = 4
	usernameMax = 32
	passwordMin = 6
	// longest address a mail path can carry; the column holds 255
	emailMax = 254
)

// Candidate holds the only fields a registration request may set.
type Candidate struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// EmailLookup is the storage query backing the uniqueness rule.
type EmailLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
}

// RegistrationValidator runs the per-field rule chains. Only the first
// failing rule of each field is reported.
type RegistrationValidator struct {
	accounts EmailLookup
}

// NewRegistrationValidator builds a validator backed by the given lookup.
func NewRegistrationValidator(accounts EmailLookup) *RegistrationValidator {
	return &RegistrationValidator{accounts: accounts}
}

// Validate returns the field errors of c in declaration order. A non-nil
// error means the uniqueness lookup itself failed.
func (v *RegistrationValidator) Validate(ctx context.Context, c Candidate) (FieldErrors, error) {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Username,
			validation.Required.Error(CodeUsernameNull),
			validation.RuneLength(usernameMin, usernameMax).Error(CodeUsernameSize),
		),
		validation.Field(&c.Email,
			validation.Required.Error(CodeEmailNull),
			validation.RuneLength(0, emailMax).Error(CodeEmailInvalid),
			validation.NewStringRule(govalidator.IsEmail, CodeEmailInvalid),
			validation.By(v.emailAvailable(ctx)),
		),
		validation.Field(&c.Password,
			validation.Required.Error(CodePasswordNull),
			validation.RuneLength(passwordMin, 0).Error(CodePasswordSize),
			validation.By(passwordComplexity),
		),
	)
	if err == nil {
		return nil, nil
	}

	var internal validation.InternalError
	if errors.As(err, &internal) && internal.InternalError() != nil {
		return nil, internal.InternalError()
	}

	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return nil, err
	}

	out := make(FieldErrors, 0, len(fieldErrs))
	for _, field := range fieldOrder {
		if ferr, ok := fieldErrs[field]; ok && ferr != nil {
			out = append(out, FieldError{Field: field, Code: ferr.Error()})
		}
	}
	return out, nil
}

func (v *RegistrationValidator) emailAvailable(ctx context.Context) validation.RuleFunc {
	return func(value interface{}) error {
		email, _ := value.(string)
		if email == "" || v.accounts == nil {
			return nil
		}
		_, err := v.accounts.GetByEmail(ctx, email)
		switch {
		case err == nil:
			return errors.New(CodeEmailInUse)
		case errors.Is(err, repository.ErrNotFound):
			return nil
		default:
			return validation.NewInternalError(err)
		}
	}
}

func passwordComplexity(value interface{}) error {
	password, _ := value.(string)
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return errors.New(CodePasswordPattern)
	}
	return nil
}
