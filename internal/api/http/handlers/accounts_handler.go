package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/registration-service/internal/api/dto"
	"github.com/spec-kit/registration-service/internal/i18n"
	"github.com/spec-kit/registration-service/internal/service"
	apperrors "github.com/spec-kit/registration-service/pkg/util"
)

// LanguageLocal is the fiber local holding the negotiated response language.
const LanguageLocal = "lang"

// Message keys for successful outcomes.
const (
	msgUserCreated       = "user_create_success"
	msgAccountActivated  = "account_activation_success"
	msgValidationFailure = "validation_failure"
	msgEmailFailure      = "email_failure"
	msgActivationFailure = "account_activation_failure"
	msgInvalidPayload    = "invalid_payload"
)

// RegistrationFlow is the part of the registration service the handler drives.
type RegistrationFlow interface {
	Register(ctx context.Context, in service.RegistrationInput) error
	Activate(ctx context.Context, token string) error
}

// AccountsHandler exposes self-registration and activation endpoints.
type AccountsHandler struct {
	registration RegistrationFlow
	translator   *i18n.Translator
}

// NewAccountsHandler constructs handler.
func NewAccountsHandler(registration RegistrationFlow, translator *i18n.Translator) *AccountsHandler {
	return &AccountsHandler{registration: registration, translator: translator}
}

// Register handles POST /api/1.0/users.
func (h *AccountsHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest(apperrors.CodeInvalidPayload, msgInvalidPayload, err)
	}

	err := h.registration.Register(c.UserContext(), service.RegistrationInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return registrationError(err)
	}

	return c.Status(http.StatusOK).JSON(dto.MessageResponse{Message: h.message(c, msgUserCreated)})
}

// Activate handles POST /api/1.0/users/token/:token.
func (h *AccountsHandler) Activate(c *fiber.Ctx) error {
	if err := h.registration.Activate(c.UserContext(), c.Params("token")); err != nil {
		return registrationError(err)
	}
	return c.Status(http.StatusOK).JSON(dto.MessageResponse{Message: h.message(c, msgAccountActivated)})
}

func (h *AccountsHandler) message(c *fiber.Ctx, key string) string {
	return h.translator.Translate(Language(c), key)
}

// Language returns the negotiated language for the request.
func Language(c *fiber.Ctx) string {
	if lang, ok := c.Locals(LanguageLocal).(string); ok && lang != "" {
		return lang
	}
	return i18n.FallbackLanguage
}

func registrationError(err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		details := make(apperrors.Details, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			details = append(details, apperrors.Detail{Field: f.Field, Message: f.Code})
		}
		return apperrors.NewValidationError(msgValidationFailure, details)
	case errors.Is(err, service.ErrEmailDelivery):
		return apperrors.NewBadGateway(apperrors.CodeEmailFailure, msgEmailFailure, err)
	case errors.Is(err, service.ErrInvalidToken):
		return apperrors.NewBadRequest(apperrors.CodeInvalidToken, msgActivationFailure, err)
	default:
		return apperrors.NewInternalError(err)
	}
}
