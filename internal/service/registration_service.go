package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/registration-service/internal/domain"
	"github.com/spec-kit/registration-service/internal/events"
	"github.com/spec-kit/registration-service/internal/repository"
	"github.com/spec-kit/registration-service/internal/validator"
)

const (
	defaultMailTimeout  = 10 * time.Second
	compensationTimeout = 5 * time.Second
	// a fresh token is issued once if the first one collides
	tokenAttempts = 2
)

// Mailer delivers the activation token to the registrant.
type Mailer interface {
	SendAccountActivation(ctx context.Context, email, token string) error
}

// PasswordHasher turns a plaintext secret into a salted one-way hash.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
}

// TokenGenerator issues activation tokens.
type TokenGenerator interface {
	Generate() string
}

// EmailLocker serializes registrations for one email address.
type EmailLocker interface {
	TryLock(ctx context.Context, email string) (release func(), acquired bool, err error)
}

// RegistrationInput is everything a registrant may supply. Account state
// such as enabled is deliberately absent.
type RegistrationInput struct {
	Username string
	Email    string
	Password string
}

// RegistrationDependencies encapsulates collaborators for the registration service.
type RegistrationDependencies struct {
	Accounts    repository.AccountRepository
	Mailer      Mailer
	Hasher      PasswordHasher
	Tokens      TokenGenerator
	Locker      EmailLocker
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	MailTimeout time.Duration
}

// RegistrationService coordinates self-registration and account activation.
type RegistrationService struct {
	accounts    repository.AccountRepository
	validator   *validator.RegistrationValidator
	mailer      Mailer
	hasher      PasswordHasher
	tokens      TokenGenerator
	locker      EmailLocker
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	mailTimeout time.Duration
}

// NewRegistrationService builds the service.
func NewRegistrationService(deps RegistrationDependencies) *RegistrationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.MailTimeout
	if timeout <= 0 {
		timeout = defaultMailTimeout
	}
	return &RegistrationService{
		accounts:    deps.Accounts,
		validator:   validator.NewRegistrationValidator(deps.Accounts),
		mailer:      deps.Mailer,
		hasher:      deps.Hasher,
		tokens:      deps.Tokens,
		locker:      deps.Locker,
		dispatcher:  deps.Dispatcher,
		logger:      logger.Named("registration"),
		mailTimeout: timeout,
	}
}

// pendingRegistration is a persisted, disabled account whose activation
// email has not been delivered yet. It either gets delivered or compensated.
type pendingRegistration struct {
	account *domain.Account
	token   string
}

// Register validates in, persists a disabled account and emails its
// activation token. When delivery fails the account is removed before
// ErrEmailDelivery is returned.
func (s *RegistrationService) Register(ctx context.Context, in RegistrationInput) error {
	fieldErrs, err := s.validator.Validate(ctx, validator.Candidate{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
	})
	if err != nil {
		return fmt.Errorf("validate registration: %w", err)
	}
	if len(fieldErrs) > 0 {
		return &ValidationError{Fields: fieldErrs}
	}

	if s.locker != nil {
		release, acquired, err := s.locker.TryLock(ctx, in.Email)
		if err != nil {
			return fmt.Errorf("lock registration email: %w", err)
		}
		if !acquired {
			return emailInUse()
		}
		defer release()
	}

	pending, err := s.stage(ctx, in)
	if err != nil {
		return err
	}
	if err := s.deliver(ctx, pending); err != nil {
		return err
	}

	s.publish(ctx, events.Event{
		Type:      events.EventAccountRegistered,
		AccountID: pending.account.ID,
		Payload:   events.AccountRegisteredPayload{Username: pending.account.Username, Email: pending.account.Email},
	})
	return nil
}

// stage hashes the secret, issues a token and persists the disabled account.
func (s *RegistrationService) stage(ctx context.Context, in RegistrationInput) (*pendingRegistration, error) {
	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var createErr error
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		token := s.tokens.Generate()
		account := &domain.Account{
			Username:        in.Username,
			Email:           in.Email,
			PasswordHash:    hash,
			Enabled:         false,
			ActivationToken: &token,
		}
		createErr = s.accounts.Create(ctx, account)
		switch {
		case createErr == nil:
			s.logger.Info("account staged", zap.String("account_id", account.ID))
			return &pendingRegistration{account: account, token: token}, nil
		case errors.Is(createErr, repository.ErrEmailTaken):
			return nil, emailInUse()
		case errors.Is(createErr, repository.ErrActivationTokenTaken):
			s.logger.Warn("activation token collision, regenerating")
			continue
		default:
			return nil, fmt.Errorf("create account: %w", createErr)
		}
	}
	return nil, fmt.Errorf("create account: %w", createErr)
}

// deliver sends the activation email within the mail timeout and
// compensates the staged account on any failure.
func (s *RegistrationService) deliver(ctx context.Context, p *pendingRegistration) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.mailTimeout)
	defer cancel()

	sendErr := s.mailer.SendAccountActivation(sendCtx, p.account.Email, p.token)
	if sendErr == nil {
		return nil
	}

	s.logger.Warn("activation email failed, removing account",
		zap.String("account_id", p.account.ID), zap.Error(sendErr))
	return s.compensate(ctx, p, sendErr)
}

func (s *RegistrationService) compensate(ctx context.Context, p *pendingRegistration, sendErr error) error {
	// the rollback must run even if the request context is already done
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := s.accounts.Delete(cctx, p.account.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("failed to remove account after delivery failure",
			zap.String("account_id", p.account.ID), zap.Error(err))
		return fmt.Errorf("remove account %s after delivery failure (%v): %w", p.account.ID, sendErr, err)
	}
	return fmt.Errorf("%w: %v", ErrEmailDelivery, sendErr)
}

// Activate redeems token for the disabled account that holds it. Unknown and
// already used tokens both yield ErrInvalidToken.
func (s *RegistrationService) Activate(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	account, err := s.accounts.GetInactiveByActivationToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("find account by token: %w", err)
	}

	if err := s.accounts.Activate(ctx, account.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("activate account: %w", err)
	}

	s.logger.Info("account activated", zap.String("account_id", account.ID))
	s.publish(ctx, events.Event{
		Type:      events.EventAccountActivated,
		AccountID: account.ID,
		Payload:   events.AccountActivatedPayload{Username: account.Username},
	})
	return nil
}

func (s *RegistrationService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now().UTC()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
