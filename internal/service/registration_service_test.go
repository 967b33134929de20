package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/registration-service/internal/auth"
	"github.com/spec-kit/registration-service/internal/domain"
	"github.com/spec-kit/registration-service/internal/events"
	"github.com/spec-kit/registration-service/internal/repository"
	"github.com/spec-kit/registration-service/internal/validator"
)

type sentMail struct {
	email string
	token string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) SendAccountActivation(ctx context.Context, email, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{email: email, token: token})
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("mailer called without a deadline")
	}
	return f.err
}

type fakeLocker struct {
	held     map[string]bool
	err      error
	released int
}

func (f *fakeLocker) TryLock(_ context.Context, email string) (func(), bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held[email] {
		return nil, false, nil
	}
	return func() { f.released++ }, true, nil
}

// failingRepo wraps the in-memory store and injects storage faults.
type failingRepo struct {
	*repository.MemoryAccountRepository
	createErr   error
	deleteErr   error
	lookupErr   error
	activateErr error
}

func (r *failingRepo) Create(ctx context.Context, a *domain.Account) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.MemoryAccountRepository.Create(ctx, a)
}

func (r *failingRepo) Delete(ctx context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.MemoryAccountRepository.Delete(ctx, id)
}

func (r *failingRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	return r.MemoryAccountRepository.GetByEmail(ctx, email)
}

func (r *failingRepo) Activate(ctx context.Context, id string) error {
	if r.activateErr != nil {
		return r.activateErr
	}
	return r.MemoryAccountRepository.Activate(ctx, id)
}

type fixture struct {
	svc    *RegistrationService
	repo   *failingRepo
	mailer *fakeMailer
	locker *fakeLocker
	logs   *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	repo := &failingRepo{MemoryAccountRepository: repository.NewMemoryAccountRepository()}
	mailer := &fakeMailer{}
	locker := &fakeLocker{held: map[string]bool{}}
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, logger).RegisterHandlers()

	svc := NewRegistrationService(RegistrationDependencies{
		Accounts:   repo,
		Mailer:     mailer,
		Hasher:     auth.NewBcryptHasher(bcrypt.MinCost),
		Tokens:     auth.NewTokenGenerator(auth.DefaultActivationTokenLength),
		Locker:     locker,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	return &fixture{svc: svc, repo: repo, mailer: mailer, locker: locker, logs: logs}
}

func validInput() RegistrationInput {
	return RegistrationInput{Username: "user1", Email: "user1@mail.com", Password: "P4ssword"}
}

func (f *fixture) only(t *testing.T) *domain.Account {
	t.Helper()
	accounts := f.repo.List()
	require.Len(t, accounts, 1)
	return accounts[0]
}

func TestRegister_PersistsDisabledAccountAndSendsToken(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.Register(context.Background(), validInput()))

	account := f.only(t)
	assert.Equal(t, "user1", account.Username)
	assert.Equal(t, "user1@mail.com", account.Email)
	assert.False(t, account.Enabled)
	require.NotNil(t, account.ActivationToken)
	assert.Len(t, *account.ActivationToken, auth.DefaultActivationTokenLength)
	assert.NotEqual(t, "P4ssword", account.PasswordHash)
	assert.NoError(t, auth.ComparePassword(account.PasswordHash, "P4ssword"))

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, sentMail{email: "user1@mail.com", token: *account.ActivationToken}, f.mailer.sent[0])
	assert.Equal(t, 1, f.locker.released)
	assert.Equal(t, 1, f.logs.FilterMessage("AccountRegistered").Len())
}

func TestRegister_PasswordLongerThanBcryptLimit(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.Password = "P4ssword" + strings.Repeat("a", 70)

	require.NoError(t, f.svc.Register(context.Background(), in))

	account := f.only(t)
	assert.NoError(t, auth.ComparePassword(account.PasswordHash, in.Password))
	assert.Len(t, f.mailer.sent, 1)
}

type sequenceTokens struct {
	tokens []string
	next   int
}

func (s *sequenceTokens) Generate() string {
	tok := s.tokens[s.next%len(s.tokens)]
	s.next++
	return tok
}

func TestRegister_TokenCollisionIsRetriedOnce(t *testing.T) {
	f := newFixture(t)
	tokens := &sequenceTokens{tokens: []string{"aaaaaaaaaaaaaaaa", "aaaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbbb"}}
	f.svc.tokens = tokens
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, validInput()))

	second := validInput()
	second.Username = "user2"
	second.Email = "user2@mail.com"
	require.NoError(t, f.svc.Register(ctx, second))

	assert.Equal(t, 3, tokens.next)
	require.Len(t, f.mailer.sent, 2)
	assert.Equal(t, "bbbbbbbbbbbbbbbb", f.mailer.sent[1].token)
}

func TestRegister_RepeatedTokenCollisionIsUnclassified(t *testing.T) {
	f := newFixture(t)
	f.svc.tokens = &sequenceTokens{tokens: []string{"aaaaaaaaaaaaaaaa"}}
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, validInput()))

	second := validInput()
	second.Email = "user2@mail.com"
	err := f.svc.Register(ctx, second)

	require.Error(t, err)
	assertUnclassified(t, err)
	assert.ErrorIs(t, err, repository.ErrActivationTokenTaken)
	assert.Len(t, f.repo.List(), 1)
	assert.Len(t, f.mailer.sent, 1)
}

func TestRegister_ValidationFailurePersistsNothing(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.Password = "alllowercase"

	err := f.svc.Register(context.Background(), in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, validator.FieldErrors{{Field: validator.FieldPassword, Code: validator.CodePasswordPattern}}, verr.Fields)
	assert.Empty(t, f.repo.List())
	assert.Empty(t, f.mailer.sent)
}

func TestRegister_NullFieldsReportedInOrder(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Register(context.Background(), RegistrationInput{Password: "P4ssword"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, validator.FieldErrors{
		{Field: validator.FieldUsername, Code: validator.CodeUsernameNull},
		{Field: validator.FieldEmail, Code: validator.CodeEmailNull},
	}, verr.Fields)
}

func TestRegister_SameEmailTwice(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Register(context.Background(), validInput()))

	second := validInput()
	second.Username = "user2"
	err := f.svc.Register(context.Background(), second)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	code, ok := verr.Fields.Code(validator.FieldEmail)
	require.True(t, ok)
	assert.Equal(t, validator.CodeEmailInUse, code)
	assert.Len(t, f.repo.List(), 1)
	assert.Len(t, f.mailer.sent, 1)
}

func TestRegister_InsertRaceLoserReportsEmailInUse(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = repository.ErrEmailTaken

	err := f.svc.Register(context.Background(), validInput())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, validator.FieldErrors{{Field: validator.FieldEmail, Code: validator.CodeEmailInUse}}, verr.Fields)
	assert.Empty(t, f.mailer.sent)
}

func TestRegister_LockContentionReportsEmailInUse(t *testing.T) {
	f := newFixture(t)
	f.locker.held["user1@mail.com"] = true

	err := f.svc.Register(context.Background(), validInput())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, f.repo.List())
}

func TestRegister_LockFailureIsUnclassified(t *testing.T) {
	f := newFixture(t)
	f.locker.err = errors.New("redis down")

	err := f.svc.Register(context.Background(), validInput())
	require.Error(t, err)
	assertUnclassified(t, err)
	assert.Empty(t, f.repo.List())
}

func TestRegister_DeliveryFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("553 invalid mailbox")

	err := f.svc.Register(context.Background(), validInput())

	assert.ErrorIs(t, err, ErrEmailDelivery)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
	assert.Empty(t, f.repo.List())
	assert.Len(t, f.mailer.sent, 1)
	assert.Zero(t, f.logs.FilterMessage("AccountRegistered").Len())

	// the email slot is free for a retry
	f.mailer.err = nil
	require.NoError(t, f.svc.Register(context.Background(), validInput()))
	assert.Len(t, f.repo.List(), 1)
}

func TestRegister_DeliveryFailureRollsBackEvenWhenRequestCanceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.mailer.err = errors.New("client went away")
	// cancel during the send
	mailer := &cancelingMailer{fakeMailer: f.mailer, cancel: cancel}
	f.svc.mailer = mailer

	err := f.svc.Register(ctx, validInput())
	assert.ErrorIs(t, err, ErrEmailDelivery)
	assert.Empty(t, f.repo.List())
}

type cancelingMailer struct {
	*fakeMailer
	cancel context.CancelFunc
}

func (m *cancelingMailer) SendAccountActivation(ctx context.Context, email, token string) error {
	m.cancel()
	return m.fakeMailer.SendAccountActivation(ctx, email, token)
}

func TestRegister_RollbackFailureIsUnclassified(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("timeout")
	f.repo.deleteErr = errors.New("connection lost")

	err := f.svc.Register(context.Background(), validInput())
	require.Error(t, err)
	assertUnclassified(t, err)
	assert.Contains(t, err.Error(), "connection lost")
	assert.Equal(t, 1, f.logs.FilterMessage("failed to remove account after delivery failure").Len())
}

func TestRegister_StorageFaultsAreUnclassified(t *testing.T) {
	t.Run("lookup", func(t *testing.T) {
		f := newFixture(t)
		f.repo.lookupErr = errors.New("connection refused")
		err := f.svc.Register(context.Background(), validInput())
		require.Error(t, err)
		assertUnclassified(t, err)
	})
	t.Run("create", func(t *testing.T) {
		f := newFixture(t)
		f.repo.createErr = errors.New("disk full")
		err := f.svc.Register(context.Background(), validInput())
		require.Error(t, err)
		assertUnclassified(t, err)
		assert.Empty(t, f.mailer.sent)
	})
}

func TestActivate_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, validInput()))
	token := *f.only(t).ActivationToken

	require.NoError(t, f.svc.Activate(ctx, token))

	account := f.only(t)
	assert.True(t, account.Enabled)
	assert.Nil(t, account.ActivationToken)
	activated := f.logs.FilterMessage("AccountActivated").All()
	require.Len(t, activated, 1)
	assert.Equal(t, "user1", activated[0].ContextMap()["username"])

	assert.ErrorIs(t, f.svc.Activate(ctx, token), ErrInvalidToken)
	assert.True(t, f.only(t).Enabled)
}

func TestActivate_UnknownTokenMatchesUsedTokenOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, validInput()))
	token := *f.only(t).ActivationToken
	require.NoError(t, f.svc.Activate(ctx, token))

	usedErr := f.svc.Activate(ctx, token)
	unknownErr := f.svc.Activate(ctx, "this -token-does-not exist")
	emptyErr := f.svc.Activate(ctx, "")

	assert.Equal(t, usedErr, unknownErr)
	assert.Equal(t, usedErr, emptyErr)
	assert.ErrorIs(t, unknownErr, ErrInvalidToken)
}

func TestActivate_WrongTokenLeavesAccountDisabled(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Register(context.Background(), validInput()))

	assert.ErrorIs(t, f.svc.Activate(context.Background(), strings.Repeat("0", 16)), ErrInvalidToken)
	assert.False(t, f.only(t).Enabled)
}

func TestActivate_ConcurrentRedemptionSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, validInput()))
	token := *f.only(t).ActivationToken

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.svc.Activate(ctx, token); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrInvalidToken)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestActivate_StorageFaultIsUnclassified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, validInput()))
	f.repo.activateErr = errors.New("connection lost")

	err := f.svc.Activate(ctx, *f.only(t).ActivationToken)
	require.Error(t, err)
	assertUnclassified(t, err)
}

func TestRegister_ConcurrentSameEmailCreatesOneAccount(t *testing.T) {
	f := newFixture(t)
	f.svc.locker = nil

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.svc.Register(context.Background(), validInput())
		}()
	}
	wg.Wait()

	assert.Len(t, f.repo.List(), 1)
}

func assertUnclassified(t *testing.T, err error) {
	t.Helper()
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr), "unexpected validation error: %v", err)
	assert.NotErrorIs(t, err, ErrEmailDelivery)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}
