package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/registration-service/internal/domain"
)

// MemoryAccountRepository keeps accounts in process memory. It enforces the
// same email uniqueness and activation guard as the Postgres schema.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	byEmail  map[string]string
}

// NewMemoryAccountRepository returns an empty in-memory store.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		accounts: make(map[string]*domain.Account),
		byEmail:  make(map[string]string),
	}
}

func (r *MemoryAccountRepository) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[account.Email]; exists {
		return ErrEmailTaken
	}
	if account.ActivationToken != nil {
		for _, other := range r.accounts {
			if other.ActivationToken != nil && *other.ActivationToken == *account.ActivationToken {
				return ErrActivationTokenTaken
			}
		}
	}

	now := time.Now().UTC()
	account.ID = uuid.NewString()
	account.Enabled = false
	account.CreatedAt = now
	account.UpdatedAt = now

	r.accounts[account.ID] = clone(account)
	r.byEmail[account.Email] = account.ID
	return nil
}

func (r *MemoryAccountRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byEmail, account.Email)
	delete(r.accounts, id)
	return nil
}

func (r *MemoryAccountRepository) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(r.accounts[id]), nil
}

func (r *MemoryAccountRepository) GetInactiveByActivationToken(_ context.Context, token string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts {
		if !account.Enabled && account.ActivationToken != nil && *account.ActivationToken == token {
			return clone(account), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryAccountRepository) Activate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok || account.Enabled {
		return ErrNotFound
	}
	account.Enabled = true
	account.ActivationToken = nil
	account.UpdatedAt = time.Now().UTC()
	return nil
}

// List returns a snapshot of every stored account.
func (r *MemoryAccountRepository) List() []*domain.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		out = append(out, clone(account))
	}
	return out
}

func clone(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	cp := *a
	if a.ActivationToken != nil {
		tok := *a.ActivationToken
		cp.ActivationToken = &tok
	}
	return &cp
}
