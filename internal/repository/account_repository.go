package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/registration-service/internal/domain"
)

const (
	uniqueViolation       = "23505"
	activationTokenUnique = "accounts_activation_token_key"
)

// AccountRepository defines persistence access for self-registered accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	Delete(ctx context.Context, id string) error
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetInactiveByActivationToken(ctx context.Context, token string) (*domain.Account, error)
	Activate(ctx context.Context, id string) error
}

// DBTX is the subset of pgx used by the repository; *pgxpool.Pool, pgx.Tx
// and pgxmock pools satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type accountRepository struct {
	db DBTX
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(db DBTX) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	const query = `
        INSERT INTO accounts (username, email, password_hash, enabled, activation_token)
        VALUES ($1, $2, $3, FALSE, $4)
        RETURNING id, enabled, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		account.Username,
		account.Email,
		account.PasswordHash,
		account.ActivationToken,
	).Scan(&account.ID, &account.Enabled, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == activationTokenUnique {
				return ErrActivationTokenTaken
			}
			return ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *accountRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM accounts WHERE id=$1`

	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const query = `
        SELECT id, username, email, password_hash, enabled, activation_token, created_at, updated_at
        FROM accounts WHERE email=$1`

	return r.scanOne(ctx, query, email)
}

func (r *accountRepository) GetInactiveByActivationToken(ctx context.Context, token string) (*domain.Account, error) {
	const query = `
        SELECT id, username, email, password_hash, enabled, activation_token, created_at, updated_at
        FROM accounts WHERE activation_token=$1 AND enabled=FALSE`

	return r.scanOne(ctx, query, token)
}

// Activate enables the account and clears its token in one statement. The
// enabled=FALSE guard lets exactly one concurrent activation succeed.
func (r *accountRepository) Activate(ctx context.Context, id string) error {
	const query = `
        UPDATE accounts SET enabled=TRUE, activation_token=NULL, updated_at=NOW()
        WHERE id=$1 AND enabled=FALSE`

	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("activate account: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accountRepository) scanOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var account domain.Account
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&account.Enabled,
		&account.ActivationToken,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select account: %w", err)
	}
	return &account, nil
}
