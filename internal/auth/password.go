package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when there is nothing to hash.
var ErrEmptyPassword = errors.New("password must not be empty")

// maxPasswordBytes is the bcrypt input limit. Longer secrets are truncated,
// so only their first 72 bytes are significant.
const maxPasswordBytes = 72

// HashPassword hashes a plaintext password with configured cost.
// bcrypt embeds a fresh random salt in every hash.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword(bcryptInput(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), bcryptInput(plain))
}

func bcryptInput(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}

// BcryptHasher hashes credentials off the calling goroutine so a slow cost
// factor never outlives the request context.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher builds a hasher, falling back to bcrypt.DefaultCost for invalid costs.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{Cost: cost}
}

type hashResult struct {
	hash string
	err  error
}

// Hash returns the bcrypt hash of plain or ctx.Err() if ctx ends first.
func (h *BcryptHasher) Hash(ctx context.Context, plain string) (string, error) {
	done := make(chan hashResult, 1)
	go func() {
		hash, err := HashPassword(plain, h.Cost)
		done <- hashResult{hash: hash, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.hash, res.err
	}
}
