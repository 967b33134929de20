package domain

import "time"

// Account is a self-registered user. It is created disabled with an
// activation token and enabled exactly once when that token is redeemed.
type Account struct {
	ID              string
	Username        string
	Email           string
	PasswordHash    string
	Enabled         bool
	ActivationToken *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PendingActivation reports whether the account still awaits its activation token.
func (a *Account) PendingActivation() bool {
	return a != nil && !a.Enabled && a.ActivationToken != nil
}
