package domain

import (
	"errors"
	"time"
)

// Account is the core account entity. Admin and EmailVerified are the
// attributes surfaced as token claims.
type Account struct {
	ID            string
	Email         string
	Name          string
	EmailVerified bool
	Admin         bool
	Status        AccountStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusDisabled AccountStatus = "disabled"
)

// Validate validates the account for persistence. Returns an error describing the first validation failure.
func (a *Account) Validate() error {
	if a.Email == "" {
		return errors.New("email is required")
	}
	if a.Status == "" {
		a.Status = AccountStatusActive
	}
	return nil
}

// Active reports whether the account may sign in.
func (a *Account) Active() bool {
	return a != nil && a.Status == AccountStatusActive
}

// Counts summarizes the account table for the admin dashboard.
type Counts struct {
	Total         int
	EmailVerified int
	Admins        int
}
