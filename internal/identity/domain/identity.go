package domain

import "time"

// Identity is a sign-in method linked to an account. Local identities carry a password hash.
type Identity struct {
	ID           string
	AccountID    string
	Provider     Provider
	ProviderID   string
	PasswordHash string // empty if not local
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Provider string

const (
	ProviderLocal Provider = "local"
	// ProviderGoogle is reserved for federated sign-in; no server flow creates it yet.
	ProviderGoogle Provider = "google"
)
