package repository

import (
	"context"

	"memodams/backend/internal/profile/domain"
)

// Repository stores profile documents with get and merge-write semantics.
type Repository interface {
	// Get returns the profile, or nil when none was ever written.
	Get(ctx context.Context, accountID string) (*domain.Profile, error)
	// Merge creates the profile if needed and applies the non-nil fields of patch.
	// A birthday already stored is never overwritten.
	Merge(ctx context.Context, accountID string, patch domain.Patch) error
}
