package repository

import (
	"context"
	"errors"
	"time"

	"memodams/backend/internal/mfa/domain"
)

// ErrAlreadyConfirmed is returned by Confirm when the account already has an enrolled factor.
var ErrAlreadyConfirmed = errors.New("account already has an enrolled factor")

// Repository persists second factors, pending and confirmed.
type Repository interface {
	// ListByAccount returns the account's factors, oldest first.
	ListByAccount(ctx context.Context, accountID string) ([]*domain.Factor, error)
	// GetByID returns the factor, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Factor, error)
	Create(ctx context.Context, f *domain.Factor) error
	// Confirm completes enrollment. Returns ErrAlreadyConfirmed if another factor is enrolled.
	Confirm(ctx context.Context, id string, at time.Time) error
	SetPendingCode(ctx context.Context, id, codeHash string, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
	// DeletePendingByAccount drops abandoned enrollments before a new one starts.
	DeletePendingByAccount(ctx context.Context, accountID string) error
}
