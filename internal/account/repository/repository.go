package repository

import (
	"context"

	"memodams/backend/internal/account/domain"
)

// Repository defines persistence for accounts. Getters return (nil, nil) when the row does not exist.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
	Count(ctx context.Context) (domain.Counts, error)
	Create(ctx context.Context, a *domain.Account) error
	SetEmailVerified(ctx context.Context, id string) error
	// SetAdmin sets the admin flag. Returns false when no account has id.
	SetAdmin(ctx context.Context, id string, admin bool) (bool, error)
}
