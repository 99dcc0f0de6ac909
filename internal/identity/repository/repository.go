package repository

import (
	"context"

	"memodams/backend/internal/identity/domain"
)

// Repository defines persistence for identities. Getters return (nil, nil) when nothing matches.
type Repository interface {
	GetByAccountAndProvider(ctx context.Context, accountID string, provider domain.Provider) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}
