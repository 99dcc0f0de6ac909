package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"memodams/backend/internal/identity/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an identity repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByAccountAndProvider returns the account's identity for provider, or nil if none.
func (r *PostgresRepository) GetByAccountAndProvider(ctx context.Context, accountID string, provider domain.Provider) (*domain.Identity, error) {
	var i domain.Identity
	var prov string
	var hash sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, provider, provider_id, password_hash, created_at, updated_at
		FROM identities WHERE account_id = $1 AND provider = $2`, accountID, string(provider)).
		Scan(&i.ID, &i.AccountID, &prov, &i.ProviderID, &hash, &i.CreatedAt, &i.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	i.Provider = domain.Provider(prov)
	i.PasswordHash = hash.String
	return &i, nil
}

// Create persists the identity. The identity must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, i *domain.Identity) error {
	hash := sql.NullString{String: i.PasswordHash, Valid: i.PasswordHash != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (id, account_id, provider, provider_id, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		i.ID, i.AccountID, string(i.Provider), i.ProviderID, hash, i.CreatedAt, i.UpdatedAt)
	return err
}

// UpdatePasswordHash replaces the stored hash for a local identity.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE identities SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, passwordHash, time.Now().UTC())
	return err
}
