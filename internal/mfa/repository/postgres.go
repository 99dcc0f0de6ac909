package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"memodams/backend/internal/db"
	"memodams/backend/internal/mfa/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a factor repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const factorColumns = `id, account_id, kind, display_name, secret, phone, pending_code_hash, pending_code_expires, confirmed_at, created_at`

func scanFactor(row interface{ Scan(...any) error }) (*domain.Factor, error) {
	var f domain.Factor
	var kind string
	var pendingExp, confirmed sql.NullTime
	if err := row.Scan(&f.ID, &f.AccountID, &kind, &f.DisplayName, &f.Secret, &f.Phone,
		&f.PendingCodeHash, &pendingExp, &confirmed, &f.CreatedAt); err != nil {
		return nil, err
	}
	f.Kind = domain.Kind(kind)
	f.PendingCodeExpires = db.NullTime(pendingExp)
	f.ConfirmedAt = db.NullTime(confirmed)
	return &f, nil
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*domain.Factor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+factorColumns+` FROM mfa_factors WHERE account_id = $1 ORDER BY created_at ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Factor
	for rows.Next() {
		f, err := scanFactor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetByID returns the factor for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Factor, error) {
	f, err := scanFactor(r.db.QueryRowContext(ctx, `SELECT `+factorColumns+` FROM mfa_factors WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

// Create persists the factor. The factor must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, f *domain.Factor) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO mfa_factors (`+factorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		f.ID, f.AccountID, string(f.Kind), f.DisplayName, f.Secret, f.Phone,
		f.PendingCodeHash, db.TimeOrNull(f.PendingCodeExpires), db.TimeOrNull(f.ConfirmedAt), f.CreatedAt)
	return err
}

func (r *PostgresRepository) Confirm(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE mfa_factors SET confirmed_at = $2, pending_code_hash = '', pending_code_expires = NULL WHERE id = $1`, id, at)
	if db.IsUniqueViolation(err) {
		return ErrAlreadyConfirmed
	}
	return err
}

func (r *PostgresRepository) SetPendingCode(ctx context.Context, id, codeHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE mfa_factors SET pending_code_hash = $2, pending_code_expires = $3 WHERE id = $1`, id, codeHash, expiresAt)
	return err
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mfa_factors WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) DeletePendingByAccount(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mfa_factors WHERE account_id = $1 AND confirmed_at IS NULL`, accountID)
	return err
}
