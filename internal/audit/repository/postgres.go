package repository

import (
	"context"
	"database/sql"

	"memodams/backend/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the entry. The entry must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	accountID := sql.NullString{String: a.AccountID, Valid: a.AccountID != ""}
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, account_id, action, resource, ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, accountID, a.Action, a.Resource, a.IP, meta, a.CreatedAt)
	return err
}

// List returns entries newest first.
func (r *PostgresRepository) List(ctx context.Context, f ListFilter) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, action, resource, ip, metadata, created_at
		FROM audit_logs
		WHERE ($1 = '' OR account_id = $1) AND ($2 = '' OR action = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`, f.AccountID, f.Action, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		var accountID, meta sql.NullString
		if err := rows.Scan(&a.ID, &accountID, &a.Action, &a.Resource, &a.IP, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.AccountID = accountID.String
		a.Metadata = meta.String
		out = append(out, &a)
	}
	return out, rows.Err()
}
