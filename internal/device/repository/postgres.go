package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"memodams/backend/internal/db"
	"memodams/backend/internal/device/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a device repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const deviceColumns = `account_id, device_id, label, verified_at, trusted_until, revoked_at, last_seen_at`

func scanDevice(row interface{ Scan(...any) error }) (*domain.TrustedDevice, error) {
	var d domain.TrustedDevice
	var until, revoked sql.NullTime
	if err := row.Scan(&d.AccountID, &d.DeviceID, &d.Label, &d.VerifiedAt, &until, &revoked, &d.LastSeenAt); err != nil {
		return nil, err
	}
	d.TrustedUntil = db.NullTime(until)
	d.RevokedAt = db.NullTime(revoked)
	return &d, nil
}

// Get returns the flag for the account and device, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) Get(ctx context.Context, accountID, deviceID string) (*domain.TrustedDevice, error) {
	d, err := scanDevice(r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM trusted_devices WHERE account_id = $1 AND device_id = $2`, accountID, deviceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// ListByAccount returns the account's devices, most recently seen first.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*domain.TrustedDevice, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM trusted_devices WHERE account_id = $1 ORDER BY last_seen_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.TrustedDevice
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Upsert(ctx context.Context, d *domain.TrustedDevice) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO trusted_devices (`+deviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, NULL, $6)
		ON CONFLICT (account_id, device_id) DO UPDATE SET
			label = CASE WHEN EXCLUDED.label = '' THEN trusted_devices.label ELSE EXCLUDED.label END,
			verified_at = EXCLUDED.verified_at,
			trusted_until = EXCLUDED.trusted_until,
			revoked_at = NULL,
			last_seen_at = EXCLUDED.last_seen_at`,
		d.AccountID, d.DeviceID, d.Label, d.VerifiedAt, db.TimeOrNull(d.TrustedUntil), d.LastSeenAt)
	return err
}

func (r *PostgresRepository) Revoke(ctx context.Context, accountID, deviceID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE trusted_devices SET revoked_at = $3 WHERE account_id = $1 AND device_id = $2 AND revoked_at IS NULL`,
		accountID, deviceID, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostgresRepository) DeleteByDevice(ctx context.Context, deviceID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trusted_devices WHERE device_id = $1`, deviceID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *PostgresRepository) TouchLastSeen(ctx context.Context, accountID, deviceID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE trusted_devices SET last_seen_at = $3 WHERE account_id = $1 AND device_id = $2`, accountID, deviceID, at)
	return err
}
