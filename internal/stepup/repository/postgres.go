package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"memodams/backend/internal/db"
	"memodams/backend/internal/stepup/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a challenge repository backed by the stepup_challenges table.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const challengeColumns = `id, version, account_id, device_id, stage, hints, factor_satisfied, code_hash, code_expires_at, attempts, expires_at, created_at, updated_at`

func scanChallenge(row interface{ Scan(...any) error }) (*domain.Challenge, error) {
	var c domain.Challenge
	var stage string
	var hints []byte
	var codeExp sql.NullTime
	if err := row.Scan(&c.ID, &c.Version, &c.AccountID, &c.DeviceID, &stage, &hints, &c.FactorSatisfied,
		&c.CodeHash, &codeExp, &c.Attempts, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Stage = domain.Stage(stage)
	c.CodeExpiresAt = db.NullTime(codeExp)
	if len(hints) > 0 {
		if err := json.Unmarshal(hints, &c.Hints); err != nil {
			return nil, fmt.Errorf("decode challenge hints: %w", err)
		}
	}
	return &c, nil
}

func encodeHints(hints []domain.FactorHint) ([]byte, error) {
	if hints == nil {
		hints = []domain.FactorHint{}
	}
	return json.Marshal(hints)
}

func (r *PostgresRepository) Create(ctx context.Context, c *domain.Challenge) error {
	hints, err := encodeHints(c.Hints)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO stepup_challenges (`+challengeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.Version, c.AccountID, c.DeviceID, string(c.Stage), hints, c.FactorSatisfied,
		c.CodeHash, db.TimeOrNull(c.CodeExpiresAt), c.Attempts, c.ExpiresAt, c.CreatedAt, c.UpdatedAt)
	return err
}

// Get returns the challenge for id, or nil if not found.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*domain.Challenge, error) {
	c, err := scanChallenge(r.db.QueryRowContext(ctx, `SELECT `+challengeColumns+` FROM stepup_challenges WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *PostgresRepository) Update(ctx context.Context, c *domain.Challenge) error {
	hints, err := encodeHints(c.Hints)
	if err != nil {
		return err
	}
	// SET expressions see the old row, so the CASE compares against the previous stage.
	_, err = r.db.ExecContext(ctx, `UPDATE stepup_challenges SET
			attempts = CASE WHEN stage = $2 THEN attempts ELSE 0 END,
			stage = $2, hints = $3, factor_satisfied = $4, code_hash = $5, code_expires_at = $6,
			updated_at = $7
		WHERE id = $1`,
		c.ID, string(c.Stage), hints, c.FactorSatisfied, c.CodeHash, db.TimeOrNull(c.CodeExpiresAt), c.UpdatedAt)
	return err
}

func (r *PostgresRepository) IncrementAttempts(ctx context.Context, id string, at time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`UPDATE stepup_challenges SET attempts = attempts + 1, updated_at = $2 WHERE id = $1 RETURNING attempts`, id, at).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM stepup_challenges WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stepup_challenges WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// PostgresLockouts stores failure counters in stepup_lockouts, one row per account.
type PostgresLockouts struct {
	db *sql.DB
}

func NewPostgresLockouts(db *sql.DB) *PostgresLockouts {
	return &PostgresLockouts{db: db}
}

func (r *PostgresLockouts) Get(ctx context.Context, accountID string) (*domain.Lockout, error) {
	var l domain.Lockout
	var until sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT account_id, failures, window_start, locked_until, updated_at FROM stepup_lockouts WHERE account_id = $1`,
		accountID).Scan(&l.AccountID, &l.Failures, &l.WindowStart, &until, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	l.LockedUntil = db.NullTime(until)
	return &l, nil
}

// RecordFailure upserts the counter in one statement so concurrent failures are all counted.
func (r *PostgresLockouts) RecordFailure(ctx context.Context, accountID string, at time.Time, window time.Duration) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `INSERT INTO stepup_lockouts (account_id, failures, window_start, updated_at)
		VALUES ($1, 1, $2, $2)
		ON CONFLICT (account_id) DO UPDATE SET
			failures = CASE WHEN stepup_lockouts.window_start <= $3 THEN 1 ELSE stepup_lockouts.failures + 1 END,
			window_start = CASE WHEN stepup_lockouts.window_start <= $3 THEN $2 ELSE stepup_lockouts.window_start END,
			updated_at = $2
		RETURNING failures`,
		accountID, at, at.Add(-window)).Scan(&n)
	return n, err
}

func (r *PostgresLockouts) Lock(ctx context.Context, accountID string, until time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE stepup_lockouts SET locked_until = $2 WHERE account_id = $1`, accountID, until)
	return err
}

func (r *PostgresLockouts) Clear(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM stepup_lockouts WHERE account_id = $1`, accountID)
	return err
}

func (r *PostgresLockouts) DeleteStale(ctx context.Context, cutoff, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stepup_lockouts
		WHERE window_start <= $1 AND (locked_until IS NULL OR locked_until <= $2)`, cutoff, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
