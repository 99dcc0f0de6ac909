package repository

import (
	"context"
	"time"

	"memodams/backend/internal/stepup/domain"
)

// Repository persists step-up challenges.
type Repository interface {
	Create(ctx context.Context, c *domain.Challenge) error
	// Get returns the challenge, or nil if not found. Expired rows are returned; callers check.
	Get(ctx context.Context, id string) (*domain.Challenge, error)
	// Update writes stage, hints, factor state and code. It never writes the stored
	// attempt count; moving to a different stage resets it to zero in the same statement.
	Update(ctx context.Context, c *domain.Challenge) error
	// IncrementAttempts adds one failed attempt and returns the new count (0 if the row is gone).
	IncrementAttempts(ctx context.Context, id string, at time.Time) (int, error)
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes challenges that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Lockouts persists per-account failure counters that outlive single challenges.
type Lockouts interface {
	// Get returns the account's counter, or nil if it has none.
	Get(ctx context.Context, accountID string) (*domain.Lockout, error)
	// RecordFailure adds one failure and returns the count in the current window. A window
	// that started at or before at-window is restarted with a count of one.
	RecordFailure(ctx context.Context, accountID string, at time.Time, window time.Duration) (int, error)
	// Lock refuses step-up for the account until until.
	Lock(ctx context.Context, accountID string, until time.Time) error
	// Clear drops the counter after a completed sign-in.
	Clear(ctx context.Context, accountID string) error
	// DeleteStale removes counters whose window started at or before cutoff and whose
	// lock, if any, ended at or before now.
	DeleteStale(ctx context.Context, cutoff, now time.Time) (int, error)
}
