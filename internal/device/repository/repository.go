package repository

import (
	"context"
	"time"

	"memodams/backend/internal/device/domain"
)

// Repository defines persistence for device verification flags.
type Repository interface {
	// Get returns the flag for (accountID, deviceID), or nil if none exists.
	Get(ctx context.Context, accountID, deviceID string) (*domain.TrustedDevice, error)
	ListByAccount(ctx context.Context, accountID string) ([]*domain.TrustedDevice, error)
	// Upsert inserts or refreshes the flag, clearing any earlier revocation.
	Upsert(ctx context.Context, d *domain.TrustedDevice) error
	// Revoke marks one flag revoked. Returns false if no active flag existed.
	Revoke(ctx context.Context, accountID, deviceID string, at time.Time) (bool, error)
	// DeleteByDevice removes every flag held by deviceID, for all accounts.
	DeleteByDevice(ctx context.Context, deviceID string) (int, error)
	TouchLastSeen(ctx context.Context, accountID, deviceID string, at time.Time) error
}
