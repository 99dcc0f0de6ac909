// Package service implements the device verification flag store used by step-up sign-in.
package service

import (
	"context"
	"errors"
	"time"

	"memodams/backend/internal/audit"
	auditdomain "memodams/backend/internal/audit/domain"
	"memodams/backend/internal/device/domain"
	"memodams/backend/internal/device/repository"
	"memodams/backend/internal/security"
	"memodams/backend/internal/telemetry"
	telemetrydomain "memodams/backend/internal/telemetry/domain"
)

// ErrDeviceNotFound is returned when revoking a device the account has no active flag for.
var ErrDeviceNotFound = errors.New("device not found")

// Store answers "has this device passed the security question for this account?".
type Store struct {
	repo     repository.Repository
	trustTTL time.Duration
	audit    audit.AuditLogger
	events   telemetry.Recorder
	now      func() time.Time
}

// NewStore returns a Store. trustTTL of 0 keeps flags until revoked. auditLogger and
// events may be nil.
func NewStore(repo repository.Repository, trustTTL time.Duration, auditLogger audit.AuditLogger, events telemetry.Recorder) *Store {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if events == nil {
		events = telemetry.Nop{}
	}
	return &Store{repo: repo, trustTTL: trustTTL, audit: auditLogger, events: events, now: time.Now}
}

// IsDeviceVerified reports whether the flag for (accountID, deviceID) is set, unrevoked and unexpired.
func (s *Store) IsDeviceVerified(ctx context.Context, accountID, deviceID string) (bool, error) {
	return s.VerifiedWithin(ctx, accountID, deviceID, 0)
}

// VerifiedWithin is IsDeviceVerified with an extra bound on the flag's age; maxAge of 0
// adds no bound. A verified device has its last-seen time refreshed.
func (s *Store) VerifiedWithin(ctx context.Context, accountID, deviceID string, maxAge time.Duration) (bool, error) {
	if accountID == "" || deviceID == "" {
		return false, nil
	}
	d, err := s.repo.Get(ctx, accountID, deviceID)
	if err != nil {
		return false, err
	}
	now := s.now().UTC()
	if !d.Trusted(now) {
		return false, nil
	}
	if maxAge > 0 && now.Sub(d.VerifiedAt) > maxAge {
		return false, nil
	}
	_ = s.repo.TouchLastSeen(ctx, accountID, deviceID, now)
	return true, nil
}

// MarkDeviceVerified sets the flag for (accountID, deviceID). Idempotent; re-marking
// refreshes the verification time and clears an earlier revocation. label is a
// human-readable hint (user agent) and may be empty.
func (s *Store) MarkDeviceVerified(ctx context.Context, accountID, deviceID, label string) error {
	if accountID == "" || deviceID == "" {
		return errors.New("device: account and device id are required")
	}
	now := s.now().UTC()
	d := &domain.TrustedDevice{
		AccountID:  accountID,
		DeviceID:   deviceID,
		Label:      label,
		VerifiedAt: now,
		LastSeenAt: now,
	}
	if s.trustTTL > 0 {
		until := now.Add(s.trustTTL)
		d.TrustedUntil = &until
	}
	if err := s.repo.Upsert(ctx, d); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, accountID, auditdomain.ActionDeviceVerified, "devices", security.DeviceDigest(deviceID))
	return nil
}

// ClearAll removes every flag held by deviceID, whatever account set it. Used when the
// browser explicitly starts over.
func (s *Store) ClearAll(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return nil
	}
	_, err := s.repo.DeleteByDevice(ctx, deviceID)
	return err
}

// List returns the account's verified devices, including revoked and expired ones.
func (s *Store) List(ctx context.Context, accountID string) ([]*domain.TrustedDevice, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

// Revoke withdraws one device's flag so the next sign-in from it asks the question again.
func (s *Store) Revoke(ctx context.Context, accountID, deviceID string) error {
	ok, err := s.repo.Revoke(ctx, accountID, deviceID, s.now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeviceNotFound
	}
	s.audit.LogEvent(ctx, accountID, auditdomain.ActionDeviceRevoked, "devices", security.DeviceDigest(deviceID))
	ev := telemetrydomain.NewEvent(telemetrydomain.EventDeviceRevoked, "device", nil)
	ev.AccountID = accountID
	ev.DeviceID = security.DeviceDigest(deviceID)
	s.events.Record(ctx, ev)
	return nil
}
