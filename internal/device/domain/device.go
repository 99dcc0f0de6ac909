package domain

import "time"

// TrustedDevice records that a browser (device id) passed the security question for an
// account. It lets later sign-ins from the same device skip the question.
type TrustedDevice struct {
	AccountID    string
	DeviceID     string
	Label        string
	VerifiedAt   time.Time
	TrustedUntil *time.Time // nil: until revoked
	RevokedAt    *time.Time
	LastSeenAt   time.Time
}

// Trusted reports whether the flag is still in force at now.
func (d *TrustedDevice) Trusted(now time.Time) bool {
	if d == nil || d.RevokedAt != nil {
		return false
	}
	return d.TrustedUntil == nil || now.Before(*d.TrustedUntil)
}
