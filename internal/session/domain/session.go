package domain

import "time"

// Session is a signed-in browser, created only after every step-up requirement is met.
type Session struct {
	ID               string
	AccountID        string
	DeviceID         string
	ExpiresAt        time.Time
	RevokedAt        *time.Time // nil when not revoked
	LastSeenAt       *time.Time
	IPAddress        string
	RefreshJti       string // jti of the current refresh token
	RefreshTokenHash string // SHA-256 of the current refresh token
	CreatedAt        time.Time
}

// Active reports whether the session is neither revoked nor expired at now.
func (s *Session) Active(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
