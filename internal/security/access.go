package security

import (
	"context"
	"errors"
	"fmt"
)

// ErrSessionRevoked is returned for a well-signed access token whose session was
// logged out, revoked, or has expired.
var ErrSessionRevoked = errors.New("session is no longer active")

// SessionValidator reports whether the session behind an access token is still active.
type SessionValidator func(ctx context.Context, sessionID string) (bool, error)

// AccessVerifier checks an access token and then the session it was issued for, so a
// logout takes effect before the token expires.
type AccessVerifier struct {
	tokens   *TokenProvider
	sessions SessionValidator
}

// NewAccessVerifier returns a verifier. A nil sessions skips the session lookup.
func NewAccessVerifier(tokens *TokenProvider, sessions SessionValidator) *AccessVerifier {
	return &AccessVerifier{tokens: tokens, sessions: sessions}
}

// VerifyAccess returns ErrInvalidToken for bad tokens and ErrSessionRevoked for dead
// sessions. Any other error comes from the session lookup.
func (v *AccessVerifier) VerifyAccess(ctx context.Context, token string) (*Claims, error) {
	claims, err := v.tokens.ValidateAccess(token)
	if err != nil {
		return nil, err
	}
	if v.sessions == nil {
		return claims, nil
	}
	ok, err := v.sessions(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("security: session lookup: %w", err)
	}
	if !ok {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

// IsRejected reports whether err means the bearer must be treated as absent.
func IsRejected(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrSessionRevoked)
}
