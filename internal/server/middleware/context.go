// Package middleware holds the fiber middleware shared by every HTTP handler: bearer
// authentication, the device cookie, client IP, audit, telemetry, and the error body.
package middleware

import (
	"context"

	"memodams/backend/internal/security"
)

type contextKey struct{ name string }

var (
	claimsKey   = contextKey{"claims"}
	deviceIDKey = contextKey{"device_id"}
	clientIPKey = contextKey{"client_ip"}
)

// WithClaims returns a context carrying the verified access token claims.
func WithClaims(ctx context.Context, claims *security.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFrom returns the verified claims and true if the request carried a valid bearer.
func ClaimsFrom(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*security.Claims)
	return c, ok && c != nil
}

// AccountID returns the account id of the authenticated caller, if any.
func AccountID(ctx context.Context) (string, bool) {
	c, ok := ClaimsFrom(ctx)
	if !ok {
		return "", false
	}
	return c.AccountID(), true
}

// SessionID returns the session id of the authenticated caller, if any.
func SessionID(ctx context.Context) (string, bool) {
	c, ok := ClaimsFrom(ctx)
	if !ok {
		return "", false
	}
	return c.SessionID, true
}

// WithDeviceID returns a context carrying the browser's device id.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDKey, deviceID)
}

// DeviceID returns the device id set by the DeviceCookie middleware, or "".
func DeviceID(ctx context.Context) string {
	v, _ := ctx.Value(deviceIDKey).(string)
	return v
}

// WithClientIP returns a context carrying the caller's IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the IP set by the RealIP middleware, or "". It satisfies audit.IPExtractor.
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}
