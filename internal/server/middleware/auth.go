package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"memodams/backend/internal/platform/rbac"
	"memodams/backend/internal/security"
)

const bearerPrefix = "bearer "

// Client routes used by the guards.
const (
	RouteLogin       = "/login"
	RouteVerifyEmail = "/verify-email"
	RouteDashboard   = "/dashboard"
)

// Authenticate validates the Bearer access token when one is present and stores its claims
// in the request context. Tokens whose session was logged out or revoked are ignored. It
// never rejects a bad bearer: public routes still run, and the guards below decide what an
// anonymous caller may do. A failed session lookup is a 500.
func Authenticate(access *security.AccessVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := ExtractBearer(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return c.Next()
		}
		claims, err := access.VerifyAccess(c.UserContext(), token)
		if security.IsRejected(err) {
			return c.Next()
		}
		if err != nil {
			return Internal(c)
		}
		c.SetUserContext(WithClaims(c.UserContext(), claims))
		return c.Next()
	}
}

// RequireAuth rejects requests without a valid bearer. Unverified accounts pass; use it
// for the few routes an account needs before its email is confirmed.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := ClaimsFrom(c.UserContext()); !ok {
			return WriteError(c, fiber.StatusUnauthorized, "missing or invalid authorization", "", RouteLogin)
		}
		return c.Next()
	}
}

// RequireSession is the route guard for authenticated pages: a valid bearer whose claims
// have email_verified=true. Unverified tokens are sent to /verify-email.
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFrom(c.UserContext())
		if !ok {
			return WriteError(c, fiber.StatusUnauthorized, "missing or invalid authorization", "", RouteLogin)
		}
		if !claims.EmailVerified {
			return WriteError(c, fiber.StatusForbidden, "Please verify your email address to continue.", "", RouteVerifyEmail)
		}
		return c.Next()
	}
}

// RequireAdmin allows only callers admins recognizes. Mount after RequireSession.
func RequireAdmin(admins rbac.Admins) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFrom(c.UserContext())
		if !ok {
			return WriteError(c, fiber.StatusUnauthorized, "missing or invalid authorization", "", RouteLogin)
		}
		if err := admins.Authorize(claims); err != nil {
			return WriteError(c, fiber.StatusForbidden, "permission denied", "", "")
		}
		return c.Next()
	}
}

// ExtractBearer returns the token from an Authorization header value, or "" if missing or malformed.
func ExtractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
