package middleware

import (
	"github.com/gofiber/fiber/v2"

	"memodams/backend/internal/audit"
)

// Audit records an audit entry after each successful state-changing request by an
// authenticated caller. Reads are not audited. skipRoutes holds route paths
// (e.g. "/v1/auth/refresh") that the services already audit themselves.
func Audit(logger audit.AuditLogger, skipRoutes map[string]bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if logger == nil || c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead {
			return err
		}
		route := c.Route().Path
		if skipRoutes[route] {
			return err
		}
		if err != nil || c.Response().StatusCode() >= 400 {
			return err
		}
		accountID, ok := AccountID(c.UserContext())
		if !ok {
			return err
		}
		ar := audit.ParseRoute(c.Method(), route)
		logger.LogEvent(c.UserContext(), accountID, ar.Action, ar.Resource, "")
		return err
	}
}
