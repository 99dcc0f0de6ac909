package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RealIP stores the caller's IP in the request context: the first X-Forwarded-For hop,
// then X-Real-IP, then the socket address.
func RealIP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(WithClientIP(c.UserContext(), clientIP(c)))
		return c.Next()
	}
}

func clientIP(c *fiber.Ctx) string {
	if s := strings.TrimSpace(c.Get(fiber.HeaderXForwardedFor)); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(c.Get("X-Real-IP")); s != "" {
		return s
	}
	if ip := c.IP(); ip != "" {
		return ip
	}
	return "unknown"
}
