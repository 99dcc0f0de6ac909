package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// DeviceCookieName holds the opaque per-browser device id.
const DeviceCookieName = "memodams_device"

const deviceCookieMaxAge = 400 * 24 * time.Hour

// DeviceCookie resolves the caller's device id from the HttpOnly cookie, issuing a new
// random one when absent or malformed, and stores it in the request context. Device
// trust is never read from a header.
func DeviceCookie(secure bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(DeviceCookieName)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
			c.Cookie(&fiber.Cookie{
				Name:     DeviceCookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(deviceCookieMaxAge.Seconds()),
				Secure:   secure,
				HTTPOnly: true,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}
		c.SetUserContext(WithDeviceID(c.UserContext(), id))
		return c.Next()
	}
}
