// Package handler serves the dev-only OTP lookup. It is mounted only when
// OTP_RETURN_TO_CLIENT is true and APP_ENV is not production.
package handler

import (
	"github.com/gofiber/fiber/v2"

	"memodams/backend/internal/devotp"
	"memodams/backend/internal/server/middleware"
)

const devOTPNote = "DEV MODE ONLY"

type Handler struct {
	store devotp.Store
}

func NewHandler(store devotp.Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Register(r fiber.Router) {
	r.Get("/dev/otp/:id", h.GetOTP)
}

// GetOTP returns the plain code sent for a challenge or enrollment id.
func (h *Handler) GetOTP(c *fiber.Ctx) error {
	code, ok := h.store.Get(c.UserContext(), c.Params("id"))
	if !ok {
		return middleware.WriteError(c, fiber.StatusNotFound, "OTP not found or expired", "", "")
	}
	return c.JSON(fiber.Map{"otp": code, "note": devOTPNote})
}
